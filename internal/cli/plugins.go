package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/export"
	"github.com/imyousuf/megaparser/internal/metrics"
)

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List registered metric and export plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			mreg := metrics.NewDefaultRegistry()
			printSection(out, "Metric plugins")
			for _, id := range mreg.IDs() {
				p, _ := mreg.Get(id)
				langs := make([]string, 0, len(p.SupportedLanguages()))
				for _, l := range p.SupportedLanguages() {
					langs = append(langs, string(l))
				}
				printKV(out, id, strings.Join(langs, ", "))
			}
			fmt.Fprintln(out)

			ereg := export.NewDefaultRegistry("")
			printSection(out, "Export plugins")
			for _, id := range ereg.IDs() {
				p, _ := ereg.Get(id)
				printKV(out, id, "."+p.Extension())
			}
			return nil
		},
	}
}
