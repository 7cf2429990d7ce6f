package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/analysis"
)

func newConvertCmd() *cobra.Command {
	var (
		to        string
		archiveID string
		outPath   string
		dbPath    string
	)

	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert an archived result into another export format",
		Long: `Convert a previously produced SimpleJson document, or an archived run,
into the document of another exporter without recomputing any metric.

Examples:
  megaparser convert megaparser-out/app.json --to CodeChartaJson
  megaparser convert --archive 3f2a9c1d0b7e4a55 --to CodeChartaJson`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (archiveID != "") {
				return fmt.Errorf("specify either a file or --archive")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			orch := analysis.New(analysis.Config{
				ProjectName: cfg.ProjectName(),
				Verbose:     verbose,
				Logger:      newLogger(cmd.ErrOrStderr()),
			})

			source := archiveID
			if archiveID != "" {
				s, err := openArchiveStore(cfg, dbPath)
				if err != nil {
					return err
				}
				defer s.Close()

				a, err := s.Load(cmd.Context(), archiveID)
				if err != nil {
					return fmt.Errorf("load archive %s: %w", archiveID, err)
				}
				orch.SetRawOutput(a.Files)
			} else {
				source = args[0]
				f, err := os.Open(source)
				if err != nil {
					return fmt.Errorf("open %s: %w", source, err)
				}
				defer f.Close()
				if err := orch.LoadRawOutput(f); err != nil {
					return err
				}
			}

			out, err := orch.ConvertToFormat(to)
			if err != nil {
				return err
			}

			if outPath == "" {
				base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
				outPath = filepath.Join(filepath.Dir(source), base+"."+out.Extension)
				if archiveID != "" {
					outPath = outputBaseName(cfg.ProjectName()) + "-" + archiveID + "." + out.Extension
				}
			}
			if archiveID == "" && filepath.Clean(outPath) == filepath.Clean(source) {
				return fmt.Errorf("refusing to overwrite %s; use --out", source)
			}
			if outPath == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), out.Content)
				return nil
			}
			if err := writeOutput(outPath, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "target exporter id (required)")
	cmd.Flags().StringVar(&archiveID, "archive", "", "convert an archived run instead of a file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, - for stdout")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "archive database path (default: .megaparser/archive.db)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
