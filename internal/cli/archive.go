package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/store"
)

func newArchiveCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List, show or delete archived results",
		Long: `Manage analysis results stored by 'megaparser analyze --archive'.

Archived results can be turned into any export format with
'megaparser convert --archive <id> --to <exporter>'.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "archive database path (default: .megaparser/archive.db)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archived results, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openArchiveStore(cfg, dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			summaries, err := s.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list archives: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No archived results.")
				return nil
			}
			fmt.Fprintf(out, "%-18s %-20s %6s  %s\n", "ID", "CREATED", "FILES", "PROJECT")
			for _, sum := range summaries {
				fmt.Fprintf(out, "%-18s %-20s %6d  %s\n",
					sum.ID, sum.CreatedAt.Local().Format(time.DateTime), sum.FileCount, sum.Project)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show the files and metrics of an archived result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openArchiveStore(cfg, dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := s.Load(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no archived result with id %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("load archive: %w", err)
			}

			out := cmd.OutOrStdout()
			printSection(out, "Archive "+a.ID)
			printKV(out, "Project", a.Project)
			printKV(out, "Created", a.CreatedAt.Local().Format(time.DateTime))
			printKV(out, "Files", fmt.Sprintf("%d", len(a.Files)))
			fmt.Fprintln(out)

			for _, f := range a.Files {
				names := f.MetricNames()
				sort.Strings(names)
				parts := make([]string, len(names))
				for i, n := range names {
					parts[i] = n + "=" + formatMetric(f.Metrics[n])
				}
				fmt.Fprintf(out, "  %s (%s) %s\n", f.Path, f.Language, strings.Join(parts, " "))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openArchiveStore(cfg, dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no archived result with id %s", args[0])
				}
				return fmt.Errorf("delete archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}
