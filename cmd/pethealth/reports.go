package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pet-health-tracker/internal/reports"
	"github.com/joseph-ayodele/pet-health-tracker/internal/utils"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect a pet's reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list <pet-id>",
	Short: "List reports using the cache-then-refresh read path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cfg, logger, false)
		if err != nil {
			return err
		}
		defer a.close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		err = a.reports.View(cmd.Context(), args[0], func(v reports.View) {
			label := string(v.Source)
			if v.Stale {
				label += " (stale)"
			}
			fmt.Fprintf(tw, "# %s: %d report(s)\n", label, len(v.Reports))
			fmt.Fprintln(tw, "DATE\tTYPE\tTITLE\tSTATUS\tVET")
			for _, r := range v.Reports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ReportDate, r.ReportType, r.Title, r.Status, utils.StrOrEmpty(r.Veterinarian))
			}
			_ = tw.Flush()
		})
		return err
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <pet-id>",
	Short: "Write a pet's reports to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cfg, logger, false)
		if err != nil {
			return err
		}
		defer a.close()

		b, err := a.exporter.ExportReportsXLSX(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = fmt.Sprintf("reports-%s.xlsx", args[0])
		}
		if err := os.WriteFile(out, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		logger.Info("export.written", "path", out, "bytes", len(b))
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local report cache",
}

var cacheClearAll bool

var cacheClearCmd = &cobra.Command{
	Use:   "clear [pet-id]",
	Short: "Remove cached lists and previews for one pet, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheClearAll && len(args) == 0 {
			return fmt.Errorf("pass a pet id or --all")
		}
		a, err := openApp(cmd.Context(), cfg, logger, false)
		if err != nil {
			return err
		}
		defer a.close()

		if cacheClearAll {
			a.cache.ClearAll()
			return nil
		}
		a.cache.Clear(args[0])
		return nil
	},
}

func init() {
	reportsCmd.AddCommand(reportsListCmd)
	rootCmd.AddCommand(reportsCmd)

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default reports-<pet-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)

	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "clear every pet")
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
