package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rollcall/internal/attendance"
	"rollcall/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the attendance report of a day as xlsx",
	Long: `Writes Attendance_Report_<date>.xlsx (or --out) with one row per
student. Students without a record on that day are listed as Absent.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("date", "", "Day to report, YYYY-MM-DD (default today)")
	reportCmd.Flags().String("out", "", "Output file (default Attendance_Report_<date>.xlsx)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	date, _ := cmd.Flags().GetString("date")
	out, _ := cmd.Flags().GetString("out")

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if date == "" {
		date = attendance.Today(time.Now(), e.cfg.Location())
	}
	if out == "" {
		out = report.Filename(date)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := report.NewGenerator(e.repo).Export(cmd.Context(), date, f); err != nil {
		f.Close()
		_ = os.Remove(out)
		return fmt.Errorf("export report: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	return nil
}
