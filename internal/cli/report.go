package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pdfmill/pdfmill/pkg/model"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate conversion audit reports",
	Long:  `Generate aggregated conversion reports by client, source format, and time period.`,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("period", "P", "daily", "Report period (daily, weekly, monthly)")
	reportCmd.Flags().StringP("client", "c", "", "Filter by client")
	reportCmd.Flags().StringP("format", "f", "", "Filter by source format")
	reportCmd.Flags().StringP("output", "o", "table", "Output format (table, yaml)")
	reportCmd.Flags().Bool("detailed", false, "Show individual records")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	period, _ := cmd.Flags().GetString("period")
	clientFilter, _ := cmd.Flags().GetString("client")
	formatFilter, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	detailed, _ := cmd.Flags().GetBool("detailed")

	logger := newLogger(cfg)
	_, _, store, err := initDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	start, end := model.PeriodBounds(model.ReportPeriod(period))
	filter := model.ReportFilter{
		Client:       clientFilter,
		SourceFormat: formatFilter,
		StartTime:    start,
		EndTime:      end,
	}

	summary, err := store.AggregateConversions(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if output == "yaml" {
		return yaml.NewEncoder(os.Stdout).Encode(summary)
	}

	fmt.Printf("=== Conversion Report (%s) ===\n", period)
	fmt.Printf("Period: %s to %s\n\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Total Conversions: %d\n", summary.TotalConversions)

	if len(summary.ByFormat) > 0 {
		fmt.Printf("\nBy Format:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  FORMAT\tCOUNT\n")
		for name, count := range summary.ByFormat {
			fmt.Fprintf(w, "  %s\t%d\n", name, count)
		}
		w.Flush()
	}

	if len(summary.ByClient) > 0 {
		fmt.Printf("\nBy Client:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  CLIENT\tCOUNT\n")
		for name, count := range summary.ByClient {
			fmt.Fprintf(w, "  %s\t%d\n", name, count)
		}
		w.Flush()
	}

	if detailed {
		records, err := store.QueryConversions(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("query records: %w", err)
		}

		if len(records) > 0 {
			fmt.Printf("\nDetailed Records:\n")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  TIMESTAMP\tCLIENT\tFILENAME\tFORMAT\n")
			for _, r := range records {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
					r.Timestamp.Format("2006-01-02 15:04"),
					r.Client, r.Filename, r.SourceFormat,
				)
			}
			w.Flush()
		}
	}

	return nil
}
