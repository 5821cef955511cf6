package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"kwrec/internal/models"
	"kwrec/internal/trace"
)

var (
	extractDetails     bool
	extractStatus      string
	extractFormat      string
	extractSkipFixture bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <trace-file>",
	Short: "Print the keywords of one trace in execution order",
	Long: `Print every keyword invocation of a trace file (output.xml or JSON result)
in execution order, indented by nesting depth.

Examples:
  kwrec extract output.xml
  kwrec extract output.xml --details --status FAIL
  kwrec extract output.json --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVarP(&extractDetails, "details", "d", false, "show kind, library, parent, status, times, arguments and return values")
	extractCmd.Flags().StringVar(&extractStatus, "status", "", "only keywords with this status (PASS, FAIL, SKIP)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "human", "output format (human, json)")
	extractCmd.Flags().BoolVar(&extractSkipFixture, "skip-setup-teardown", false, "drop setup and teardown keywords and their children")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	x := trace.NewExtractor(trace.Options{IncludeSetupTeardown: !extractSkipFixture}, slog.Default())
	events, err := x.ExtractFile(args[0])
	if err != nil {
		return err
	}

	total := len(events)
	if extractStatus != "" {
		want := models.ParseStatus(extractStatus)
		kept := events[:0]
		for _, ev := range events {
			if ev.Status == want {
				kept = append(kept, ev)
			}
		}
		events = kept
	}

	if extractFormat == "json" {
		return writeJSON(events)
	}

	if len(events) == 0 {
		fmt.Println("No keywords found.")
		return nil
	}
	for _, ev := range events {
		indent := strings.Repeat("  ", ev.Depth)
		fmt.Printf("%4d. %s%s\n", ev.SequenceIndex, indent, ev.Name)
		if extractDetails {
			printEventDetails(&ev)
		}
	}

	fmt.Println()
	if extractStatus != "" {
		fmt.Printf("%d of %d keywords with status %s\n", len(events), total, models.ParseStatus(extractStatus))
	} else {
		fmt.Printf("%d keywords in execution order\n", total)
	}
	return nil
}

func printEventDetails(ev *models.KeywordEvent) {
	field := func(label, value string) {
		if value != "" {
			fmt.Printf("      %-10s %s\n", label+":", value)
		}
	}
	field("Kind", string(ev.Kind))
	field("Library", ev.Library)
	field("Parent", ev.ParentName)
	field("Test", ev.TestName)
	field("Status", string(ev.Status))
	if ev.StartTime != nil {
		field("Start", ev.StartTime.Format("2006-01-02 15:04:05.000"))
	}
	if d := ev.Duration(); d > 0 {
		field("Elapsed", d.String())
	}
	field("Arguments", strings.Join(ev.Arguments, ", "))
	field("Returns", strings.Join(ev.ReturnValues, ", "))
	fmt.Println()
}
