package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amonks/taskmirror/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize tasks by status and due date",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var statsJSON bool

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	stats := manager.Stats()
	if statsJSON {
		return writeJSON(cmd.OutOrStdout(), stats)
	}

	rows := [][]string{
		{"Total", fmt.Sprint(stats.Total)},
		{"Pending", fmt.Sprint(stats.Pending)},
		{"In progress", fmt.Sprint(stats.InProgress)},
		{"Completed", fmt.Sprint(stats.Completed)},
		{"Cancelled", fmt.Sprint(stats.Cancelled)},
		{"Overdue", fmt.Sprint(stats.Overdue)},
		{"Due soon", fmt.Sprint(stats.DueSoon)},
		{"Completion", fmt.Sprintf("%.0f%%", stats.CompletionRate*100)},
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, ui.FormatTable([]string{"", "COUNT"}, rows))

	if categories := manager.Categories(); len(categories) > 0 {
		fmt.Fprintf(out, "\nCategories: %s\n", strings.Join(categories, ", "))
	}
	if tags := manager.Tags(); len(tags) > 0 {
		fmt.Fprintf(out, "Tags: %s\n", strings.Join(tags, ", "))
	}
	return nil
}
