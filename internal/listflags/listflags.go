// Package listflags registers the filter flags shared by commands that
// show task lists.
package listflags

import "github.com/spf13/cobra"

// Filters holds the raw values of the filter flags.
type Filters struct {
	Status   string
	Priority string
	Category string
	Search   string
}

// AddFilterFlags adds --status, --priority, --category, and --search.
func AddFilterFlags(cmd *cobra.Command, target *Filters) {
	cmd.Flags().StringVarP(&target.Status, "status", "s", "", "Filter by status (pending, in_progress, completed, cancelled)")
	cmd.Flags().StringVarP(&target.Priority, "priority", "p", "", "Filter by priority (low, medium, high, urgent)")
	cmd.Flags().StringVarP(&target.Category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&target.Search, "search", "q", "", "Filter by text in title, description, or tags")
}

// AddAllFlag adds a shared --all flag that disables pagination.
func AddAllFlag(cmd *cobra.Command, target *bool) {
	if target == nil {
		cmd.Flags().Bool("all", false, "Show every matching task")
		return
	}

	cmd.Flags().BoolVar(target, "all", false, "Show every matching task")
}
