package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amonks/taskmirror/internal/listflags"
	"github.com/amonks/taskmirror/session"
	"github.com/amonks/taskmirror/task"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List the loaded user's tasks, most recently updated first.

Filters combine with AND. --search matches title, description, and tags
case-insensitively. Output is paginated; use --pages to show more pages or
--all to show every match.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listFilters  listflags.Filters
	listPages    int
	listAll      bool
	listJSON     bool
	listOverdue  bool
	listDueToday bool
	listDueSoon  bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listflags.AddFilterFlags(listCmd, &listFilters)
	listflags.AddAllFlag(listCmd, &listAll)
	listCmd.Flags().IntVar(&listPages, "pages", 1, "Number of pages to show")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVar(&listOverdue, "overdue", false, "Only open tasks past their due date")
	listCmd.Flags().BoolVar(&listDueToday, "due-today", false, "Only tasks due today")
	listCmd.Flags().BoolVar(&listDueSoon, "due-soon", false, "Only open tasks due within 24 hours")
	listCmd.MarkFlagsMutuallyExclusive("overdue", "due-today", "due-soon")
}

func runList(cmd *cobra.Command, args []string) error {
	if listPages < 1 {
		return fmt.Errorf("--pages must be at least 1")
	}
	ctx := cmd.Context()
	manager, _, cleanup, err := openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := applyListFilters(manager, listFilters); err != nil {
		return err
	}

	var tasks []task.Task
	hasMore := false
	switch {
	case listOverdue:
		tasks = manager.OverdueTasks()
	case listDueToday:
		tasks = manager.TasksDueToday()
	case listDueSoon:
		tasks = manager.TasksDueSoon()
	case listAll:
		tasks = manager.Tasks()
	default:
		for page := 1; page < listPages; page++ {
			if !manager.LoadMore() {
				break
			}
		}
		tasks = manager.VisibleTasks()
		hasMore = manager.HasMore()
	}

	if listJSON {
		if tasks == nil {
			tasks = []task.Task{}
		}
		return writeJSON(cmd.OutOrStdout(), tasks)
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}
	fmt.Fprint(out, formatTaskTable(tasks, idHighlighter(manager.AllTasks()), time.Now()))
	if hasMore {
		fmt.Fprintf(out, "\nShowing %d of %d tasks. Use --pages %d or --all to see more.\n", len(tasks), len(manager.Tasks()), listPages+1)
	}
	return nil
}

// applyListFilters validates and applies filter flags. Search is flushed so
// the result reflects it immediately.
func applyListFilters(manager *session.Manager, filters listflags.Filters) error {
	if filters.Status != "" {
		parsed, err := task.ParseStatusInput(filters.Status)
		if err != nil {
			return err
		}
		manager.SetStatusFilter(parsed)
	}
	if filters.Priority != "" {
		parsed, err := task.ParsePriorityInput(filters.Priority)
		if err != nil {
			return err
		}
		manager.SetPriorityFilter(parsed)
	}
	if filters.Category != "" {
		manager.SetCategoryFilter(filters.Category)
	}
	if filters.Search != "" {
		manager.SetSearchQuery(filters.Search)
		manager.FlushSearch()
	}
	return nil
}
