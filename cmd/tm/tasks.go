package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amonks/taskmirror/internal/editor"
	"github.com/amonks/taskmirror/internal/ui"
	"github.com/amonks/taskmirror/task"
)

// tm show
var showCmd = &cobra.Command{
	Use:   "show <id>...",
	Short: "Show detailed information about tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShow,
}

var showJSON bool

// tm create
var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task",
	Long: `Create a new task.

With --edit, or when no title is given on an interactive terminal, the task
is opened in $EDITOR as a TOML header followed by the description.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

var (
	createDescription string
	createPriority    string
	createCategory    string
	createTags        []string
	createDue         string
	createRepeat      string
	createSubtasks    []string
	createEdit        bool
)

// tm update
var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task",
	Long: `Update a task.

With --edit the task is opened in $EDITOR and every field is written back.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var (
	updateTitle       string
	updateDescription string
	updatePriority    string
	updateStatus      string
	updateCategory    string
	updateTags        []string
	updateDue         string
	updateNoDue       bool
	updateRepeat      string
	updateProgress    float64
	updateEdit        bool
)

// tm status
var statusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move a task to a status",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

// tm complete
var completeCmd = &cobra.Command{
	Use:   "complete <id>...",
	Short: "Mark tasks completed",
	Long: `Mark tasks completed.

Completing a repeating task also creates its next occurrence.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runComplete,
}

// tm delete
var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

// tm subtask
var subtaskCmd = &cobra.Command{
	Use:   "subtask",
	Short: "Manage a task's subtasks",
}

var subtaskAddCmd = &cobra.Command{
	Use:   "add <task-id> <title>",
	Short: "Add a subtask",
	Args:  cobra.ExactArgs(2),
	RunE:  runSubtaskAdd,
}

var subtaskToggleCmd = &cobra.Command{
	Use:   "toggle <task-id> <subtask-id>",
	Short: "Toggle a subtask's completion",
	Long: `Toggle a subtask's completion.

Completing the last open subtask completes the task. Reopening a subtask
leaves the task's status alone.`,
	Args: cobra.ExactArgs(2),
	RunE: runSubtaskToggle,
}

func init() {
	rootCmd.AddCommand(showCmd, createCmd, updateCmd, statusCmd, completeCmd, deleteCmd, subtaskCmd)
	subtaskCmd.AddCommand(subtaskAddCmd, subtaskToggleCmd)

	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "Description (use '-' to read from stdin)")
	createCmd.Flags().StringVarP(&createPriority, "priority", "p", "", "Priority (low, medium, high, urgent)")
	createCmd.Flags().StringVarP(&createCategory, "category", "c", "", "Category")
	createCmd.Flags().StringArrayVarP(&createTags, "tag", "t", nil, "Tag (repeatable, or comma-separated)")
	createCmd.Flags().StringVar(&createDue, "due", "", "Due date (YYYY-MM-DD, YYYY-MM-DD HH:MM, or a duration like 36h)")
	createCmd.Flags().StringVar(&createRepeat, "repeat", "", "Repeat rule (none, daily, weekly, monthly, yearly)")
	createCmd.Flags().StringArrayVar(&createSubtasks, "subtask", nil, "Subtask title (repeatable)")
	createCmd.Flags().BoolVarP(&createEdit, "edit", "e", false, "Open $EDITOR to fill in the task")

	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVarP(&updateDescription, "description", "d", "", "New description (use '-' to read from stdin)")
	updateCmd.Flags().StringVarP(&updatePriority, "priority", "p", "", "New priority")
	updateCmd.Flags().StringVarP(&updateStatus, "status", "s", "", "New status")
	updateCmd.Flags().StringVarP(&updateCategory, "category", "c", "", "New category")
	updateCmd.Flags().StringArrayVarP(&updateTags, "tag", "t", nil, "Replace tags (repeatable, or comma-separated)")
	updateCmd.Flags().StringVar(&updateDue, "due", "", "New due date")
	updateCmd.Flags().BoolVar(&updateNoDue, "no-due", false, "Remove the due date")
	updateCmd.Flags().StringVar(&updateRepeat, "repeat", "", "New repeat rule")
	updateCmd.Flags().Float64Var(&updateProgress, "progress", 0, "Manual progress between 0 and 1")
	updateCmd.Flags().BoolVarP(&updateEdit, "edit", "e", false, "Open $EDITOR on the task")
	updateCmd.MarkFlagsMutuallyExclusive("due", "no-due")

	addDescriptionFlagAliases(createCmd, updateCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	items := make([]task.Task, 0, len(args))
	for _, arg := range args {
		id, err := resolveTaskID(manager, arg)
		if err != nil {
			return err
		}
		item, err := manager.GetTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	if showJSON {
		return writeJSON(cmd.OutOrStdout(), items)
	}
	highlight := idHighlighter(manager.AllTasks())
	now := time.Now()
	for i, item := range items {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprint(cmd.OutOrStdout(), formatTaskDetail(item, highlight, now))
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	title := ""
	if len(args) > 0 {
		title = args[0]
	}
	useEditor := createEdit || (title == "" && editor.IsInteractive())
	if title == "" && !useEditor {
		return fmt.Errorf("title is required (pass a title or use --edit)")
	}

	opts, err := createOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	if useEditor {
		parsed, err := editor.EditTask(editor.DefaultCreateData(title), time.Local)
		if err != nil {
			return err
		}
		title = parsed.Title
		edited := parsed.ToCreateOptions()
		edited.Subtasks = opts.Subtasks
		opts = edited
	}

	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := manager.CreateTask(cmd.Context(), title, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %s: %s\n", id, title)
	return nil
}

func createOptionsFromFlags(cmd *cobra.Command) (task.CreateOptions, error) {
	opts := task.CreateOptions{
		Category: createCategory,
		Tags:     splitTags(createTags),
		Subtasks: createSubtasks,
	}
	if cmd.Flags().Changed("description") {
		desc, err := resolveDescriptionFromStdin(createDescription, os.Stdin)
		if err != nil {
			return opts, err
		}
		opts.Description = desc
	}
	if createPriority != "" {
		priority, err := task.ParsePriorityInput(createPriority)
		if err != nil {
			return opts, err
		}
		opts.Priority = priority
	}
	if createRepeat != "" {
		rule, err := task.ParseRepeatRuleInput(createRepeat)
		if err != nil {
			return opts, err
		}
		opts.Repeat = rule
	}
	if createDue != "" {
		due, err := parseDue(createDue, time.Now())
		if err != nil {
			return opts, err
		}
		opts.DueDate = &due
	}
	return opts, nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	var opts task.UpdateOptions
	if !updateEdit {
		var err error
		opts, err = updateOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
	}

	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveTaskID(manager, args[0])
	if err != nil {
		return err
	}
	if updateEdit {
		existing, err := manager.GetTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		parsed, err := editor.EditTask(editor.DataFromTask(existing, time.Local), time.Local)
		if err != nil {
			return err
		}
		opts = parsed.ToUpdateOptions()
	}
	updated, err := manager.UpdateTask(cmd.Context(), id, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s: %s\n", updated.ID, updated.Title)
	return nil
}

func updateOptionsFromFlags(cmd *cobra.Command) (task.UpdateOptions, error) {
	var opts task.UpdateOptions
	flags := cmd.Flags()
	changed := false

	if flags.Changed("title") {
		opts.Title = &updateTitle
		changed = true
	}
	if flags.Changed("description") {
		desc, err := resolveDescriptionFromStdin(updateDescription, os.Stdin)
		if err != nil {
			return opts, err
		}
		opts.Description = &desc
		changed = true
	}
	if flags.Changed("priority") {
		priority, err := task.ParsePriorityInput(updatePriority)
		if err != nil {
			return opts, err
		}
		opts.Priority = &priority
		changed = true
	}
	if flags.Changed("status") {
		status, err := task.ParseStatusInput(updateStatus)
		if err != nil {
			return opts, err
		}
		opts.Status = &status
		changed = true
	}
	if flags.Changed("category") {
		opts.Category = &updateCategory
		changed = true
	}
	if flags.Changed("tag") {
		tags := splitTags(updateTags)
		if tags == nil {
			tags = []string{}
		}
		opts.Tags = &tags
		changed = true
	}
	if flags.Changed("due") {
		due, err := parseDue(updateDue, time.Now())
		if err != nil {
			return opts, err
		}
		opts.DueDate = &due
		changed = true
	}
	if updateNoDue {
		opts.ClearDueDate = true
		changed = true
	}
	if flags.Changed("repeat") {
		rule, err := task.ParseRepeatRuleInput(updateRepeat)
		if err != nil {
			return opts, err
		}
		opts.Repeat = &rule
		changed = true
	}
	if flags.Changed("progress") {
		opts.Progress = &updateProgress
		changed = true
	}
	if !changed {
		return opts, fmt.Errorf("nothing to update (see tm update --help)")
	}
	return opts, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := task.ParseStatusInput(args[1])
	if err != nil {
		return err
	}

	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveTaskID(manager, args[0])
	if err != nil {
		return err
	}
	updated, err := manager.UpdateTaskStatus(cmd.Context(), id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", updated.ID, ui.StatusBadge(updated.Status))
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	for _, arg := range args {
		id, err := resolveTaskID(manager, arg)
		if err != nil {
			return err
		}
		nextID, err := manager.CompleteTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Completed task %s\n", id)
		if nextID != "" {
			fmt.Fprintf(out, "Created next occurrence %s\n", nextID)
		}
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, arg := range args {
		id, err := resolveTaskID(manager, arg)
		if err != nil {
			return err
		}
		if err := manager.DeleteTask(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", id)
	}
	return nil
}

func runSubtaskAdd(cmd *cobra.Command, args []string) error {
	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveTaskID(manager, args[0])
	if err != nil {
		return err
	}
	sub, err := manager.AddSubtask(cmd.Context(), id, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added subtask %s to task %s\n", sub.ID, id)
	return nil
}

func runSubtaskToggle(cmd *cobra.Command, args []string) error {
	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveTaskID(manager, args[0])
	if err != nil {
		return err
	}
	updated, err := manager.ToggleSubtask(cmd.Context(), id, args[1])
	if err != nil {
		return err
	}
	for _, sub := range updated.Subtasks {
		if sub.ID == args[1] {
			state := "open"
			if sub.Completed {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subtask %s is %s; task %s is %s\n", sub.ID, state, updated.ID, updated.Status)
			break
		}
	}
	return nil
}
