package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/amonks/taskmirror/task"
)

// seedFile is the YAML layout read by tm import and written by tm export.
type seedFile struct {
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	Priority    string   `yaml:"priority,omitempty"`
	Status      string   `yaml:"status,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Due         string   `yaml:"due,omitempty"`
	Repeat      string   `yaml:"repeat,omitempty"`
	Subtasks    []string `yaml:"subtasks,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create tasks from a YAML file",
	Long: `Create tasks from a YAML file ('-' reads stdin):

  tasks:
    - title: Buy milk
      priority: high
      category: Home
      tags: [errands]
      due: 2026-05-11
      subtasks: [Oat, Whole]`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importDryRun bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the loaded tasks as YAML",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(importCmd, exportCmd)
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the file without creating tasks")
}

func readSeedFile(path string, stdin io.Reader) (seedFile, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return seedFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seedFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return seed, nil
}

// createOptions validates a seed entry and returns the options to create
// it with.
func (s seedTask) createOptions(now time.Time) (task.CreateOptions, error) {
	opts := task.CreateOptions{
		Description: s.Description,
		Category:    s.Category,
		Tags:        s.Tags,
		Subtasks:    s.Subtasks,
	}
	if err := task.ValidateTitle(s.Title); err != nil {
		return opts, err
	}
	if s.Priority != "" {
		priority, err := task.ParsePriorityInput(s.Priority)
		if err != nil {
			return opts, err
		}
		opts.Priority = priority
	}
	if s.Repeat != "" {
		rule, err := task.ParseRepeatRuleInput(s.Repeat)
		if err != nil {
			return opts, err
		}
		opts.Repeat = rule
	}
	if s.Due != "" {
		due, err := parseDue(s.Due, now)
		if err != nil {
			return opts, err
		}
		opts.DueDate = &due
	}
	if s.Status != "" {
		status, err := task.ParseStatusInput(s.Status)
		if err != nil {
			return opts, err
		}
		opts.Status = status
	}
	return opts, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	seed, err := readSeedFile(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	now := time.Now()
	type planned struct {
		title string
		opts  task.CreateOptions
	}
	plan := make([]planned, 0, len(seed.Tasks))
	for i, entry := range seed.Tasks {
		opts, err := entry.createOptions(now)
		if err != nil {
			return fmt.Errorf("task %d (%q): %w", i+1, entry.Title, err)
		}
		plan = append(plan, planned{title: entry.Title, opts: opts})
	}

	out := cmd.OutOrStdout()
	if importDryRun {
		fmt.Fprintf(out, "%d tasks are valid\n", len(plan))
		return nil
	}

	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, p := range plan {
		if _, err := manager.CreateTask(cmd.Context(), p.title, p.opts); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Imported %d tasks\n", len(plan))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	manager, _, cleanup, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	var seed seedFile
	for _, t := range manager.AllTasks() {
		seed.Tasks = append(seed.Tasks, seedFromTask(t))
	}
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(seed); err != nil {
		return err
	}
	return encoder.Close()
}

func seedFromTask(t task.Task) seedTask {
	entry := seedTask{
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Category:    t.Category,
		Tags:        t.Tags,
	}
	if t.DueDate != nil {
		entry.Due = t.DueDate.UTC().Format(time.RFC3339)
	}
	if t.Repeat != task.RepeatNone {
		entry.Repeat = string(t.Repeat)
	}
	for _, sub := range t.Subtasks {
		entry.Subtasks = append(entry.Subtasks, sub.Title)
	}
	return entry
}
