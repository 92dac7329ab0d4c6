package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/amonks/taskmirror/internal/listflags"
	"github.com/amonks/taskmirror/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the task list every time it changes",
	Long: `Keep a live subscription open and print the filtered task list every
time the store pushes a change. Stops on interrupt.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

const watchReconnectDelay = time.Second

var watchFilters listflags.Filters

func init() {
	rootCmd.AddCommand(watchCmd)

	listflags.AddFilterFlags(watchCmd, &watchFilters)
}

func runWatch(cmd *cobra.Command, args []string) error {
	changes := make(chan struct{}, 1)
	onChange := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	manager, env, cleanup, err := openSession(cmd.Context(), onChange)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := applyListFilters(manager, watchFilters); err != nil {
		return err
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	out := cmd.OutOrStdout()
	render := func() {
		tasks := manager.Tasks()
		now := time.Now()
		fmt.Fprintf(out, "%s %s\n", ui.Heading(now.Format(time.TimeOnly)), ui.Muted(fmt.Sprintf("%d tasks", len(tasks))))
		if len(tasks) > 0 {
			fmt.Fprint(out, formatTaskTable(tasks, idHighlighter(manager.AllTasks()), now))
		}
		fmt.Fprintln(out)
	}
	render()

	for {
		select {
		case <-interrupts:
			return nil
		case <-cmd.Context().Done():
			return nil
		case <-changes:
			if err := manager.Err(); err != nil {
				env.logger.Warn("subscription failed, reconnecting", "err", err, "delay", watchReconnectDelay)
				select {
				case <-interrupts:
					return nil
				case <-time.After(watchReconnectDelay):
				}
				if err := manager.LoadTasks(cmd.Context(), env.cfg.Session.User); err != nil {
					return err
				}
				continue
			}
			render()
		}
	}
}
