// Package main implements the tm CLI tool.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tm",
	Short:         "taskmirror - a live, cached view of your tasks",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Global flags override config file and environment settings.
var (
	flagUser     string
	flagBackend  string
	flagAddr     string
	flagDB       string
	flagLogLevel string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagUser, "user", "u", "", "User whose tasks to load (overrides session.user)")
	flags.StringVar(&flagBackend, "backend", "", "Document store: sqlite, mongo, or http")
	flags.StringVar(&flagAddr, "addr", "", "Backend server address or port")
	flags.StringVar(&flagDB, "db", "", "SQLite database path")
	flags.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}
