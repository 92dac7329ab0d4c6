package main

import (
	"github.com/spf13/cobra"

	"github.com/amonks/taskmirror/backend"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured document store over HTTP",
	Long: `Serve the configured sqlite or mongo store so that other tm processes
can use it with --backend http. Stops on interrupt.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer env.close()

	addr, err := backend.ResolveAddr(env.cfg.Backend.Addr)
	if err != nil {
		return err
	}
	server, err := backend.NewServer(env.store, backend.ServerOptions{Logger: env.logger})
	if err != nil {
		return err
	}
	return server.Serve(cmd.Context(), addr)
}
