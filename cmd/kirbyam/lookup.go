package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/kirbyam/internal/lookup"
)

func newLookupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup",
		Short: "Serve item and location lookups as MCP tools on stdio",
		Long: `Run an MCP server on stdin/stdout exposing lookup_item, lookup_location
and list_group for the loaded data. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return lookup.ServeStdio(ctx, lookup.NewService(d, reg))
		},
	}
}
