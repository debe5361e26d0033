package main

import (
	"context"
	"fmt"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/kirbyam/internal/apclient"
	"github.com/MrWong99/kirbyam/internal/observe"
)

func newConnectCommand(a *app) *cobra.Command {
	var (
		slot    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join a slot on the multiworld server and report its locations",
		Long: `Dial bridge.server_url, join a slot with bridge.password and print the
room seed, the slot number and which locations the server still counts
as missing. Location ids are named from the loaded data.

Examples:
  kirbyam connect --config kirbyam.yaml
  kirbyam connect --config kirbyam.yaml --slot Kirby`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := a.cfg.Bridge.ServerURL
			if url == "" {
				return fmt.Errorf("bridge.server_url is not configured")
			}
			if slot == "" && len(a.cfg.Players) > 0 {
				slot = a.cfg.Players[0].Name
			}
			if slot == "" {
				return fmt.Errorf("--slot is required when no players are configured")
			}
			_, reg, err := a.loadRegistry()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			ctx, span := observe.StartSpan(ctx, "kirbyam.connect")

			c, err := apclient.Dial(ctx, apclient.Config{URL: url, Name: slot, Password: a.cfg.Bridge.Password})
			observe.EndSpan(span, err)
			if err != nil {
				return err
			}
			defer c.Close()

			missing, checked := c.Locations()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed %s, team %d, slot %d: %d missing, %d checked\n",
				c.Room.SeedName, c.Team, c.Slot, len(missing), len(checked))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATE\tID\tLOCATION")
			for _, row := range []struct {
				state string
				ids   []int64
			}{{"missing", missing}, {"checked", checked}} {
				for _, id := range slices.Sorted(slices.Values(row.ids)) {
					name, ok := reg.LocationName(id)
					if !ok {
						name = "(unknown to this data)"
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n", row.state, id, name)
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&slot, "slot", "", "slot name to join (default: first configured player)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up when the join takes longer")
	return cmd
}
