package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrWong99/kirbyam/internal/idalloc"
	"github.com/MrWong99/kirbyam/internal/ledger"
)

// newLedgerCommand groups the published id ledger operations.
func newLedgerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Published id ledger operations",
		Long: `Compare the ids of the current data with the ids already published to
players, and record new ones.

Once an id is published it must never change. verify reports keys whose
id moved and ids that another key took over; publish records every new
key after the same check.

Examples:
  kirbyam ledger verify --config kirbyam.yaml
  kirbyam ledger publish --config kirbyam.yaml`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check the current ids against the published ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLedger(cmd.Context(), cmd.OutOrStdout(), ledger.Verify, "verified")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "publish",
		Short: "Verify, then record the current ids as published",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLedger(cmd.Context(), cmd.OutOrStdout(), ledger.Publish, "published")
		},
	})
	return cmd
}

type ledgerOp func(ctx context.Context, store ledger.Store, namespace string, ids map[string]int64) error

func (a *app) runLedger(ctx context.Context, out io.Writer, op ledgerOp, verb string) error {
	_, reg, err := a.loadRegistry()
	if err != nil {
		return err
	}
	spaces := []struct {
		namespace string
		ids       map[string]int64
	}{
		{idalloc.ItemNamespace, reg.ItemKeyToID()},
		{idalloc.LocationNamespace, reg.LocationKeyToID()},
	}
	return a.withLedger(ctx, func(s ledger.Store) error {
		var errs []error
		for _, sp := range spaces {
			if err := op(ctx, s, sp.namespace, sp.ids); err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(out, "%s: %d ids %s\n", sp.namespace, len(sp.ids), verb)
		}
		return errors.Join(errs...)
	})
}
