// Package ledger keeps the record of published ids.
//
// Once a seed has been generated with an id it must never change, or old
// multiworld sessions break. The ledger stores every published key → id
// assignment per namespace and [Verify] compares a new build against it.
// The ledger is append-only: a published key is never reassigned.
package ledger

import (
	"context"
	"errors"
)

// ErrReassigned is returned by [Store.Publish] when an id or key is already
// published with a different partner.
var ErrReassigned = errors.New("ledger: published id reassigned")

// Store persists published ids. Implementations must be safe for
// concurrent use.
type Store interface {
	// Published returns every published key → id pair in namespace. An
	// unknown namespace yields an empty map.
	Published(ctx context.Context, namespace string) (map[string]int64, error)

	// Publish records ids in namespace. Pairs already published unchanged
	// are skipped. A key published with another id, or an id published for
	// another key, fails with [ErrReassigned] and nothing is written.
	Publish(ctx context.Context, namespace string, ids map[string]int64) error
}
