package ledger

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MrWong99/kirbyam/internal/idalloc"
	"github.com/MrWong99/kirbyam/internal/observe"
)

// Change is a key whose id differs from the published one.
type Change struct {
	Key       string
	Published int64
	Current   int64
}

// Takeover is a published id now allocated to a different key.
type Takeover struct {
	ID           int64
	PublishedKey string
	CurrentKey   string
}

// DriftError lists every way a build disagrees with the ledger.
type DriftError struct {
	Namespace string
	Changed   []Change
	Taken     []Takeover
}

func (e *DriftError) Error() string {
	var parts []string
	for _, c := range e.Changed {
		parts = append(parts, fmt.Sprintf("key %q changed id %d -> %d", c.Key, c.Published, c.Current))
	}
	for _, t := range e.Taken {
		parts = append(parts, fmt.Sprintf("id %d moved from %q to %q", t.ID, t.PublishedKey, t.CurrentKey))
	}
	return fmt.Sprintf("ledger: %s ids drifted: %s", e.Namespace, strings.Join(parts, "; "))
}

// Verify compares ids against what store has published in namespace.
// Published keys missing from ids are logged as warnings only; their ids
// stay reserved. Any change of a published pair is a [*DriftError].
func Verify(ctx context.Context, store Store, namespace string, ids map[string]int64) error {
	published, err := store.Published(ctx, namespace)
	if err != nil {
		return fmt.Errorf("ledger: verify %s: %w", namespace, err)
	}

	diff := idalloc.Diff(published, ids)
	drift := &DriftError{Namespace: namespace}
	for _, c := range diff.Changed {
		drift.Changed = append(drift.Changed, Change{Key: c.Key, Published: c.OldID, Current: c.NewID})
	}

	owner := make(map[int64]string, len(published))
	for k, id := range published {
		owner[id] = k
	}
	for _, key := range slices.Sorted(maps.Keys(ids)) {
		if k, ok := owner[ids[key]]; ok && k != key {
			drift.Taken = append(drift.Taken, Takeover{ID: ids[key], PublishedKey: k, CurrentKey: key})
		}
	}

	log := observe.Logger(ctx)
	for _, key := range diff.Removed {
		log.Warn("ledger: published key no longer present", "namespace", namespace, "key", key, "id", published[key])
	}
	log.Debug("ledger: verified", "namespace", namespace, "new_keys", len(diff.Added))

	if len(drift.Changed) > 0 || len(drift.Taken) > 0 {
		return drift
	}
	return nil
}

// Publish verifies ids and then records them.
func Publish(ctx context.Context, store Store, namespace string, ids map[string]int64) error {
	if err := Verify(ctx, store, namespace, ids); err != nil {
		return err
	}
	if err := store.Publish(ctx, namespace, ids); err != nil {
		return fmt.Errorf("ledger: publish %s: %w", namespace, err)
	}
	return nil
}
