// Package pool balances one player's item pool against the locations that
// still need an item.
package pool

import (
	"fmt"
	"strings"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/worldgraph"
)

// PaddingError reports that the data does not define exactly one padding
// item.
type PaddingError struct {
	Names []string
}

func (e *PaddingError) Error() string {
	if len(e.Names) == 0 {
		return fmt.Sprintf("pool: no item is tagged %q", gamedata.TagPadding)
	}
	return fmt.Sprintf("pool: %d items are tagged %q, want exactly one: %s",
		len(e.Names), gamedata.TagPadding, strings.Join(e.Names, ", "))
}

// CountMismatchError reports more pool candidates than fillable locations.
type CountMismatchError struct {
	Candidates int
	Locations  int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("pool: %d candidate items do not fit into %d fillable locations", e.Candidates, e.Locations)
}

// ResolvePadding returns the single item tagged padding.
func ResolvePadding(items []gamedata.ItemRow) (gamedata.ItemRow, error) {
	var found []gamedata.ItemRow
	for _, it := range items {
		if it.HasTag(gamedata.TagPadding) {
			found = append(found, it)
		}
	}
	if len(found) != 1 {
		names := make([]string, len(found))
		for i, it := range found {
			names[i] = it.Name
		}
		return gamedata.ItemRow{}, &PaddingError{Names: names}
	}
	return found[0], nil
}

// Candidates returns the rows of items tagged pool, minus one copy of the
// default item of every event-locked location in events.
func Candidates(items []gamedata.ItemRow, events []*worldgraph.Location) []gamedata.ItemRow {
	locked := make(map[string]int, len(events))
	for _, l := range events {
		if l.IsEvent() && l.DefaultItem != "" {
			locked[l.DefaultItem]++
		}
	}
	var out []gamedata.ItemRow
	for _, it := range items {
		if !it.HasTag(gamedata.TagPool) {
			continue
		}
		if locked[it.Key] > 0 {
			locked[it.Key]--
			continue
		}
		out = append(out, it)
	}
	return out
}

// Build returns exactly one item per fillable location: every candidate in
// order, then fresh padding items for the remaining deficit. padding is
// only called when there is a deficit, and a deficit with a nil padding
// func is a [PaddingError]. More candidates than locations is an error.
func Build(fillable []*worldgraph.Location, candidates []*worldgraph.Item, padding func() *worldgraph.Item) ([]*worldgraph.Item, error) {
	if len(candidates) > len(fillable) {
		return nil, &CountMismatchError{Candidates: len(candidates), Locations: len(fillable)}
	}
	if len(candidates) < len(fillable) && padding == nil {
		return nil, &PaddingError{}
	}
	out := make([]*worldgraph.Item, 0, len(fillable))
	out = append(out, candidates...)
	for len(out) < len(fillable) {
		out = append(out, padding())
	}
	return out, nil
}
