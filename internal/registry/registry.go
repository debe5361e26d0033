// Package registry publishes the numeric identifiers and name groups that
// the multiworld server and clients see for one dataset.
//
// A [Registry] is built once from loaded game data and never changes. All
// accessors return copies so callers may modify what they receive.
package registry

import (
	"fmt"
	"maps"
	"slices"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/idalloc"
)

// Registry maps item and location names to ids and exposes the derived
// groups.
type Registry struct {
	itemKeyToID      map[string]int64
	locationKeyToID  map[string]int64
	itemNameToID     map[string]int64
	locationNameToID map[string]int64
	itemIDToName     map[int64]string
	locationIDToName map[int64]string

	itemGroups     map[string][]string
	locationGroups map[string][]string
}

// New allocates ids for every item and location in d and derives the
// groups. It fails with an [*idalloc.CollisionError] when two keys hash to
// the same id.
func New(d *gamedata.Data) (*Registry, error) {
	itemIDs, err := idalloc.Allocate(d.ItemKeys(), idalloc.ItemBaseID, idalloc.ItemNamespace)
	if err != nil {
		return nil, fmt.Errorf("registry: items: %w", err)
	}
	locationIDs, err := idalloc.Allocate(d.LocationKeys(), idalloc.LocationBaseID, idalloc.LocationNamespace)
	if err != nil {
		return nil, fmt.Errorf("registry: locations: %w", err)
	}

	r := &Registry{
		itemKeyToID:      itemIDs,
		locationKeyToID:  locationIDs,
		itemNameToID:     make(map[string]int64, len(d.Items)),
		locationNameToID: make(map[string]int64, len(d.Locations)),
		itemIDToName:     make(map[int64]string, len(d.Items)),
		locationIDToName: make(map[int64]string, len(d.Locations)),
	}
	for _, it := range d.Items {
		id := itemIDs[it.Key]
		r.itemNameToID[it.Name] = id
		r.itemIDToName[id] = it.Name
	}
	for _, loc := range d.Locations {
		id := locationIDs[loc.Key]
		r.locationNameToID[loc.Name] = id
		r.locationIDToName[id] = loc.Name
	}

	r.itemGroups = itemGroups(d.Items)
	r.locationGroups = locationGroups(d.Locations)
	return r, nil
}

// ItemID returns the id of the item with the given name.
func (r *Registry) ItemID(name string) (int64, bool) {
	id, ok := r.itemNameToID[name]
	return id, ok
}

// LocationID returns the id of the location with the given name.
func (r *Registry) LocationID(name string) (int64, bool) {
	id, ok := r.locationNameToID[name]
	return id, ok
}

// ItemIDByKey returns the id allocated to an item key.
func (r *Registry) ItemIDByKey(key string) (int64, bool) {
	id, ok := r.itemKeyToID[key]
	return id, ok
}

// LocationIDByKey returns the id allocated to a location key.
func (r *Registry) LocationIDByKey(key string) (int64, bool) {
	id, ok := r.locationKeyToID[key]
	return id, ok
}

// ItemName resolves an item id back to its name.
func (r *Registry) ItemName(id int64) (string, bool) {
	name, ok := r.itemIDToName[id]
	return name, ok
}

// LocationName resolves a location id back to its name.
func (r *Registry) LocationName(id int64) (string, bool) {
	name, ok := r.locationIDToName[id]
	return name, ok
}

// ItemNameToID returns a copy of the item name → id map.
func (r *Registry) ItemNameToID() map[string]int64 { return maps.Clone(r.itemNameToID) }

// LocationNameToID returns a copy of the location name → id map.
func (r *Registry) LocationNameToID() map[string]int64 { return maps.Clone(r.locationNameToID) }

// ItemKeyToID returns a copy of the item key → id map.
func (r *Registry) ItemKeyToID() map[string]int64 { return maps.Clone(r.itemKeyToID) }

// LocationKeyToID returns a copy of the location key → id map.
func (r *Registry) LocationKeyToID() map[string]int64 { return maps.Clone(r.locationKeyToID) }

// ItemGroups returns every item group with its members sorted by name.
func (r *Registry) ItemGroups() map[string][]string { return cloneGroups(r.itemGroups) }

// LocationGroups returns every location group with its members sorted by
// name.
func (r *Registry) LocationGroups() map[string][]string { return cloneGroups(r.locationGroups) }

// ItemNames returns every item name, sorted.
func (r *Registry) ItemNames() []string { return slices.Sorted(maps.Keys(r.itemNameToID)) }

// LocationNames returns every location name, sorted.
func (r *Registry) LocationNames() []string { return slices.Sorted(maps.Keys(r.locationNameToID)) }

func cloneGroups(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for name, members := range in {
		out[name] = slices.Clone(members)
	}
	return out
}
