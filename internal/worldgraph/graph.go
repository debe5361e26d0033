// Package worldgraph builds the per-player region graph the fill algorithm
// walks: regions joined by one-way entrances, locations inside regions, and
// the items placed on them.
//
// A location starts out fillable (it has an id and no item). It may be
// turned into an event exactly once with [Location.ConvertToEvent], which
// drops the id and locks an item in place. Event items carry no id and are
// only visible to logic through [State].
package worldgraph

import (
	"cmp"
	"errors"
	"slices"

	"github.com/MrWong99/kirbyam/internal/gamedata"
)

// Well-known names.
const (
	// OriginRegion is the region every reachability search starts from.
	OriginRegion = "Menu"

	// Victory names both the completion location and its event item.
	Victory = "Victory"
)

// Sentinel errors returned by [Location.ConvertToEvent].
var (
	ErrAlreadyEvent = errors.New("worldgraph: location is already an event")
	ErrNilItem      = errors.New("worldgraph: event item must not be nil")
)

// Item is one item instance owned by a player.
type Item struct {
	Name           string
	Key            string
	Classification gamedata.Classification
	// ID is nil for event items.
	ID     *int64
	Player int
}

// NewEvent returns a progression item without an id.
func NewEvent(name string, player int) *Item {
	return &Item{Name: name, Classification: gamedata.Progression, Player: player}
}

// IsEvent reports whether the item has no id.
func (i *Item) IsEvent() bool { return i.ID == nil }

// Region is a node of the graph.
type Region struct {
	Name      string
	Key       string
	Player    int
	Exits     []*Entrance
	Locations []*Location
}

// Entrance is a one-way edge between two regions.
type Entrance struct {
	Name   string
	Parent *Region
	Target *Region
	Rule   Rule
}

// Location is a place that holds exactly one item.
type Location struct {
	Name        string
	Key         string
	ID          *int64
	Region      *Region
	Rule        Rule
	Item        *Item
	Locked      bool
	Category    gamedata.Category
	DefaultItem string
	BitIndex    *int
}

// IsEvent reports whether the location has no id.
func (l *Location) IsEvent() bool { return l.ID == nil }

// ConvertToEvent clears the location's id and locks item onto it.
func (l *Location) ConvertToEvent(item *Item) error {
	if item == nil {
		return ErrNilItem
	}
	if l.IsEvent() {
		return ErrAlreadyEvent
	}
	l.ID = nil
	l.Item = item
	l.Locked = true
	return nil
}

// Graph is the full region graph of one player.
type Graph struct {
	Player int

	regions         []*Region
	regionsByName   map[string]*Region
	locationsByName map[string]*Location
	goal            *Location
}

// Origin returns the [OriginRegion].
func (g *Graph) Origin() *Region { return g.regions[0] }

// Regions returns every region, origin first, then document order.
func (g *Graph) Regions() []*Region { return slices.Clone(g.regions) }

// Region looks up a region by name.
func (g *Graph) Region(name string) (*Region, bool) {
	r, ok := g.regionsByName[name]
	return r, ok
}

// Location looks up a location by name.
func (g *Graph) Location(name string) (*Location, bool) {
	l, ok := g.locationsByName[name]
	return l, ok
}

// Locations returns every location in region order, sorted by name within
// a region.
func (g *Graph) Locations() []*Location {
	var out []*Location
	for _, r := range g.regions {
		locs := slices.Clone(r.Locations)
		slices.SortFunc(locs, func(a, b *Location) int { return cmp.Compare(a.Name, b.Name) })
		out = append(out, locs...)
	}
	return out
}

// FillableLocations returns the locations that still have an id, in the
// same order as [Graph.Locations].
func (g *Graph) FillableLocations() []*Location {
	var out []*Location
	for _, l := range g.Locations() {
		if !l.IsEvent() {
			out = append(out, l)
		}
	}
	return out
}

// Goal returns the location whose reachability completes the game.
func (g *Graph) Goal() *Location { return g.goal }

// CompletionCondition is satisfied once the Victory event was collected.
func (g *Graph) CompletionCondition() Rule { return Has{Item: Victory} }
