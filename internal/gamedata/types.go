// Package gamedata loads the declarative world data for Kirby & The Amazing
// Mirror: items, locations, goals, and regions.
//
// Each document is a YAML mapping carrying an integer schema_version and a
// list of entity rows. [Load] reads all four documents, validates every row
// and cross-checks the schema versions. Any problem aborts the load; there
// are no partial results. The returned [*Data] is never mutated afterwards
// and may be shared between player worlds.
//
// Document layout:
//
//	schema_version: 1
//	items:
//	  - key: SHARD_1
//	    name: "Mirror Shard 1"
//	    classification: progression
//	    tags: [shard, pool]
//	    addresses: {na: 0x0202C000, eu: null}
package gamedata

import (
	"slices"
	"strings"
)

// Classification grades an item for the fill algorithm.
type Classification string

const (
	Progression Classification = "progression"
	Useful      Classification = "useful"
	Filler      Classification = "filler"
	Trap        Classification = "trap"
)

// IsValid reports whether c is a recognised classification.
func (c Classification) IsValid() bool {
	switch c {
	case Progression, Useful, Filler, Trap:
		return true
	}
	return false
}

// ParseClassification normalises s (trimmed, case-insensitive). An empty
// string yields [Filler].
func ParseClassification(s string) Classification {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Filler
	}
	return Classification(s)
}

// Locale identifies a ROM release.
type Locale string

const (
	LocaleNA Locale = "na"
	LocaleEU Locale = "eu"
	LocaleJP Locale = "jp"
	LocaleVC Locale = "vc"
)

// Locales lists every recognised locale in document order.
var Locales = []Locale{LocaleNA, LocaleEU, LocaleJP, LocaleVC}

// AddressMap holds per-locale addresses. A present key with a nil value
// means the address is explicitly unknown for that release.
type AddressMap map[Locale]*int64

// Lookup returns the address for l and whether one is set.
func (a AddressMap) Lookup(l Locale) (int64, bool) {
	v, ok := a[l]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Category groups locations that share a configuration switch.
type Category string

const (
	CategoryNone   Category = ""
	CategoryShard  Category = "shard"
	CategoryBoss   Category = "boss"
	CategoryChest  Category = "chest"
	CategorySwitch Category = "switch"
)

// Well-known tags.
const (
	// TagPool marks an item as a candidate for the generation pool.
	TagPool = "pool"

	// TagPadding marks the single item used to fill a pool deficit.
	TagPadding = "padding"
)

// ItemRow is one entry of items.yaml.
type ItemRow struct {
	Key            string         `yaml:"key" validate:"required"`
	Name           string         `yaml:"name" validate:"required"`
	Classification Classification `yaml:"classification" validate:"oneof=progression useful filler trap"`
	Tags           []string       `yaml:"tags" validate:"dive,required"`
	Addresses      AddressMap     `yaml:"addresses"`
}

// HasTag reports whether the row carries tag.
func (r ItemRow) HasTag(tag string) bool { return hasTag(r.Tags, tag) }

// LocationRow is one entry of locations.yaml.
type LocationRow struct {
	Key         string     `yaml:"key" validate:"required"`
	Name        string     `yaml:"name" validate:"required"`
	Category    Category   `yaml:"category" validate:"omitempty,oneof=shard boss chest switch"`
	DefaultItem string     `yaml:"default_item"`
	BitIndex    *int       `yaml:"bit_index" validate:"omitempty,min=0,max=31"`
	Tags        []string   `yaml:"tags" validate:"dive,required"`
	Addresses   AddressMap `yaml:"addresses"`
}

// HasTag reports whether the row carries tag.
func (r LocationRow) HasTag(tag string) bool { return hasTag(r.Tags, tag) }

// GoalRow is one entry of goals.yaml. Location names the location whose
// reachability completes the goal.
type GoalRow struct {
	Key       string     `yaml:"key" validate:"required"`
	Name      string     `yaml:"name" validate:"required"`
	Location  string     `yaml:"location" validate:"required"`
	Tags      []string   `yaml:"tags"`
	Addresses AddressMap `yaml:"addresses"`
}

// RegionRow is one entry of regions.yaml. Exits and Locations hold keys.
type RegionRow struct {
	Key       string   `yaml:"key" validate:"required"`
	Name      string   `yaml:"name" validate:"required"`
	Exits     []string `yaml:"exits"`
	Locations []string `yaml:"locations"`
	Events    []string `yaml:"events"`
}

// Data is the immutable result of a successful load.
type Data struct {
	SchemaVersion int

	// Start is the key of the region the origin region connects to.
	Start string

	Items     []ItemRow
	Locations []LocationRow
	Goals     []GoalRow
	Regions   []RegionRow

	itemsByKey     map[string]int
	locationsByKey map[string]int
	goalsByKey     map[string]int
	regionsByKey   map[string]int
}

// Item returns the item row with the given key.
func (d *Data) Item(key string) (ItemRow, bool) {
	i, ok := d.itemsByKey[key]
	if !ok {
		return ItemRow{}, false
	}
	return d.Items[i], true
}

// Location returns the location row with the given key.
func (d *Data) Location(key string) (LocationRow, bool) {
	i, ok := d.locationsByKey[key]
	if !ok {
		return LocationRow{}, false
	}
	return d.Locations[i], true
}

// Goal returns the goal row with the given key.
func (d *Data) Goal(key string) (GoalRow, bool) {
	i, ok := d.goalsByKey[key]
	if !ok {
		return GoalRow{}, false
	}
	return d.Goals[i], true
}

// Region returns the region row with the given key.
func (d *Data) Region(key string) (RegionRow, bool) {
	i, ok := d.regionsByKey[key]
	if !ok {
		return RegionRow{}, false
	}
	return d.Regions[i], true
}

// ItemKeys returns every item key in document order.
func (d *Data) ItemKeys() []string {
	keys := make([]string, len(d.Items))
	for i, r := range d.Items {
		keys[i] = r.Key
	}
	return keys
}

// LocationKeys returns every location key in document order.
func (d *Data) LocationKeys() []string {
	keys := make([]string, len(d.Locations))
	for i, r := range d.Locations {
		keys[i] = r.Key
	}
	return keys
}

// RegionKeys returns every region key in document order.
func (d *Data) RegionKeys() []string {
	keys := make([]string, len(d.Regions))
	for i, r := range d.Regions {
		keys[i] = r.Key
	}
	return keys
}

func (d *Data) index() {
	d.itemsByKey = make(map[string]int, len(d.Items))
	for i, r := range d.Items {
		d.itemsByKey[r.Key] = i
	}
	d.locationsByKey = make(map[string]int, len(d.Locations))
	for i, r := range d.Locations {
		d.locationsByKey[r.Key] = i
	}
	d.goalsByKey = make(map[string]int, len(d.Goals))
	for i, r := range d.Goals {
		d.goalsByKey[r.Key] = i
	}
	d.regionsByKey = make(map[string]int, len(d.Regions))
	for i, r := range d.Regions {
		d.regionsByKey[r.Key] = i
	}
}

func hasTag(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}
