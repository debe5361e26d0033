package registry

import (
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/MrWong99/kirbyam/internal/gamedata"
)

// AreasGroup is the meta-group holding every location in any area group.
const AreasGroup = "Areas"

// categoryGroups names the group each location category contributes to.
// Categories without an entry only form tag groups.
var categoryGroups = map[gamedata.Category]string{
	gamedata.CategoryShard: "Mirror Shards",
}

// areaGroups maps each numbered area group to the map tags it collects.
var areaGroups = []struct {
	name string
	tags []string
}{
	{"0. Game Start", []string{"MAP_GAME_START"}},
	{"1. Rainbow Route", []string{"MAP_RAINBOW_ROUTE"}},
	{"2. Moonlight Mansion", []string{"MAP_MOONLIGHT_MANSION"}},
	{"3. Cabbage Cavern", []string{"MAP_CABBAGE_CAVERN"}},
	{"4. Mustard Mountain", []string{"MAP_MUSTARD_MOUNTAIN"}},
	{"5. Carrot Castle", []string{"MAP_CARROT_CASTLE"}},
	{"6. Olive Ocean", []string{"MAP_OLIVE_OCEAN"}},
	{"7. Peppermint Palace", []string{"MAP_PEPPERMINT_PALACE"}},
	{"8. Radish Ruins", []string{"MAP_RADISH_RUINS"}},
	{"9. Candy Constellation", []string{"MAP_CANDY_CONSTELLATION"}},
	{"10. Dimension Mirror", []string{"MAP_DIMENSION_MIRROR"}},
}

// AreaGroupNames returns the numbered area group names in game order.
func AreaGroupNames() []string {
	names := make([]string, len(areaGroups))
	for i, a := range areaGroups {
		names[i] = a.name
	}
	return names
}

type groupSet map[string]mapset.Set[string]

func (g groupSet) add(group, member string) {
	s, ok := g[group]
	if !ok {
		s = mapset.New[string]()
		g[group] = s
	}
	s.Put(member)
}

// sorted drops empty groups and converts the rest to sorted slices.
func (g groupSet) sorted() map[string][]string {
	out := make(map[string][]string, len(g))
	for name, s := range g {
		if s.Size() == 0 {
			continue
		}
		members := make([]string, 0, s.Size())
		s.Each(func(m string) { members = append(members, m) })
		slices.Sort(members)
		out[name] = members
	}
	return out
}

func itemGroups(items []gamedata.ItemRow) map[string][]string {
	g := make(groupSet)
	for _, it := range items {
		for _, tag := range it.Tags {
			g.add(tag, it.Name)
		}
	}
	return g.sorted()
}

func locationGroups(locations []gamedata.LocationRow) map[string][]string {
	g := make(groupSet)
	for _, name := range categoryGroups {
		g[name] = mapset.New[string]()
	}

	areasByTag := make(map[string][]string)
	for _, a := range areaGroups {
		g[a.name] = mapset.New[string]()
		for _, tag := range a.tags {
			areasByTag[tag] = append(areasByTag[tag], a.name)
		}
	}

	for _, loc := range locations {
		if name, ok := categoryGroups[loc.Category]; ok {
			g.add(name, loc.Name)
		}
		for _, tag := range loc.Tags {
			g.add(tag, loc.Name)
			for _, area := range areasByTag[tag] {
				g.add(area, loc.Name)
				g.add(AreasGroup, loc.Name)
			}
		}
	}
	return g.sorted()
}
