package worldgraph

import (
	"errors"
	"fmt"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/registry"
)

// ReferenceError reports a key that does not resolve to a defined entity.
type ReferenceError struct {
	Kind       string // "region", "location", "goal" or "item"
	From       string
	Key        string
	Suggestion string
}

func (e *ReferenceError) Error() string {
	msg := fmt.Sprintf("worldgraph: %s [%s] referenced by [%s] was not defined", e.Kind, e.Key, e.From)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean [%s]?)", e.Suggestion)
	}
	return msg
}

// ClaimError reports a location listed by two regions.
type ClaimError struct {
	Location string
	First    string
	Second   string
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("worldgraph: location [%s] was claimed by multiple regions (%s, %s)", e.Location, e.First, e.Second)
}

// ReservedNameError reports a data entity using a name the graph reserves
// for itself ([OriginRegion], [Victory]) or already gave to another
// location.
type ReservedNameError struct {
	Kind  string // "region", "location" or "event"
	Key   string
	Name  string
	Owner string
}

func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("worldgraph: %s [%s] uses the name %q, which is taken by %s", e.Kind, e.Key, e.Name, e.Owner)
}

// BuildOptions selects the per-player variations of the graph.
type BuildOptions struct {
	// Start is the region key the origin connects to. Empty uses the
	// data's start region.
	Start string

	// Goal is the goal key whose location completes the game. Empty uses
	// the first goal.
	Goal string
}

// Build creates the graph of one player. Every region row becomes a region
// and every declared exit a one-way entrance. Locations get their ids from
// reg. Region events become id-less locations locked to an event item of
// the same name. The origin region holds the Victory location whose rule
// is reaching the goal location.
//
// Names the graph reserves ([OriginRegion] for regions, [Victory] for
// locations) and default items that are not item keys are fatal.
func Build(d *gamedata.Data, reg *registry.Registry, player int, opts BuildOptions) (*Graph, error) {
	g := &Graph{
		Player:          player,
		regionsByName:   make(map[string]*Region, len(d.Regions)+1),
		locationsByName: make(map[string]*Location, len(d.Locations)+1),
	}
	origin := &Region{Name: OriginRegion, Player: player}
	g.regions = append(g.regions, origin)
	g.regionsByName[origin.Name] = origin

	var errs []error
	byKey := make(map[string]*Region, len(d.Regions))
	for _, row := range d.Regions {
		r := &Region{Name: row.Name, Key: row.Key, Player: player}
		byKey[row.Key] = r
		if row.Name == OriginRegion {
			errs = append(errs, &ReservedNameError{Kind: "region", Key: row.Key, Name: row.Name, Owner: "the origin region"})
			continue
		}
		g.regions = append(g.regions, r)
		g.regionsByName[r.Name] = r
	}

	regionKeys := d.RegionKeys()
	locationKeys := d.LocationKeys()

	start := opts.Start
	if start == "" {
		start = d.Start
	}
	if target, ok := byKey[start]; ok {
		connect(origin, target)
	} else {
		errs = append(errs, reference("region", OriginRegion, start, regionKeys))
	}

	claimedBy := make(map[string]string, len(d.Locations))
	for _, row := range d.Regions {
		parent := byKey[row.Key]
		for _, exit := range row.Exits {
			target, ok := byKey[exit]
			if !ok {
				errs = append(errs, reference("region", row.Key, exit, regionKeys))
				continue
			}
			connect(parent, target)
		}

		for _, key := range row.Locations {
			meta, ok := d.Location(key)
			if !ok {
				errs = append(errs, reference("location", row.Key, key, locationKeys))
				continue
			}
			if other, dup := claimedBy[key]; dup {
				errs = append(errs, &ClaimError{Location: key, First: other, Second: row.Key})
				continue
			}
			claimedBy[key] = row.Key
			if meta.Name == Victory {
				errs = append(errs, &ReservedNameError{Kind: "location", Key: key, Name: meta.Name, Owner: "the completion location"})
				continue
			}
			if meta.DefaultItem != "" {
				if _, ok := d.Item(meta.DefaultItem); !ok {
					errs = append(errs, reference("item", key, meta.DefaultItem, d.ItemKeys()))
				}
			}

			loc := &Location{
				Name:        meta.Name,
				Key:         meta.Key,
				Region:      parent,
				Rule:        Always{},
				Category:    meta.Category,
				DefaultItem: meta.DefaultItem,
				BitIndex:    meta.BitIndex,
			}
			if id, ok := reg.LocationIDByKey(key); ok {
				loc.ID = &id
			}
			parent.Locations = append(parent.Locations, loc)
			g.locationsByName[loc.Name] = loc
		}
	}

	// Region events go in after every data location so a clash is found
	// regardless of region order.
	for _, row := range d.Regions {
		parent := byKey[row.Key]
		for _, name := range row.Events {
			if owner := g.nameOwner(name); owner != "" {
				errs = append(errs, &ReservedNameError{Kind: "event", Key: row.Key, Name: name, Owner: owner})
				continue
			}
			ev := &Location{
				Name:   name,
				Region: parent,
				Rule:   Always{},
				Item:   NewEvent(name, player),
				Locked: true,
			}
			parent.Locations = append(parent.Locations, ev)
			g.locationsByName[name] = ev
		}
	}

	goal, err := resolveGoal(d, opts.Goal)
	if err != nil {
		errs = append(errs, err)
	} else if target, ok := d.Location(goal.Location); !ok {
		errs = append(errs, reference("location", goal.Key, goal.Location, locationKeys))
	} else if _, claimed := claimedBy[goal.Location]; !claimed {
		errs = append(errs, fmt.Errorf("worldgraph: goal [%s] location [%s] is not in any region", goal.Key, goal.Location))
	} else {
		g.goal = g.locationsByName[target.Name]
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	victory := &Location{
		Name:   Victory,
		Region: origin,
		Rule:   CanReachLocation{Location: g.goal.Name},
		Item:   NewEvent(Victory, player),
		Locked: true,
	}
	origin.Locations = append(origin.Locations, victory)
	g.locationsByName[victory.Name] = victory
	return g, nil
}

// nameOwner describes what already holds name as a location, or returns "".
func (g *Graph) nameOwner(name string) string {
	if name == Victory {
		return "the completion location"
	}
	if l, ok := g.locationsByName[name]; ok {
		if l.Key != "" {
			return "location [" + l.Key + "]"
		}
		return "another event in region [" + l.Region.Key + "]"
	}
	return ""
}

func resolveGoal(d *gamedata.Data, key string) (gamedata.GoalRow, error) {
	if key == "" {
		if len(d.Goals) == 0 {
			return gamedata.GoalRow{}, errors.New("worldgraph: no goals defined")
		}
		return d.Goals[0], nil
	}
	g, ok := d.Goal(key)
	if !ok {
		keys := make([]string, len(d.Goals))
		for i, row := range d.Goals {
			keys[i] = row.Key
		}
		return gamedata.GoalRow{}, reference("goal", "options", key, keys)
	}
	return g, nil
}

func connect(from, to *Region) {
	from.Exits = append(from.Exits, &Entrance{
		Name:   from.Name + " -> " + to.Name,
		Parent: from,
		Target: to,
		Rule:   Always{},
	})
}

func reference(kind, from, key string, candidates []string) *ReferenceError {
	e := &ReferenceError{Kind: kind, From: from, Key: key}
	if s, ok := registry.Suggest(key, candidates); ok {
		e.Suggestion = s
	}
	return e
}
