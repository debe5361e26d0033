package worldgraph

import (
	"github.com/zyedidia/generic/mapset"
)

// State tracks the items one player has collected and which regions that
// makes reachable. It is not safe for concurrent use.
type State struct {
	graph *Graph
	items map[string]int

	reachable mapset.Set[*Region]
	stale     bool

	swept mapset.Set[*Location]
}

// NewState returns an empty state for g.
func NewState(g *Graph) *State {
	return &State{
		graph: g,
		items: make(map[string]int),
		stale: true,
		swept: mapset.New[*Location](),
	}
}

// Collect adds item to the state.
func (s *State) Collect(item *Item) {
	s.items[item.Name]++
	s.stale = true
}

// Has reports whether at least one copy of the named item was collected.
func (s *State) Has(name string) bool { return s.items[name] > 0 }

// Count returns how many copies of the named item were collected.
func (s *State) Count(name string) int { return s.items[name] }

// CanReachRegion reports whether the named region is reachable from the
// origin.
func (s *State) CanReachRegion(name string) bool {
	r, ok := s.graph.Region(name)
	if !ok {
		return false
	}
	s.update()
	return s.reachable.Has(r)
}

// CanReachLocation reports whether the named location's region is
// reachable and its rule is satisfied.
func (s *State) CanReachLocation(name string) bool {
	l, ok := s.graph.Location(name)
	if !ok {
		return false
	}
	return s.canReach(l)
}

func (s *State) canReach(l *Location) bool {
	s.update()
	return s.reachable.Has(l.Region) && l.Rule.Satisfied(s)
}

// Sweep collects the locked items on every reachable location until no
// new location becomes reachable. It returns the number of items
// collected.
func (s *State) Sweep() int {
	total := 0
	for {
		n := 0
		for _, l := range s.graph.Locations() {
			if !l.Locked || l.Item == nil || s.swept.Has(l) {
				continue
			}
			if s.canReach(l) {
				s.swept.Put(l)
				s.Collect(l.Item)
				n++
			}
		}
		if n == 0 {
			return total
		}
		total += n
	}
}

// update recomputes the reachable regions with a breadth-first search from
// the origin. Entrances whose rule fails are retried until a pass makes no
// progress, since a rule may depend on reachability found later. Rules
// evaluated during the search see the partial result.
func (s *State) update() {
	if !s.stale {
		return
	}
	s.stale = false

	origin := s.graph.Origin()
	s.reachable = mapset.New[*Region]()
	s.reachable.Put(origin)
	queue := []*Region{origin}
	var blocked []*Entrance

	for {
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, e := range current.Exits {
				if s.reachable.Has(e.Target) {
					continue
				}
				if e.Rule.Satisfied(s) {
					s.reachable.Put(e.Target)
					queue = append(queue, e.Target)
				} else {
					blocked = append(blocked, e)
				}
			}
		}

		var still []*Entrance
		for _, e := range blocked {
			if s.reachable.Has(e.Target) {
				continue
			}
			if e.Rule.Satisfied(s) {
				s.reachable.Put(e.Target)
				queue = append(queue, e.Target)
			} else {
				still = append(still, e)
			}
		}
		blocked = still
		if len(queue) == 0 {
			return
		}
	}
}
