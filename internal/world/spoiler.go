package world

// Spoiler is a JSON-friendly summary of a built world.
type Spoiler struct {
	Player     int                 `json:"player"`
	Name       string              `json:"name"`
	Goal       string              `json:"goal"`
	Shards     ShardMode           `json:"shards"`
	Pool       []SpoilerItem       `json:"pool"`
	Fillable   []SpoilerLocation   `json:"fillable_locations"`
	Events     []SpoilerLocation   `json:"events"`
	LocalItems []string            `json:"local_items,omitempty"`
	ItemGroups map[string][]string `json:"item_groups"`
	LocGroups  map[string][]string `json:"location_groups"`
}

// SpoilerItem is one pool entry.
type SpoilerItem struct {
	Name           string `json:"name"`
	ID             *int64 `json:"id,omitempty"`
	Classification string `json:"classification"`
}

// SpoilerLocation is one location with its region and, for events, the
// locked item.
type SpoilerLocation struct {
	Name   string `json:"name"`
	Region string `json:"region"`
	ID     *int64 `json:"id,omitempty"`
	Item   string `json:"item,omitempty"`
}

// Spoiler summarises w.
func (w *World) Spoiler() Spoiler {
	s := Spoiler{
		Player:     w.Player,
		Name:       w.Name,
		Goal:       w.Options.Goal,
		Shards:     w.Options.Shards,
		LocalItems: w.LocalItems,
		ItemGroups: w.Registry.ItemGroups(),
		LocGroups:  w.Registry.LocationGroups(),
	}
	for _, it := range w.Pool {
		s.Pool = append(s.Pool, SpoilerItem{Name: it.Name, ID: it.ID, Classification: string(it.Classification)})
	}
	for _, l := range w.Graph.Locations() {
		sl := SpoilerLocation{Name: l.Name, Region: l.Region.Name, ID: l.ID}
		if l.IsEvent() {
			if l.Item != nil {
				sl.Item = l.Item.Name
			}
			s.Events = append(s.Events, sl)
			continue
		}
		s.Fillable = append(s.Fillable, sl)
	}
	return s
}
