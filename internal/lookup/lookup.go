// Package lookup serves the entity registry as MCP tools, so trackers and
// assistants can resolve item and location names and ids without loading
// the world themselves.
//
// Tools:
//
//	lookup_item      {name | id}     → item key, id, classification, groups
//	lookup_location  {name | id}     → location key, id, category, region, groups
//	list_group       {kind, group}   → sorted group members
//
// Unknown names fail with a did-you-mean suggestion.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/registry"
)

// Version is reported in the MCP implementation info.
const Version = "1.0.0"

// Query selects an entity by name or id. Name wins when both are set.
type Query struct {
	Name string `json:"name,omitempty" jsonschema:"exact entity name"`
	ID   int64  `json:"id,omitempty" jsonschema:"numeric id"`
}

// ItemInfo is the lookup_item result.
type ItemInfo struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	ID             int64    `json:"id"`
	Classification string   `json:"classification"`
	Groups         []string `json:"groups"`
}

// LocationInfo is the lookup_location result.
type LocationInfo struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	ID       int64    `json:"id"`
	Category string   `json:"category,omitempty"`
	Region   string   `json:"region,omitempty"`
	Groups   []string `json:"groups"`
}

// GroupQuery names a group.
type GroupQuery struct {
	Kind  string `json:"kind" jsonschema:"item or location"`
	Group string `json:"group" jsonschema:"group name"`
}

// GroupInfo is the list_group result.
type GroupInfo struct {
	Kind    string   `json:"kind"`
	Group   string   `json:"group"`
	Members []string `json:"members"`
}

// Service answers lookups against one registry.
type Service struct {
	data     *gamedata.Data
	reg      *registry.Registry
	region   map[string]string // location key → region name
	itemGrp  map[string][]string
	locGrp   map[string][]string
	itemKeys map[string]string // name → key
	locKeys  map[string]string
}

// NewService indexes d and reg.
func NewService(d *gamedata.Data, reg *registry.Registry) *Service {
	s := &Service{
		data:     d,
		reg:      reg,
		region:   make(map[string]string),
		itemGrp:  reg.ItemGroups(),
		locGrp:   reg.LocationGroups(),
		itemKeys: make(map[string]string, len(d.Items)),
		locKeys:  make(map[string]string, len(d.Locations)),
	}
	for _, r := range d.Regions {
		for _, key := range r.Locations {
			if _, ok := s.region[key]; !ok {
				s.region[key] = r.Name
			}
		}
	}
	for _, it := range d.Items {
		s.itemKeys[it.Name] = it.Key
	}
	for _, loc := range d.Locations {
		s.locKeys[loc.Name] = loc.Key
	}
	return s
}

// Item resolves q to an item.
func (s *Service) Item(q Query) (ItemInfo, error) {
	name, err := resolve("item", q, s.reg.ItemName, s.reg.ItemNames())
	if err != nil {
		return ItemInfo{}, err
	}
	row, _ := s.data.Item(s.itemKeys[name])
	id, _ := s.reg.ItemID(name)
	return ItemInfo{
		Key:            row.Key,
		Name:           name,
		ID:             id,
		Classification: string(row.Classification),
		Groups:         memberOf(s.itemGrp, name),
	}, nil
}

// Location resolves q to a location.
func (s *Service) Location(q Query) (LocationInfo, error) {
	name, err := resolve("location", q, s.reg.LocationName, s.reg.LocationNames())
	if err != nil {
		return LocationInfo{}, err
	}
	row, _ := s.data.Location(s.locKeys[name])
	id, _ := s.reg.LocationID(name)
	return LocationInfo{
		Key:      row.Key,
		Name:     name,
		ID:       id,
		Category: string(row.Category),
		Region:   s.region[row.Key],
		Groups:   memberOf(s.locGrp, name),
	}, nil
}

// Group lists the members of an item or location group.
func (s *Service) Group(q GroupQuery) (GroupInfo, error) {
	var groups map[string][]string
	switch q.Kind {
	case "item":
		groups = s.itemGrp
	case "location":
		groups = s.locGrp
	default:
		return GroupInfo{}, fmt.Errorf("lookup: kind must be item or location, got %q", q.Kind)
	}
	members, ok := groups[q.Group]
	if !ok {
		return GroupInfo{}, notFound(q.Kind+" group", q.Group, slices.Sorted(maps.Keys(groups)))
	}
	return GroupInfo{Kind: q.Kind, Group: q.Group, Members: members}, nil
}

func resolve(kind string, q Query, byID func(int64) (string, bool), names []string) (string, error) {
	if q.Name != "" {
		if slices.Contains(names, q.Name) {
			return q.Name, nil
		}
		return "", notFound(kind, q.Name, names)
	}
	if q.ID != 0 {
		if name, ok := byID(q.ID); ok {
			return name, nil
		}
		return "", fmt.Errorf("lookup: no %s with id %d", kind, q.ID)
	}
	return "", errors.New("lookup: name or id is required")
}

func notFound(kind, name string, candidates []string) error {
	if s, ok := registry.Suggest(name, candidates); ok {
		return fmt.Errorf("lookup: no %s named %q (did you mean %q?)", kind, name, s)
	}
	return fmt.Errorf("lookup: no %s named %q", kind, name)
}

func memberOf(groups map[string][]string, name string) []string {
	out := []string{}
	for g, members := range groups {
		if slices.Contains(members, name) {
			out = append(out, g)
		}
	}
	slices.Sort(out)
	return out
}

// NewServer returns an MCP server exposing s.
func NewServer(s *Service) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "kirbyam-lookup", Version: Version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "lookup_item",
		Description: "Look up a Kirby & The Amazing Mirror item by exact name or numeric id.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, q Query) (*mcp.CallToolResult, ItemInfo, error) {
		info, err := s.Item(q)
		return nil, info, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "lookup_location",
		Description: "Look up a Kirby & The Amazing Mirror location by exact name or numeric id.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, q Query) (*mcp.CallToolResult, LocationInfo, error) {
		info, err := s.Location(q)
		return nil, info, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_group",
		Description: "List the members of an item or location group, e.g. location group \"Mirror Shards\".",
	}, func(_ context.Context, _ *mcp.CallToolRequest, q GroupQuery) (*mcp.CallToolResult, GroupInfo, error) {
		info, err := s.Group(q)
		return nil, info, err
	})

	return srv
}

// ServeStdio runs the lookup server on stdin/stdout until ctx is done or
// the client disconnects.
func ServeStdio(ctx context.Context, s *Service) error {
	if err := NewServer(s).Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("lookup: serve: %w", err)
	}
	return nil
}
