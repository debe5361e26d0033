package lookup_test

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/lookup"
	"github.com/MrWong99/kirbyam/internal/registry"
)

func newService(t *testing.T) (*lookup.Service, *registry.Registry) {
	t.Helper()
	d, err := gamedata.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	reg, err := registry.New(d)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return lookup.NewService(d, reg), reg
}

func TestService_Item(t *testing.T) {
	t.Parallel()

	s, reg := newService(t)
	shardID, _ := reg.ItemID("Mirror Shard (Olive Ocean)")

	tests := []struct {
		name    string
		q       lookup.Query
		want    string
		wantErr string
	}{
		{"by name", lookup.Query{Name: "Vitality Up"}, "Vitality Up", ""},
		{"by id", lookup.Query{ID: shardID}, "Mirror Shard (Olive Ocean)", ""},
		{"typo", lookup.Query{Name: "Vitality Upp"}, "", `did you mean "Vitality Up"?`},
		{"unknown id", lookup.Query{ID: 1}, "", "no item with id 1"},
		{"empty", lookup.Query{}, "", "name or id is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.Item(tc.q)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("Item error = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Item: %v", err)
			}
			if got.Name != tc.want {
				t.Errorf("name = %q, want %q", got.Name, tc.want)
			}
		})
	}
}

func TestService_ItemGroups(t *testing.T) {
	t.Parallel()

	s, _ := newService(t)
	got, err := s.Item(lookup.Query{Name: "Mirror Shard (Moonlight Mansion)"})
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got.Key != "MIRROR_SHARD_MOONLIGHT_MANSION" || got.Classification != "progression" {
		t.Errorf("item = %+v", got)
	}
	if !slices.Equal(got.Groups, []string{"pool", "shard"}) {
		t.Errorf("groups = %v", got.Groups)
	}
}

func TestService_Location(t *testing.T) {
	t.Parallel()

	s, _ := newService(t)
	got, err := s.Location(lookup.Query{Name: "Moonlight Mansion - King Golem"})
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if got.Category != "shard" || got.Region == "" || got.ID == 0 {
		t.Errorf("location = %+v", got)
	}
	for _, g := range []string{"Mirror Shards", "2. Moonlight Mansion", "Areas"} {
		if !slices.Contains(got.Groups, g) {
			t.Errorf("groups %v missing %q", got.Groups, g)
		}
	}
}

func TestService_Group(t *testing.T) {
	t.Parallel()

	s, _ := newService(t)
	got, err := s.Group(lookup.GroupQuery{Kind: "location", Group: "Mirror Shards"})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(got.Members) != 8 {
		t.Errorf("members = %d, want 8", len(got.Members))
	}

	if _, err := s.Group(lookup.GroupQuery{Kind: "location", Group: "Mirror Shard"}); err == nil ||
		!strings.Contains(err.Error(), `did you mean "Mirror Shards"?`) {
		t.Errorf("typo error = %v", err)
	}
	if _, err := s.Group(lookup.GroupQuery{Kind: "enemy", Group: "x"}); err == nil {
		t.Error("unknown kind accepted")
	}
}

func connect(t *testing.T, s *lookup.Service) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientT, serverT := mcp.NewInMemoryTransports()

	ss, err := lookup.NewServer(s).Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestServer_Tools(t *testing.T) {
	t.Parallel()

	s, _ := newService(t)
	cs := connect(t, s)
	ctx := context.Background()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"list_group", "lookup_item", "lookup_location"}) {
		t.Errorf("tools = %v", names)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "lookup_item",
		Arguments: map[string]any{"name": "1 Up"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("lookup_item failed: %+v", res.Content)
	}
	var info lookup.ItemInfo
	text := res.Content[0].(*mcp.TextContent).Text
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if info.Key != "ONE_UP" || info.ID == 0 {
		t.Errorf("info = %+v", info)
	}
}

func TestServer_ToolError(t *testing.T) {
	t.Parallel()

	s, _ := newService(t)
	cs := connect(t, s)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "lookup_location",
		Arguments: map[string]any{"name": "Rainbow Rout"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("unknown location did not produce a tool error")
	}
}
