package pool_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/pool"
	"github.com/MrWong99/kirbyam/internal/worldgraph"
)

func id(v int64) *int64 { return &v }

func locations(n int) []*worldgraph.Location {
	out := make([]*worldgraph.Location, n)
	for i := range out {
		out[i] = &worldgraph.Location{Name: string(rune('A' + i)), ID: id(int64(i))}
	}
	return out
}

func TestBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		locations  int
		candidates []string
		want       []string
		wantErr    bool
	}{
		{"deficit padded", 3, []string{"Shard"}, []string{"Shard", "1 Up", "1 Up"}, false},
		{"exact fit", 2, []string{"Shard", "Battery"}, []string{"Shard", "Battery"}, false},
		{"nothing to fill", 0, nil, []string{}, false},
		{"only padding", 2, nil, []string{"1 Up", "1 Up"}, false},
		{"overflow", 1, []string{"Shard", "Battery"}, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var candidates []*worldgraph.Item
			for _, name := range tc.candidates {
				candidates = append(candidates, &worldgraph.Item{Name: name, ID: id(1)})
			}
			calls := 0
			padding := func() *worldgraph.Item {
				calls++
				return &worldgraph.Item{Name: "1 Up", ID: id(2)}
			}

			got, err := pool.Build(locations(tc.locations), candidates, padding)
			if tc.wantErr {
				var mismatch *pool.CountMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("Build error = %v, want *CountMismatchError", err)
				}
				if mismatch.Candidates != len(tc.candidates) || mismatch.Locations != tc.locations {
					t.Errorf("mismatch = %+v", mismatch)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: unexpected error: %v", err)
			}
			if len(got) != tc.locations {
				t.Fatalf("len(pool) = %d, want %d", len(got), tc.locations)
			}
			for i, it := range got {
				if it.Name != tc.want[i] {
					t.Errorf("pool[%d] = %q, want %q", i, it.Name, tc.want[i])
				}
			}
			if want := tc.locations - len(tc.candidates); calls != want {
				t.Errorf("padding called %d times, want %d", calls, want)
			}
		})
	}
}

func TestBuild_PaddingCopiesAreDistinct(t *testing.T) {
	t.Parallel()

	got, err := pool.Build(locations(3), nil, func() *worldgraph.Item {
		return &worldgraph.Item{Name: "1 Up"}
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got[0] == got[1] || got[1] == got[2] {
		t.Error("padding entries share one item instance")
	}
}

func TestBuild_NilPadding(t *testing.T) {
	t.Parallel()

	shard := []*worldgraph.Item{{Name: "Shard", ID: id(1)}}

	got, err := pool.Build(locations(1), shard, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("exact fit without padding = %v, %v; want one item", got, err)
	}

	_, err = pool.Build(locations(3), shard, nil)
	var pe *pool.PaddingError
	if !errors.As(err, &pe) {
		t.Fatalf("Build error = %v, want *PaddingError", err)
	}
}

func TestResolvePadding(t *testing.T) {
	t.Parallel()

	up := gamedata.ItemRow{Key: "ONE_UP", Name: "1 Up", Tags: []string{gamedata.TagPadding}}
	tomato := gamedata.ItemRow{Key: "TOMATO", Name: "Max Tomato", Tags: []string{gamedata.TagPadding}}
	shard := gamedata.ItemRow{Key: "SHARD", Name: "Shard", Tags: []string{gamedata.TagPool}}

	tests := []struct {
		name      string
		items     []gamedata.ItemRow
		want      string
		wantNames int
		wantErr   bool
	}{
		{"exactly one", []gamedata.ItemRow{shard, up}, "1 Up", 0, false},
		{"none", []gamedata.ItemRow{shard}, "", 0, true},
		{"two", []gamedata.ItemRow{up, shard, tomato}, "", 2, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := pool.ResolvePadding(tc.items)
			if tc.wantErr {
				var pe *pool.PaddingError
				if !errors.As(err, &pe) {
					t.Fatalf("error = %v, want *PaddingError", err)
				}
				if len(pe.Names) != tc.wantNames {
					t.Errorf("names = %v, want %d entries", pe.Names, tc.wantNames)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePadding: %v", err)
			}
			if got.Name != tc.want {
				t.Errorf("padding = %q, want %q", got.Name, tc.want)
			}
		})
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	items := []gamedata.ItemRow{
		{Key: "SHARD_1", Name: "Shard 1", Tags: []string{"shard", gamedata.TagPool}},
		{Key: "SHARD_2", Name: "Shard 2", Tags: []string{"shard", gamedata.TagPool}},
		{Key: "BATTERY", Name: "Battery", Tags: []string{gamedata.TagPool}},
		{Key: "ONE_UP", Name: "1 Up", Tags: []string{gamedata.TagPadding}},
	}

	event := &worldgraph.Location{Name: "Shard Room 1", DefaultItem: "SHARD_1"}
	fillable := &worldgraph.Location{Name: "Shard Room 2", DefaultItem: "SHARD_2", ID: id(7)}

	got := pool.Candidates(items, []*worldgraph.Location{event, fillable})
	var names []string
	for _, it := range got {
		names = append(names, it.Name)
	}
	want := []string{"Shard 2", "Battery"}
	if len(names) != len(want) {
		t.Fatalf("candidates = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("candidates[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
