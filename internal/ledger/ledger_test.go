package ledger_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/kirbyam/internal/ledger"
)

func TestMemStore_PublishAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := ledger.NewMemStore()

	got, err := s.Published(ctx, "item")
	if err != nil || len(got) != 0 {
		t.Fatalf("empty namespace = %v, %v", got, err)
	}

	if err := s.Publish(ctx, "item", map[string]int64{"A": 1, "B": 2}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	// Republishing the same pairs plus a new one is fine.
	if err := s.Publish(ctx, "item", map[string]int64{"A": 1, "C": 3}); err != nil {
		t.Fatalf("Publish again: %v", err)
	}
	got, _ = s.Published(ctx, "item")
	if len(got) != 3 || got["C"] != 3 {
		t.Errorf("published = %v", got)
	}

	// Namespaces are independent.
	if err := s.Publish(ctx, "location", map[string]int64{"A": 99}); err != nil {
		t.Errorf("other namespace: %v", err)
	}

	// Returned maps are copies.
	got["A"] = 42
	again, _ := s.Published(ctx, "item")
	if again["A"] != 1 {
		t.Error("Published exposes internal state")
	}
}

func TestMemStore_RejectsReassignment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name string
		ids  map[string]int64
	}{
		{"key gets new id", map[string]int64{"A": 5}},
		{"id gets new key", map[string]int64{"Z": 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := ledger.NewMemStore()
			if err := s.Publish(ctx, "item", map[string]int64{"A": 1}); err != nil {
				t.Fatalf("seed: %v", err)
			}
			err := s.Publish(ctx, "item", tc.ids)
			if !errors.Is(err, ledger.ErrReassigned) {
				t.Fatalf("Publish = %v, want ErrReassigned", err)
			}
			got, _ := s.Published(ctx, "item")
			if len(got) != 1 || got["A"] != 1 {
				t.Errorf("ledger changed after rejected publish: %v", got)
			}
		})
	}
}

func TestMemStore_ZeroValue(t *testing.T) {
	t.Parallel()

	var s ledger.MemStore
	if err := s.Publish(context.Background(), "item", map[string]int64{"A": 1}); err != nil {
		t.Fatalf("Publish on zero value: %v", err)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := ledger.NewMemStore()
	if err := s.Publish(ctx, "item", map[string]int64{"A": 1, "B": 2, "GONE": 3}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name        string
		ids         map[string]int64
		wantChanged int
		wantTaken   int
	}{
		{"same ids plus new and removed", map[string]int64{"A": 1, "B": 2, "NEW": 10}, 0, 0},
		{"changed id", map[string]int64{"A": 7, "B": 2}, 1, 0},
		{"swapped ids", map[string]int64{"A": 2, "B": 1}, 2, 2},
		{"removed id reused", map[string]int64{"A": 1, "B": 2, "NEW": 3}, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ledger.Verify(ctx, s, "item", tc.ids)
			if tc.wantChanged == 0 && tc.wantTaken == 0 {
				if err != nil {
					t.Fatalf("Verify = %v, want nil", err)
				}
				return
			}
			var drift *ledger.DriftError
			if !errors.As(err, &drift) {
				t.Fatalf("Verify = %v, want *DriftError", err)
			}
			if len(drift.Changed) != tc.wantChanged || len(drift.Taken) != tc.wantTaken {
				t.Errorf("drift = %+v", drift)
			}
			if !strings.HasPrefix(err.Error(), "ledger: item ids drifted:") {
				t.Errorf("message = %q", err)
			}
		})
	}
}

func TestPublish_VerifiesFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := ledger.NewMemStore()
	if err := ledger.Publish(ctx, s, "location", map[string]int64{"L1": 100}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	err := ledger.Publish(ctx, s, "location", map[string]int64{"L1": 101})
	var drift *ledger.DriftError
	if !errors.As(err, &drift) {
		t.Fatalf("Publish = %v, want *DriftError", err)
	}
}
