package apclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/kirbyam/internal/apclient"
	"github.com/MrWong99/kirbyam/internal/bridge"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServer runs handler for every accepted connection.
func startServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, conn *websocket.Conn, packets ...map[string]any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(packets)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("send: %v (may be expected on close)", err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) []map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Errorf("receive: %v", err)
		return nil
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Errorf("receive unmarshal: %v", err)
	}
	return out
}

// handshake plays the server side of a successful join.
func handshake(t *testing.T, conn *websocket.Conn, connect chan<- map[string]any) {
	t.Helper()
	send(t, conn, map[string]any{"cmd": "RoomInfo", "seed_name": "S1", "games": []string{"Kirby & The Amazing Mirror"}})
	pk := receive(t, conn)
	if len(pk) == 1 && connect != nil {
		connect <- pk[0]
	}
	send(t, conn, map[string]any{
		"cmd":               "Connected",
		"team":              0,
		"slot":              3,
		"players":           []map[string]any{{"team": 0, "slot": 3, "alias": "Kirby", "name": "Kirby"}},
		"missing_locations": []int64{100, 101},
		"checked_locations": []int64{102},
		"slot_data":         map[string]any{"goal": "GOAL_DARK_MIND"},
	})
}

type sink struct {
	mu       sync.Mutex
	received [][]bridge.ReceivedItem
	missing  []int64
	checked  []int64
}

func (s *sink) SyncReceived(all []bridge.ReceivedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, all)
}

func (s *sink) SetServerLocations(missing, checked []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing, s.checked = missing, checked
}

func (s *sink) snapshot() ([][]bridge.ReceivedItem, []int64, []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.received), slices.Clone(s.missing), slices.Clone(s.checked)
}

func TestDial_Handshake(t *testing.T) {
	t.Parallel()

	connect := make(chan map[string]any, 1)
	srv := startServer(t, func(conn *websocket.Conn) {
		handshake(t, conn, connect)
		<-conn.CloseRead(context.Background()).Done()
	})

	ctx := context.Background()
	c, err := apclient.Dial(ctx, apclient.Config{URL: wsURL(srv), Name: "q6vN", UUID: "u-1"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	pk := <-connect
	if pk["cmd"] != "Connect" || pk["game"] != "Kirby & The Amazing Mirror" || pk["name"] != "q6vN" || pk["uuid"] != "u-1" {
		t.Errorf("Connect packet = %v", pk)
	}
	if pk["items_handling"] != float64(apclient.ItemsHandlingRemote) {
		t.Errorf("items_handling = %v", pk["items_handling"])
	}

	if c.Slot != 3 || c.Room.SeedName != "S1" || len(c.Players) != 1 {
		t.Errorf("client = slot %d seed %q players %v", c.Slot, c.Room.SeedName, c.Players)
	}
	missing, checked := c.Locations()
	if !slices.Equal(missing, []int64{100, 101}) || !slices.Equal(checked, []int64{102}) {
		t.Errorf("locations = %v / %v", missing, checked)
	}
	if !strings.Contains(string(c.SlotData), "GOAL_DARK_MIND") {
		t.Errorf("slot data = %s", c.SlotData)
	}
}

func TestDial_Refused(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn) {
		send(t, conn, map[string]any{"cmd": "RoomInfo"})
		receive(t, conn)
		send(t, conn, map[string]any{"cmd": "ConnectionRefused", "errors": []string{"InvalidSlot"}})
		<-conn.CloseRead(context.Background()).Done()
	})

	_, err := apclient.Dial(context.Background(), apclient.Config{URL: wsURL(srv), Name: "nobody"})
	var refused *apclient.RefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("Dial error = %v, want *RefusedError", err)
	}
	if !slices.Equal(refused.Errors, []string{"InvalidSlot"}) {
		t.Errorf("errors = %v", refused.Errors)
	}
}

func TestDial_RequiresNameAndURL(t *testing.T) {
	t.Parallel()

	if _, err := apclient.Dial(context.Background(), apclient.Config{URL: "ws://x"}); err == nil {
		t.Error("Dial accepted an empty name")
	}
}

func TestRun_ForwardsItemsAndChecks(t *testing.T) {
	t.Parallel()

	fromClient := make(chan []map[string]any, 4)
	srv := startServer(t, func(conn *websocket.Conn) {
		handshake(t, conn, nil)
		send(t, conn, map[string]any{"cmd": "ReceivedItems", "index": 0, "items": []map[string]any{
			{"item": 7, "location": 1, "player": 2, "flags": 1},
		}})
		send(t, conn,
			map[string]any{"cmd": "PrintJSON", "data": []any{}},
			map[string]any{"cmd": "ReceivedItems", "index": 1, "items": []map[string]any{
				{"item": 8, "location": 2, "player": 4, "flags": 0},
			}},
		)
		send(t, conn, map[string]any{"cmd": "RoomUpdate", "checked_locations": []int64{100}})

		for range 2 {
			fromClient <- receive(t, conn)
		}
		<-conn.CloseRead(context.Background()).Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := apclient.Dial(ctx, apclient.Config{URL: wsURL(srv), Name: "Kirby"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	s := &sink{}
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, s) }()

	if err := c.CheckLocations(ctx, []int64{101}); err != nil {
		t.Fatalf("CheckLocations: %v", err)
	}
	if err := c.CompleteGoal(ctx); err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}

	first := <-fromClient
	if len(first) != 1 || first[0]["cmd"] != "LocationChecks" {
		t.Errorf("first packet = %v", first)
	}
	second := <-fromClient
	if len(second) != 1 || second[0]["cmd"] != "StatusUpdate" || second[0]["status"] != float64(apclient.StatusGoal) {
		t.Errorf("second packet = %v", second)
	}

	deadline := time.After(3 * time.Second)
	for {
		received, missing, checked := s.snapshot()
		if len(received) == 2 && slices.Contains(checked, int64(100)) {
			want := []bridge.ReceivedItem{{ItemID: 7, Player: 2}, {ItemID: 8, Player: 4}}
			if !slices.Equal(received[1], want) {
				t.Errorf("received = %v, want %v", received[1], want)
			}
			if !slices.Equal(missing, []int64{101}) {
				t.Errorf("missing = %v, want [101]", missing)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sink never caught up: %v / %v", received, checked)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRun_ResyncsOnGap(t *testing.T) {
	t.Parallel()

	syncSeen := make(chan map[string]any, 1)
	srv := startServer(t, func(conn *websocket.Conn) {
		handshake(t, conn, nil)
		send(t, conn, map[string]any{"cmd": "ReceivedItems", "index": 5, "items": []map[string]any{{"item": 9, "player": 1}}})
		pk := receive(t, conn)
		if len(pk) == 1 {
			syncSeen <- pk[0]
		}
		<-conn.CloseRead(context.Background()).Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := apclient.Dial(ctx, apclient.Config{URL: wsURL(srv), Name: "Kirby"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	go func() { _ = c.Run(ctx, &sink{}) }()

	select {
	case pk := <-syncSeen:
		if pk["cmd"] != "Sync" {
			t.Errorf("packet = %v, want Sync", pk)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no Sync sent after an index gap")
	}
	if got := c.Received(); len(got) != 0 {
		t.Errorf("received = %v, want gap ignored", got)
	}
}

func TestClose_RejectsSends(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn) {
		handshake(t, conn, nil)
		<-conn.CloseRead(context.Background()).Done()
	})
	c, err := apclient.Dial(context.Background(), apclient.Config{URL: wsURL(srv), Name: "Kirby"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.CheckLocations(context.Background(), []int64{1}); !errors.Is(err, apclient.ErrClosed) {
		t.Errorf("CheckLocations after Close = %v, want ErrClosed", err)
	}
}
