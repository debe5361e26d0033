// Package apclient is the multiworld server side of the bridge: a websocket
// client that joins a slot, forwards received items to the game and reports
// location checks and goal completion.
//
// Every websocket message is a JSON array of packets, each tagged by "cmd".
// The handshake is RoomInfo (server), Connect (client), then Connected or
// ConnectionRefused (server).
package apclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/kirbyam/internal/bridge"
	"github.com/MrWong99/kirbyam/internal/observe"
	"github.com/MrWong99/kirbyam/internal/patch"
)

// ErrClosed is returned by sends after [Client.Close].
var ErrClosed = errors.New("apclient: connection closed")

// RefusedError is returned by [Dial] when the server rejects the slot.
type RefusedError struct {
	Errors []string
}

func (e *RefusedError) Error() string {
	return "apclient: connection refused: " + strings.Join(e.Errors, ", ")
}

// Config identifies the slot to join.
type Config struct {
	// URL is the server address, e.g. ws://localhost:38281.
	URL string

	// Name is the slot name, usually the base64 connect name from the patch.
	Name string

	Password string

	// UUID identifies this client. Empty generates a random one.
	UUID string
}

// Sink receives server state. [*bridge.Client] implements it.
type Sink interface {
	SyncReceived(all []bridge.ReceivedItem)
	SetServerLocations(missing, checked []int64)
}

// Client is a joined slot.
type Client struct {
	conn *websocket.Conn

	Room     RoomInfo
	Team     int
	Slot     int
	Players  []NetworkPlayer
	SlotData json.RawMessage

	mu       sync.Mutex
	missing  []int64
	checked  []int64
	received []bridge.ReceivedItem
	closed   bool
}

var _ bridge.Reporter = (*Client)(nil)

// Dial connects to the server and joins the slot in cfg.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.Name == "" {
		return nil, errors.New("apclient: url and name are required")
	}
	if cfg.UUID == "" {
		cfg.UUID = uuid.NewString()
	}

	conn, _, err := websocket.Dial(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("apclient: dial: %w", err)
	}
	conn.SetReadLimit(16 << 20)

	c := &Client{conn: conn}
	if err := c.handshake(ctx, cfg); err != nil {
		conn.Close(websocket.StatusNormalClosure, "handshake failed")
		return nil, err
	}
	observe.Logger(ctx).Info("apclient: connected",
		"seed", c.Room.SeedName,
		"team", c.Team,
		"slot", c.Slot,
		"missing", len(c.missing),
		"checked", len(c.checked),
	)
	return c, nil
}

func (c *Client) handshake(ctx context.Context, cfg Config) error {
	room, err := c.expect(ctx, "RoomInfo")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(room, &c.Room); err != nil {
		return fmt.Errorf("apclient: decode RoomInfo: %w", err)
	}

	if err := c.send(ctx, connectPacket{
		Cmd:           "Connect",
		Password:      cfg.Password,
		Game:          patch.Game,
		Name:          cfg.Name,
		UUID:          cfg.UUID,
		Version:       clientVersion,
		ItemsHandling: ItemsHandlingRemote,
		Tags:          []string{},
		SlotData:      true,
	}); err != nil {
		return err
	}

	for {
		packets, err := c.readPackets(ctx)
		if err != nil {
			return err
		}
		for _, p := range packets {
			switch p.cmd {
			case "Connected":
				var pk connectedPacket
				if err := json.Unmarshal(p.raw, &pk); err != nil {
					return fmt.Errorf("apclient: decode Connected: %w", err)
				}
				c.Team, c.Slot, c.Players, c.SlotData = pk.Team, pk.Slot, pk.Players, pk.SlotData
				c.missing, c.checked = pk.MissingLocations, pk.CheckedLocations
				return nil
			case "ConnectionRefused":
				var pk refusedPacket
				_ = json.Unmarshal(p.raw, &pk)
				return &RefusedError{Errors: pk.Errors}
			}
		}
	}
}

// expect reads until a packet with cmd arrives and returns it.
func (c *Client) expect(ctx context.Context, cmd string) (json.RawMessage, error) {
	for {
		packets, err := c.readPackets(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range packets {
			if p.cmd == cmd {
				return p.raw, nil
			}
		}
	}
}

type packet struct {
	cmd string
	raw json.RawMessage
}

func (c *Client) readPackets(ctx context.Context) ([]packet, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("apclient: read: %w", err)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("apclient: decode message: %w", err)
	}
	out := make([]packet, 0, len(raws))
	for _, raw := range raws {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		out = append(out, packet{cmd: env.Cmd, raw: raw})
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, packets ...any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data, err := json.Marshal(packets)
	if err != nil {
		return fmt.Errorf("apclient: marshal: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("apclient: write: %w", err)
	}
	return nil
}

// Locations returns the slot's missing and checked location ids.
func (c *Client) Locations() (missing, checked []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.missing), slices.Clone(c.checked)
}

// Received returns the received items seen so far.
func (c *Client) Received() []bridge.ReceivedItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.received)
}

// CheckLocations reports checked locations.
func (c *Client) CheckLocations(ctx context.Context, ids []int64) error {
	return c.send(ctx, locationChecksPacket{Cmd: "LocationChecks", Locations: ids})
}

// CompleteGoal tells the server this slot reached its goal.
func (c *Client) CompleteGoal(ctx context.Context) error {
	return c.send(ctx, statusUpdatePacket{Cmd: "StatusUpdate", Status: StatusGoal})
}

// Run reads server packets until ctx is done or the connection drops,
// forwarding item and location state to sink. It returns the context's
// error on cancellation.
func (c *Client) Run(ctx context.Context, sink Sink) error {
	missing, checked := c.Locations()
	sink.SetServerLocations(missing, checked)

	for {
		packets, err := c.readPackets(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, p := range packets {
			if err := c.handle(ctx, p, sink); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, p packet, sink Sink) error {
	log := observe.Logger(ctx)
	switch p.cmd {
	case "ReceivedItems":
		var pk receivedItemsPacket
		if err := json.Unmarshal(p.raw, &pk); err != nil {
			return fmt.Errorf("apclient: decode ReceivedItems: %w", err)
		}
		all, ok := c.applyReceived(pk)
		if !ok {
			log.Warn("apclient: received items out of sync, resyncing", "index", pk.Index)
			return c.send(ctx, syncPacket{Cmd: "Sync"})
		}
		sink.SyncReceived(all)

	case "RoomUpdate":
		var pk roomUpdatePacket
		if err := json.Unmarshal(p.raw, &pk); err != nil {
			return fmt.Errorf("apclient: decode RoomUpdate: %w", err)
		}
		if len(pk.CheckedLocations) == 0 {
			return nil
		}
		sink.SetServerLocations(c.markChecked(pk.CheckedLocations))

	default:
		log.Debug("apclient: ignoring packet", "cmd", p.cmd)
	}
	return nil
}

// applyReceived merges a ReceivedItems packet. Index 0 replaces the list,
// the current length appends, anything else is a gap.
func (c *Client) applyReceived(pk receivedItemsPacket) ([]bridge.ReceivedItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch pk.Index {
	case 0:
		c.received = c.received[:0]
	case len(c.received):
	default:
		return nil, false
	}
	for _, it := range pk.Items {
		c.received = append(c.received, bridge.ReceivedItem{ItemID: it.Item, Player: it.Player})
	}
	return slices.Clone(c.received), true
}

func (c *Client) markChecked(ids []int64) (missing, checked []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if !slices.Contains(c.checked, id) {
			c.checked = append(c.checked, id)
		}
		c.missing = slices.DeleteFunc(c.missing, func(m int64) bool { return m == id })
	}
	return slices.Clone(c.missing), slices.Clone(c.checked)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}
