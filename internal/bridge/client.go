package bridge

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/zyedidia/generic/mapset"
	"golang.org/x/time/rate"

	"github.com/MrWong99/kirbyam/internal/gamedata"
	"github.com/MrWong99/kirbyam/internal/observe"
	"github.com/MrWong99/kirbyam/internal/registry"
)

// DefaultPollHz is the poll rate when none is configured.
const DefaultPollHz = 2

// ReceivedItem is one entry of the server's received items list.
type ReceivedItem struct {
	ItemID int64
	Player int
}

// Reporter forwards game events to the multiworld server.
type Reporter interface {
	CheckLocations(ctx context.Context, ids []int64) error
	CompleteGoal(ctx context.Context) error
}

// LocationBits maps each location bit index to its location id. The first
// location claiming a bit wins.
func LocationBits(d *gamedata.Data, reg *registry.Registry) map[int]int64 {
	bits := make(map[int]int64)
	for _, loc := range d.Locations {
		if loc.BitIndex == nil {
			continue
		}
		if _, taken := bits[*loc.BitIndex]; taken {
			continue
		}
		if id, ok := reg.LocationIDByKey(loc.Key); ok {
			bits[*loc.BitIndex] = id
		}
	}
	return bits
}

// Option configures a [Client].
type Option func(*Client)

// WithLayout overrides the RAM layout. Zero addresses keep their defaults.
func WithLayout(l Layout) Option {
	return func(c *Client) { c.layout = l.withDefaults() }
}

// WithPollHz sets how often [Client.Run] polls the game.
func WithPollHz(hz float64) Option {
	return func(c *Client) {
		if hz > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(hz), 1)
		}
	}
}

// WithMetrics records bridge metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLinkBreaker sets how many consecutive failed polls take the emulator
// link down and how long it stays down before a probe.
func WithLinkBreaker(maxFailures int, cooldown time.Duration) Option {
	return func(c *Client) { c.link = newBreaker(maxFailures, cooldown) }
}

// Client is the game side of one player's connection.
//
// [Client.SyncReceived] and [Client.SetServerLocations] may be called from
// the server connection's goroutine while [Client.Run] polls. DeliverPending
// and PollChecks must not run concurrently with themselves.
type Client struct {
	mem      Memory
	reporter Reporter
	bits     map[int]int64
	layout   Layout
	limiter  *rate.Limiter
	metrics  *observe.Metrics
	link     *breaker

	mu         sync.Mutex
	queued     int
	pending    []ReceivedItem
	serverLocs mapset.Set[int64]
	checked    mapset.Set[int64]
	unsent     []int64
	last       *uint32
	goalSent   bool
}

// New returns a client reading and writing game memory through mem and
// reporting to r. bits usually comes from [LocationBits].
func New(mem Memory, r Reporter, bits map[int]int64, opts ...Option) *Client {
	c := &Client{
		mem:        mem,
		reporter:   r,
		bits:       maps.Clone(bits),
		layout:     DefaultLayout(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultPollHz), 1),
		serverLocs: mapset.New[int64](),
		checked:    mapset.New[int64](),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.link == nil {
		c.link = newBreaker(0, 0)
	}
	return c
}

// SetServerLocations replaces the set of location ids that exist in this
// player's slot. Checks outside it are never reported. Ids the server
// already counts as checked are not reported again.
func (c *Client) SetServerLocations(missing, checked []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverLocs = mapset.New[int64]()
	for _, id := range missing {
		c.serverLocs.Put(id)
	}
	for _, id := range checked {
		c.serverLocs.Put(id)
		c.checked.Put(id)
	}
}

// SyncReceived queues the entries of the server's full received items list
// that have not been queued yet.
func (c *Client) SyncReceived(all []ReceivedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.queued < len(all) {
		c.pending = append(c.pending, all[c.queued])
		c.queued++
	}
}

// Pending returns the number of items waiting for the mailbox.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// LinkState reports the emulator link breaker state.
func (c *Client) LinkState() LinkState { return c.link.current() }

// DeliverPending writes the oldest pending item into the mailbox if the
// mailbox is empty. The item is dropped from the queue only after all three
// writes succeeded. It reports whether an item was delivered.
func (c *Client) DeliverPending(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return false, nil
	}
	next := c.pending[0]
	c.mu.Unlock()

	flag, err := c.mem.ReadU32(ctx, c.layout.IncomingFlag)
	if err != nil {
		return false, fmt.Errorf("bridge: read mailbox flag: %w", err)
	}
	if flag != 0 {
		return false, nil
	}
	if err := c.mem.WriteU32(ctx, c.layout.IncomingItem, uint32(next.ItemID)); err != nil {
		return false, fmt.Errorf("bridge: write item id: %w", err)
	}
	if err := c.mem.WriteU32(ctx, c.layout.IncomingPlayer, uint32(next.Player)); err != nil {
		return false, fmt.Errorf("bridge: write item sender: %w", err)
	}
	if err := c.mem.WriteU32(ctx, c.layout.IncomingFlag, 1); err != nil {
		return false, fmt.Errorf("bridge: write mailbox flag: %w", err)
	}

	c.mu.Lock()
	c.pending = c.pending[1:]
	c.mu.Unlock()
	c.metrics.ItemsDelivered.Add(ctx, 1)
	observe.Logger(ctx).Debug("bridge: item delivered", "item", next.ItemID, "from", next.Player)
	return true, nil
}

// PollChecks reads the location bitfield and reports locations whose bit
// turned on since the previous poll. The first poll only records the
// bitfield. Checks the reporter rejected are retried on the next poll. It
// returns the ids reported by this call.
func (c *Client) PollChecks(ctx context.Context) ([]int64, error) {
	bitfield, err := c.mem.ReadU32(ctx, c.layout.ShardBitfield)
	if err != nil {
		return nil, fmt.Errorf("bridge: read location bitfield: %w", err)
	}

	c.mu.Lock()
	if c.last == nil {
		c.last = &bitfield
	}
	newBits := bitfield &^ *c.last
	*c.last = bitfield

	report := c.unsent
	c.unsent = nil
	for _, bit := range slices.Sorted(maps.Keys(c.bits)) {
		if bit < 0 || bit > 31 || newBits&(1<<uint(bit)) == 0 {
			continue
		}
		id := c.bits[bit]
		if !c.serverLocs.Has(id) || c.checked.Has(id) {
			continue
		}
		c.checked.Put(id)
		report = append(report, id)
	}
	c.mu.Unlock()

	if len(report) == 0 {
		return nil, nil
	}
	if err := c.reporter.CheckLocations(ctx, report); err != nil {
		c.mu.Lock()
		c.unsent = append(report, c.unsent...)
		c.mu.Unlock()
		return nil, fmt.Errorf("bridge: report checks: %w", err)
	}
	c.metrics.ChecksSent.Add(ctx, int64(len(report)))
	observe.Logger(ctx).Info("bridge: locations checked", "ids", report)
	return report, nil
}

// PollGoal reports goal completion once the ROM sets the goal flag. It is a
// no-op without a goal flag address or after the goal has been sent.
func (c *Client) PollGoal(ctx context.Context) (bool, error) {
	c.mu.Lock()
	done := c.goalSent
	c.mu.Unlock()
	if done || c.layout.GoalFlag == 0 {
		return false, nil
	}

	v, err := c.mem.ReadU8(ctx, c.layout.GoalFlag)
	if err != nil {
		return false, fmt.Errorf("bridge: read goal flag: %w", err)
	}
	if v == 0 {
		return false, nil
	}
	if err := c.reporter.CompleteGoal(ctx); err != nil {
		return false, fmt.Errorf("bridge: report goal: %w", err)
	}
	c.mu.Lock()
	c.goalSent = true
	c.mu.Unlock()
	observe.Logger(ctx).Info("bridge: goal complete")
	return true, nil
}

// Step runs one poll: delivery first, then checks, then the goal. Delivery
// failures do not prevent the check poll.
func (c *Client) Step(ctx context.Context) error {
	return c.link.do(func() error {
		_, derr := c.DeliverPending(ctx)
		_, cerr := c.PollChecks(ctx)
		_, gerr := c.PollGoal(ctx)
		return errors.Join(derr, cerr, gerr)
	})
}

// Run polls the game at the configured rate until ctx is done. Poll errors
// are logged and the loop continues. It returns the context's error.
func (c *Client) Run(ctx context.Context) error {
	c.metrics.ActiveBridges.Add(ctx, 1)
	defer c.metrics.ActiveBridges.Add(context.WithoutCancel(ctx), -1)

	log := observe.Logger(ctx)
	log.Info("bridge: polling", "hz", float64(c.limiter.Limit()))
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("bridge: %w", err)
		}
		if err := c.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrLinkDown) {
				log.Debug("bridge: skipping poll, emulator link down")
				continue
			}
			log.Warn("bridge: poll failed", "err", err)
		}
	}
}
