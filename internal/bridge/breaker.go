package bridge

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrLinkDown is returned while the emulator link breaker is open.
var ErrLinkDown = errors.New("bridge: emulator link is down")

// LinkState is the state of the emulator link breaker.
type LinkState int

const (
	// LinkUp forwards every poll to the emulator.
	LinkUp LinkState = iota

	// LinkDown rejects polls until the cooldown has passed.
	LinkDown

	// LinkProbing lets a single poll through to test the link.
	LinkProbing
)

func (s LinkState) String() string {
	switch s {
	case LinkUp:
		return "up"
	case LinkDown:
		return "down"
	case LinkProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// breaker stops hammering a disconnected emulator. After maxFailures
// consecutive failed polls it opens for cooldown, then lets one probe
// through. A successful probe closes it, a failed one reopens it.
type breaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    LinkState
	failures int
	openedAt time.Time
}

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	return &breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// do runs fn unless the link is down.
func (b *breaker) do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case LinkDown:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrLinkDown
		}
		b.state = LinkProbing
		slog.Info("bridge: probing emulator link")
	case LinkProbing:
		// Another probe is in flight.
		b.mu.Unlock()
		return ErrLinkDown
	}
	probing := b.state == LinkProbing
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		if probing {
			slog.Info("bridge: emulator link restored")
		}
		b.state, b.failures = LinkUp, 0
	case probing:
		b.state, b.openedAt = LinkDown, b.now()
		slog.Warn("bridge: emulator link probe failed", "err", err)
	default:
		b.failures++
		if b.failures >= b.maxFailures {
			b.state, b.openedAt = LinkDown, b.now()
			slog.Warn("bridge: emulator link down", "consecutive_failures", b.failures, "err", err)
		}
	}
	return err
}

func (b *breaker) current() LinkState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == LinkDown && b.now().Sub(b.openedAt) >= b.cooldown {
		return LinkProbing
	}
	return b.state
}
