// Package mock provides in-memory implementations of [bridge.Memory] and
// [bridge.Reporter] for tests.
//
// Memory is a sparse little-endian byte map. Setting ReadErr or WriteErr
// makes every read or write fail. Both types are safe for concurrent use.
package mock

import (
	"context"
	"encoding/binary"
	"slices"
	"sync"

	"github.com/MrWong99/kirbyam/internal/bridge"
)

var (
	_ bridge.Memory   = (*Memory)(nil)
	_ bridge.Reporter = (*Reporter)(nil)
)

// Write records one write call.
type Write struct {
	Addr  uint32
	Size  int
	Value uint32
}

// Memory is a fake emulator bus.
type Memory struct {
	mu    sync.Mutex
	bytes map[uint32]byte

	// ReadErr is returned by every read while set.
	ReadErr error

	// WriteErr is returned by every write while set.
	WriteErr error

	// FailWriteAt makes writes to this address fail with WriteErr even when
	// WriteErr is unset. Zero disables it.
	FailWriteAt uint32

	// Writes records all successful writes in order.
	Writes []Write
}

func (m *Memory) read(addr uint32, n int) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	buf := make([]byte, 4)
	for i := range n {
		buf[i] = m.bytes[addr+uint32(i)]
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (m *Memory) write(addr uint32, n int, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	if m.FailWriteAt != 0 && addr == m.FailWriteAt {
		return errWrite
	}
	m.set(addr, n, v)
	m.Writes = append(m.Writes, Write{Addr: addr, Size: n, Value: v})
	return nil
}

func (m *Memory) set(addr uint32, n int, v uint32) {
	if m.bytes == nil {
		m.bytes = make(map[uint32]byte)
	}
	buf := binary.LittleEndian.AppendUint32(nil, v)
	for i := range n {
		m.bytes[addr+uint32(i)] = buf[i]
	}
}

// Set stores v at addr without recording a write, as the game would.
func (m *Memory) Set(addr uint32, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(addr, 4, v)
}

// Get returns the u32 at addr.
func (m *Memory) Get(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, 4)
	for i := range 4 {
		buf[i] = m.bytes[addr+uint32(i)]
	}
	return binary.LittleEndian.Uint32(buf)
}

// SetReadErr sets ReadErr under the lock.
func (m *Memory) SetReadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadErr = err
}

// WriteLog returns a copy of the recorded writes.
func (m *Memory) WriteLog() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Writes)
}

func (m *Memory) ReadU8(_ context.Context, addr uint32) (uint8, error) {
	v, err := m.read(addr, 1)
	return uint8(v), err
}

func (m *Memory) ReadU16(_ context.Context, addr uint32) (uint16, error) {
	v, err := m.read(addr, 2)
	return uint16(v), err
}

func (m *Memory) ReadU32(_ context.Context, addr uint32) (uint32, error) {
	return m.read(addr, 4)
}

func (m *Memory) WriteU8(_ context.Context, addr uint32, v uint8) error {
	return m.write(addr, 1, uint32(v))
}

func (m *Memory) WriteU16(_ context.Context, addr uint32, v uint16) error {
	return m.write(addr, 2, uint32(v))
}

func (m *Memory) WriteU32(_ context.Context, addr uint32, v uint32) error {
	return m.write(addr, 4, v)
}

type mockError string

func (e mockError) Error() string { return string(e) }

const errWrite = mockError("mock: write failed")

// Reporter records reported checks and goal completions.
type Reporter struct {
	mu sync.Mutex

	// CheckErr is returned by CheckLocations while set.
	CheckErr error

	// GoalErr is returned by CompleteGoal while set.
	GoalErr error

	// Checks records every successful CheckLocations call.
	Checks [][]int64

	// Goals counts successful CompleteGoal calls.
	Goals int
}

func (r *Reporter) CheckLocations(_ context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CheckErr != nil {
		return r.CheckErr
	}
	r.Checks = append(r.Checks, slices.Clone(ids))
	return nil
}

func (r *Reporter) CompleteGoal(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GoalErr != nil {
		return r.GoalErr
	}
	r.Goals++
	return nil
}

// SetCheckErr sets CheckErr under the lock.
func (r *Reporter) SetCheckErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CheckErr = err
}

// Reported returns every reported id in order.
func (r *Reporter) Reported() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, c := range r.Checks {
		out = append(out, c...)
	}
	return out
}
