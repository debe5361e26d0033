// Package bridge moves items and location checks between the multiworld
// server and a running game.
//
// The game side is reached through [Memory], a little-endian view of the
// emulator's system bus. The patched ROM exposes a fixed payload block:
//
//	PayloadBase+0x0  u32 location bitfield, one bit per checkable location
//	PayloadBase+0x4  u32 incoming item flag (0 = empty, 1 = full)
//	PayloadBase+0x8  u32 incoming item id
//	PayloadBase+0xC  u32 incoming item sender
//
// The ROM consumes the mailbox when the flag is 1 and clears it afterwards,
// so at most one item is in flight at any time.
package bridge

import "context"

// PayloadBase is the start of the payload block in EWRAM.
const PayloadBase uint32 = 0x0202C000

// Memory is the emulator connection. All values are little endian.
// Implementations must be safe for concurrent use.
type Memory interface {
	ReadU8(ctx context.Context, addr uint32) (uint8, error)
	ReadU16(ctx context.Context, addr uint32) (uint16, error)
	ReadU32(ctx context.Context, addr uint32) (uint32, error)
	WriteU8(ctx context.Context, addr uint32, v uint8) error
	WriteU16(ctx context.Context, addr uint32, v uint16) error
	WriteU32(ctx context.Context, addr uint32, v uint32) error
}

// Layout holds the RAM addresses the bridge uses.
type Layout struct {
	ShardBitfield  uint32 `yaml:"shard_bitfield"`
	IncomingFlag   uint32 `yaml:"incoming_item_flag"`
	IncomingItem   uint32 `yaml:"incoming_item_id"`
	IncomingPlayer uint32 `yaml:"incoming_item_player"`

	// GoalFlag is a u8 set by the ROM once the goal is beaten. Zero disables
	// goal reporting.
	GoalFlag uint32 `yaml:"goal_flag"`
}

// DefaultLayout returns the payload block addresses.
func DefaultLayout() Layout {
	return Layout{
		ShardBitfield:  PayloadBase + 0x0,
		IncomingFlag:   PayloadBase + 0x4,
		IncomingItem:   PayloadBase + 0x8,
		IncomingPlayer: PayloadBase + 0xC,
	}
}

// withDefaults fills zero mailbox and bitfield addresses from
// [DefaultLayout]. GoalFlag is left as is.
func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.ShardBitfield == 0 {
		l.ShardBitfield = d.ShardBitfield
	}
	if l.IncomingFlag == 0 {
		l.IncomingFlag = d.IncomingFlag
	}
	if l.IncomingItem == 0 {
		l.IncomingItem = d.IncomingItem
	}
	if l.IncomingPlayer == 0 {
		l.IncomingPlayer = d.IncomingPlayer
	}
	return l
}
