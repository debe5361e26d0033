package apclient

import "encoding/json"

// Client status values for StatusUpdate.
const (
	StatusConnected = 5
	StatusReady     = 10
	StatusPlaying   = 20
	StatusGoal      = 30
)

// ItemsHandlingRemote asks the server to send every item, including the
// player's own and the starting inventory. The ROM never grants items by
// itself, so the bridge needs all of them.
const ItemsHandlingRemote = 0b111

// Version is the protocol version the client announces.
type Version struct {
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	Build int    `json:"build"`
	Class string `json:"class"`
}

var clientVersion = Version{Major: 0, Minor: 5, Build: 0, Class: "Version"}

// envelope is the part every packet shares.
type envelope struct {
	Cmd string `json:"cmd"`
}

type connectPacket struct {
	Cmd           string   `json:"cmd"`
	Password      string   `json:"password"`
	Game          string   `json:"game"`
	Name          string   `json:"name"`
	UUID          string   `json:"uuid"`
	Version       Version  `json:"version"`
	ItemsHandling int      `json:"items_handling"`
	Tags          []string `json:"tags"`
	SlotData      bool     `json:"slot_data"`
}

type locationChecksPacket struct {
	Cmd       string  `json:"cmd"`
	Locations []int64 `json:"locations"`
}

type statusUpdatePacket struct {
	Cmd    string `json:"cmd"`
	Status int    `json:"status"`
}

type syncPacket struct {
	Cmd string `json:"cmd"`
}

// RoomInfo is the server's greeting.
type RoomInfo struct {
	SeedName string   `json:"seed_name"`
	Version  Version  `json:"version"`
	Games    []string `json:"games"`
}

// NetworkPlayer is one slot in the multiworld.
type NetworkPlayer struct {
	Team  int    `json:"team"`
	Slot  int    `json:"slot"`
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

type connectedPacket struct {
	Team             int             `json:"team"`
	Slot             int             `json:"slot"`
	Players          []NetworkPlayer `json:"players"`
	MissingLocations []int64         `json:"missing_locations"`
	CheckedLocations []int64         `json:"checked_locations"`
	SlotData         json.RawMessage `json:"slot_data"`
}

type refusedPacket struct {
	Errors []string `json:"errors"`
}

// NetworkItem is one item sent by the server.
type NetworkItem struct {
	Item     int64 `json:"item"`
	Location int64 `json:"location"`
	Player   int   `json:"player"`
	Flags    int   `json:"flags"`
}

type receivedItemsPacket struct {
	Index int           `json:"index"`
	Items []NetworkItem `json:"items"`
}

type roomUpdatePacket struct {
	CheckedLocations []int64 `json:"checked_locations"`
}
