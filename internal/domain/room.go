// Package domain contains entity without logic, just meta-data
package domain

type RoomID string

// RoomKind selects the capacity policy for a room.
type RoomKind int

const (
	// RoomChat is an unbounded broadcast room.
	RoomChat RoomKind = iota
	// RoomVideo holds exactly two call parties.
	RoomVideo
)

func (k RoomKind) String() string {
	if k == RoomVideo {
		return "video"
	}
	return "chat"
}

// VideoRoomCapacity is the hard member cap for video rooms.
const VideoRoomCapacity = 2

// LobbyRoomID is the single global chat room every chat connection lands in.
const LobbyRoomID RoomID = "lobby"

type Room struct {
	ID   RoomID
	Kind RoomKind
	// Capacity is 0 for unbounded rooms.
	Capacity int
}

// NewRoom avoids raw literals in adapters and keeps construction obvious.
func NewRoom(id RoomID, kind RoomKind) *Room {
	capacity := 0
	if kind == RoomVideo {
		capacity = VideoRoomCapacity
	}
	return &Room{ID: id, Kind: kind, Capacity: capacity}
}
