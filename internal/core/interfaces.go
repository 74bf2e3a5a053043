package core

import (
	"errors"

	"beacon/internal/domain"
)

// Frame is a marshaled event payload ready for the wire.
type Frame []byte

// ConnID identifies one live transport connection.
type ConnID string

// ErrRoomFull is returned when admission would exceed the room capacity.
var ErrRoomFull = errors.New("room full")

// ErrNoPeer is returned by unicast when the room has no other member.
var ErrNoPeer = errors.New("no other member in room")

// SignalConnection abstracts the outbound half of a transport connection.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}

// RoomService is the core-facing API of a room. It owns the membership set
// but never touches transport resources beyond TrySend.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	Members() []ConnID

	// AddMember admits a connection or fails with ErrRoomFull. The capacity
	// check and the insert are atomic: two racing joins for the last slot
	// resolve to exactly one winner.
	AddMember(id ConnID, conn SignalConnection) error
	RemoveMember(id ConnID)

	// Broadcast fans a frame out to every member, sender included.
	Broadcast(data Frame) PublishResult
	// BroadcastExcept fans a frame out to every member but `from`.
	BroadcastExcept(from ConnID, data Frame) PublishResult
	// UnicastOther delivers a frame to the single member that is not `from`.
	UnicastOther(from ConnID, data Frame) (ConnID, error)
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	Kind        string        `json:"kind"`
	MemberCount int           `json:"member_count"`
}

// RoomManager creates rooms lazily and serves lookups.
type RoomManager interface {
	GetOrCreate(id domain.RoomID, kind domain.RoomKind) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	Remove(id domain.RoomID)
}
