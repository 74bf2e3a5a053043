package app

import (
	"beacon/internal/core"
	"beacon/internal/domain"
)

// broadcastPresence announces the member count to everyone still in the room.
// The count is read after the membership change committed, so an update never
// precedes the change it reflects. Wire names differ per surface: the chat
// client listens for usersOnline, the call client for userCount.
func (r *Relay) broadcastPresence(room core.RoomService) {
	event := "usersOnline"
	if room.Room().Kind == domain.RoomVideo {
		event = "userCount"
	}
	frame, err := encode(struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}{Type: event, Count: room.MemberCount()})
	if err != nil {
		return
	}
	res := room.Broadcast(frame)
	r.applyPolicy(room, res)
}
