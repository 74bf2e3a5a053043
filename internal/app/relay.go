package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"beacon/internal/core"
	"beacon/internal/domain"
	"beacon/internal/history"
)

var (
	ErrNotRegistered = errors.New("connection not registered")
	ErrNotInRoom     = errors.New("not a member of any room")
	ErrNoIdentity    = errors.New("no identity registered")
	ErrEmptyMessage  = errors.New("empty message")
	ErrNotVideoRoom  = errors.New("not a video room")
)

// Relay coordinates registry, rooms and history. It owns every outbound
// event except local-only replies, which stay with the transport adapter.
type Relay struct {
	Registry *Registry
	Rooms    core.RoomManager
	History  *history.Store
	Policy   Policy
}

// Connect admits a new transport connection.
func (r *Relay) Connect(id core.ConnID, conn core.SignalConnection, cancel context.CancelFunc) error {
	return r.Registry.Register(id, conn, cancel)
}

// JoinChat puts the connection into the global chat room and announces the
// new member count. Chat capacity is unbounded, so admission cannot fail.
func (r *Relay) JoinChat(id core.ConnID) error {
	conn, ok := r.Registry.ConnOf(id)
	if !ok {
		return ErrNotRegistered
	}
	room := r.Rooms.GetOrCreate(domain.LobbyRoomID, domain.RoomChat)
	if err := room.AddMember(id, conn); err != nil {
		return err
	}
	r.Registry.UpdateRoom(id, domain.LobbyRoomID)
	r.broadcastPresence(room)
	return nil
}

// JoinVideo admits the connection into a two-party video room. Admission and
// the capacity check are atomic inside the room; the loser of a race for the
// last slot gets core.ErrRoomFull and is never added to membership.
func (r *Relay) JoinVideo(id core.ConnID, roomID domain.RoomID) error {
	conn, ok := r.Registry.ConnOf(id)
	if !ok {
		return ErrNotRegistered
	}
	if _, ok := r.Registry.RoomOf(id); ok {
		r.evict(id, true)
	}
	room := r.Rooms.GetOrCreate(roomID, domain.RoomVideo)
	if err := room.AddMember(id, conn); err != nil {
		return err
	}
	r.Registry.UpdateRoom(id, roomID)
	r.broadcastPresence(room)
	return nil
}

// Leave removes the connection from its room, if any. The connection stays
// registered and may join another room.
func (r *Relay) Leave(id core.ConnID) {
	r.evict(id, true)
}

// Disconnect is the implicit leave + deregister path for a closed transport.
// Idempotent; a connection that never joined produces no membership events.
func (r *Relay) Disconnect(id core.ConnID) {
	r.evict(id, true)
	r.Registry.Deregister(id)
}

func (r *Relay) evict(id core.ConnID, notify bool) {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		r.Registry.ClearRoom(id)
		return
	}
	room.RemoveMember(id)
	r.Registry.ClearRoom(id)

	if room.Room().Kind == domain.RoomVideo && notify {
		if frame, err := encode(typeOnly{Type: "userDisconnected"}); err == nil {
			res := room.Broadcast(frame)
			r.applyPolicy(room, res)
		}
	}
	r.broadcastPresence(room)

	if room.Room().Kind == domain.RoomVideo && room.MemberCount() == 0 {
		r.Rooms.Remove(roomID)
		log.Info().Str("module", "app.relay").Str("room", string(roomID)).Msg("empty video room removed")
	}
}

// RegisterIdentity binds a declared username to the connection.
// Re-registration overwrites the prior value.
func (r *Relay) RegisterIdentity(id core.ConnID, raw string) error {
	identity, err := domain.ValidIdentity(raw)
	if err != nil {
		return err
	}
	if !r.Registry.SetIdentity(id, identity) {
		return ErrNotRegistered
	}
	return nil
}

// SendChat appends the message to history and echoes the canonical result to
// every room member, the sender included, so clients render the
// server-assigned id and timestamp rather than a local draft.
func (r *Relay) SendChat(id core.ConnID, rawText string) (domain.ChatMessage, error) {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return domain.ChatMessage{}, ErrNotInRoom
	}
	identity, ok := r.Registry.IdentityOf(id)
	if !ok {
		return domain.ChatMessage{}, ErrNoIdentity
	}
	text := strings.TrimSpace(rawText)
	if text == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return domain.ChatMessage{}, ErrNotInRoom
	}

	msg, err := r.History.Append(identity, text)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("conn", string(id)).Msg("history append failed")
		return domain.ChatMessage{}, err
	}

	frame, err := encode(struct {
		Type    string             `json:"type"`
		Message domain.ChatMessage `json:"message"`
	}{Type: "newMessage", Message: msg})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	res := room.Broadcast(frame)
	r.applyPolicy(room, res)
	return msg, nil
}

// RegisterPeer binds the WebRTC peer id to the connection. Once both parties
// of a video room are bound, each one receives the other's peer id, never its
// own; that asymmetry is what lets exactly one side place the call.
func (r *Relay) RegisterPeer(id core.ConnID, rawPeerID string) error {
	peerID, err := domain.ValidPeerID(rawPeerID)
	if err != nil {
		return err
	}
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return ErrNotInRoom
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok || room.Room().Kind != domain.RoomVideo {
		return ErrNotVideoRoom
	}
	if !r.Registry.BindPeer(id, peerID) {
		return ErrNotRegistered
	}

	for _, other := range room.Members() {
		if other == id {
			continue
		}
		otherPeer, ok := r.Registry.PeerOf(other)
		if !ok {
			continue
		}
		r.sendTo(id, struct {
			Type   string `json:"type"`
			PeerID string `json:"peerId"`
		}{Type: "remotePeerId", PeerID: otherPeer})
		r.sendTo(other, struct {
			Type   string `json:"type"`
			PeerID string `json:"peerId"`
		}{Type: "remotePeerId", PeerID: peerID})
	}
	return nil
}

// MediaToggle relays an ephemeral mute/camera notice to the other room
// member. Best effort, at most once; nothing is persisted.
func (r *Relay) MediaToggle(id core.ConnID, kind string, enabled bool, peerID string) error {
	room, err := r.videoRoomOf(id)
	if err != nil {
		return err
	}
	frame, err := encode(struct {
		Type    string `json:"type"`
		Kind    string `json:"kind"`
		Enabled bool   `json:"enabled"`
		PeerID  string `json:"peerId"`
	}{Type: "mediaToggle", Kind: kind, Enabled: enabled, PeerID: peerID})
	if err != nil {
		return err
	}
	if _, err := room.UnicastOther(id, frame); err != nil && !errors.Is(err, core.ErrNoPeer) {
		log.Warn().Err(err).Str("module", "app.relay").Str("conn", string(id)).Msg("media toggle dropped")
	}
	return nil
}

// ForwardSignal relays an opaque signaling blob verbatim to the single other
// room member. The relay never looks inside; SDP and ICE are not its problem.
func (r *Relay) ForwardSignal(id core.ConnID, raw []byte) error {
	room, err := r.videoRoomOf(id)
	if err != nil {
		return err
	}
	if _, err := room.UnicastOther(id, core.Frame(raw)); err != nil && !errors.Is(err, core.ErrNoPeer) {
		log.Warn().Err(err).Str("module", "app.relay").Str("conn", string(id)).Msg("signal relay dropped")
	}
	return nil
}

func (r *Relay) videoRoomOf(id core.ConnID) (core.RoomService, error) {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return nil, ErrNotInRoom
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return nil, ErrNotInRoom
	}
	if room.Room().Kind != domain.RoomVideo {
		return nil, ErrNotVideoRoom
	}
	return room, nil
}

func (r *Relay) sendTo(id core.ConnID, v any) {
	conn, ok := r.Registry.ConnOf(id)
	if !ok {
		return
	}
	frame, err := encode(v)
	if err != nil {
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("conn", string(id)).Msg("unicast dropped")
	}
}

func (r *Relay) applyPolicy(room core.RoomService, res core.PublishResult) {
	if r.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch r.Policy.OnBackPressure(room, slow) {
		case KickMember:
			r.Registry.Cancel(slow)
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

type typeOnly struct {
	Type string `json:"type"`
}

func encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("event marshal failed")
		return nil, err
	}
	return core.Frame(b), nil
}
