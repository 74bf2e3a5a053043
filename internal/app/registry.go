package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"beacon/internal/core"
	"beacon/internal/domain"
)

var ErrDuplicateConn = errors.New("connection id already registered")

type connEntry struct {
	RoomID   domain.RoomID
	Identity string
	Peer     domain.PeerBinding
	Conn     core.SignalConnection
	Cancel   context.CancelFunc
}

// Registry owns per-connection state: room association, declared identity,
// peer binding and the cancel func of the connection's pumps.
type Registry struct {
	mu      sync.RWMutex
	entries map[core.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[core.ConnID]*connEntry)}
}

func (r *Registry) Register(id core.ConnID, conn core.SignalConnection, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return ErrDuplicateConn
	}
	r.entries[id] = &connEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("registered connection")
	return nil
}

// Deregister drops all state for the connection and reports the room it was
// in, if any. Safe to call more than once; repeated calls are no-ops.
func (r *Registry) Deregister(id core.ConnID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	delete(r.entries, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("deregistered connection")
	return e.RoomID, true
}

func (r *Registry) ConnOf(id core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// SetIdentity overwrites the declared identity; re-registration is idempotent.
func (r *Registry) SetIdentity(id core.ConnID, identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.Identity = identity
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("identity", identity).Msg("identity registered")
	return true
}

func (r *Registry) IdentityOf(id core.ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok && e.Identity != "" {
		return e.Identity, true
	}
	return "", false
}

// BindPeer overwrites the WebRTC peer binding for the connection.
func (r *Registry) BindPeer(id core.ConnID, peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.Peer = domain.PeerBinding{PeerID: peerID}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("peer_id", peerID).Msg("peer bound")
	return true
}

func (r *Registry) PeerOf(id core.ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok && e.Peer.PeerID != "" {
		return e.Peer.PeerID, true
	}
	return "", false
}

func (r *Registry) RoomOf(id core.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

func (r *Registry) UpdateRoom(id core.ConnID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.RoomID = roomID
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(roomID)).Msg("updated room")
	return true
}

func (r *Registry) ClearRoom(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.RoomID = ""
	}
}

// Cancel tears down the connection's pumps. The readPump exit path then runs
// the normal disconnect cleanup.
func (r *Registry) Cancel(id core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
