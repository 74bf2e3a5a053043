package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"beacon/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned connections.
type roomImpl struct {
	room *domain.Room
	mu   sync.RWMutex
	ccs  map[ConnID]SignalConnection
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room: room,
		ccs:  make(map[ConnID]SignalConnection),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ccs)
}

func (r *roomImpl) Members() []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnID, 0, len(r.ccs))
	for id := range r.ccs {
		out = append(out, id)
	}
	return out
}

// AddMember holds the write lock across the capacity check and the insert so
// that admission is serialized: the Nth join past capacity always loses.
func (r *roomImpl) AddMember(id ConnID, conn SignalConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ccs[id]; ok {
		return nil
	}
	if r.room.Capacity > 0 && len(r.ccs) >= r.room.Capacity {
		log.Warn().Str("module", "core.room").Str("room", string(r.room.ID)).Str("conn", string(id)).Msg("join rejected, room full")
		return ErrRoomFull
	}
	r.ccs[id] = conn
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("conn", string(id)).Msg("member added")
	return nil
}

func (r *roomImpl) RemoveMember(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ccs[id]; !ok {
		return
	}
	delete(r.ccs, id)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("conn", string(id)).Msg("member removed")
}

func (r *roomImpl) Broadcast(data Frame) PublishResult {
	return r.fanOut("", true, data)
}

func (r *roomImpl) BroadcastExcept(from ConnID, data Frame) PublishResult {
	return r.fanOut(from, false, data)
}

// fanOut sends under the read lock; TrySend never blocks, so a slow consumer
// cannot hold the lock for the duration of a write.
func (r *roomImpl) fanOut(from ConnID, includeFrom bool, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, conn := range r.ccs {
		if !includeFrom && id == from {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) UnicastOther(from ConnID, data Frame) (ConnID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, conn := range r.ccs {
		if id == from {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			return id, err
		}
		return id, nil
	}
	return "", ErrNoPeer
}
