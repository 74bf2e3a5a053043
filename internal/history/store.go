// Package history is the append-only chat log. It is the only state that
// survives a restart; rooms and presence are rebuilt from live connections.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"beacon/internal/domain"
)

// DefaultWindow caps a single backfill response.
const DefaultWindow = 100

var bucketMessages = []byte("messages")

// Store persists chat messages in bbolt, keyed by a monotonic sequence so
// that key order is insertion order.
type Store struct {
	db     *bolt.DB
	window int
}

func Open(path string, window int) (*Store, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMessages)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history bucket: %w", err)
	}
	log.Info().Str("module", "history").Str("path", path).Int("window", window).Msg("history store opened")
	return &Store{db: db, window: window}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append assigns the server-side id and timestamp and writes the message.
// Content is the caller's problem; the store never rejects on it.
func (s *Store) Append(sender, text string) (domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		msg = domain.ChatMessage{
			ID:        seq,
			Sender:    sender,
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		}
		val, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), val)
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// Recent returns up to limit of the newest messages, oldest first. A limit
// that is absent, non-positive or above the configured window is clamped to
// the window. Each call re-reads the log; there is no cursor state.
func (s *Store) Recent(limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > s.window {
		limit = s.window
	}
	var out []domain.ChatMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		collected := 0
		for k, v := c.Last(); k != nil && collected < limit; k, v = c.Prev() {
			var msg domain.ChatMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return err
			}
			out = append(out, msg)
			collected++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read recent messages: %w", err)
	}
	// walked newest to oldest, flip to chronological
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Len reports the total number of stored messages.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketMessages).Stats().KeyN
		return nil
	})
	return n, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
