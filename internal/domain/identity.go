package domain

import (
	"errors"
	"strings"
)

const (
	MaxIdentityLen = 64
	MaxPeerIDLen   = 64
	MaxRoomIDLen   = 36
)

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
	ErrPeerIDEmpty     = errors.New("peer id empty")
	ErrPeerIDTooLong   = errors.New("peer id too long")
)

// ValidIdentity trims a client-declared identity (chat username or email)
// and rejects empty or oversized values.
func ValidIdentity(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrIdentityEmpty
	}
	if len(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return s, nil
}

// ValidPeerID checks an externally generated WebRTC peer identifier.
// The value itself is opaque to the relay.
func ValidPeerID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrPeerIDEmpty
	}
	if len(s) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return s, nil
}

// PeerBinding relates a transport connection to the WebRTC peer id it
// declared. At most one binding per connection; cleared on disconnect.
type PeerBinding struct {
	PeerID string
}
