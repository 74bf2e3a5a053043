package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"beacon/internal/app"
	"beacon/internal/core"
)

func (ctl *Controller) handleRegisterPeerID(
	id core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type peerPayload struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	var p peerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad peer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Relay.RegisterPeer(id, p.PeerID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("peer registration rejected")
		if errors.Is(err, app.ErrNotInRoom) || errors.Is(err, app.ErrNotVideoRoom) {
			ctl.sendError(conn, "join a room first")
		} else {
			ctl.sendError(conn, "invalid peer id")
		}
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("peer_id", p.PeerID).Msg("peer id registered")
}

func (ctl *Controller) handleMediaToggle(
	id core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type togglePayload struct {
		Type    string `json:"type"`
		Kind    string `json:"kind"`
		Enabled bool   `json:"enabled"`
		PeerID  string `json:"peerId"`
	}
	var p togglePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad toggle payload")
		return
	}
	if p.Kind != "audio" && p.Kind != "video" {
		log.Warn().Str("module", "signal").Str("kind", p.Kind).Msg("unknown media kind")
		return
	}

	if err := ctl.Relay.MediaToggle(id, p.Kind, p.Enabled, p.PeerID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("media toggle rejected")
	}
}

// handleSignalForward relays the raw envelope bytes untouched. SDP, ICE and
// whatever else is in there never gets parsed server-side.
func (ctl *Controller) handleSignalForward(
	id core.ConnID,
	conn *wsConn,
	data []byte,
) {
	if err := ctl.Relay.ForwardSignal(id, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("signal forward rejected")
		ctl.sendError(conn, "join a room first")
	}
}
