package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"beacon/internal/core"
	"beacon/internal/domain"
)

func (ctl *Controller) handleJoin(
	id core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.Room == "" {
		ctl.sendError(conn, "missing room")
		return
	}
	if ctl.JoinLimit != nil && !ctl.JoinLimit.Allow(id) {
		ctl.sendError(conn, "too many join attempts")
		return
	}
	raw := p.Room
	if len(raw) > domain.MaxRoomIDLen {
		raw = raw[:domain.MaxRoomIDLen]
	}

	err := ctl.Relay.JoinVideo(id, domain.RoomID(raw))
	if errors.Is(err, core.ErrRoomFull) {
		// the rejected joiner is the only one told
		ctl.sendJSON(conn, struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}{Type: "roomFull", Message: "room already has two participants"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("join failed")
		ctl.sendError(conn, "join failed")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("room", raw).Msg("joined video room")
}

func (ctl *Controller) handleLeave(
	id core.ConnID,
	conn *wsConn,
) {
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("leave")
	ctl.Relay.Leave(id)
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{Type: "left"})
}
