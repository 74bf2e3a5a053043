package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"beacon/internal/app"
	"beacon/internal/core"
)

func (ctl *Controller) handleRegisterIdentity(
	id core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type registerPayload struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad register payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Relay.RegisterIdentity(id, p.Identity); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("register identity rejected")
		ctl.sendError(conn, "invalid_identity")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("identity", p.Identity).Msg("identity registered")
}

func (ctl *Controller) handleSendMessage(
	id core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type messagePayload struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad message payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	_, err := ctl.Relay.SendChat(id, p.Text)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrEmptyMessage):
		ctl.sendError(conn, "empty message")
	case errors.Is(err, app.ErrNoIdentity):
		ctl.sendError(conn, "register an identity first")
	case errors.Is(err, app.ErrNotInRoom):
		ctl.sendError(conn, "not in a room")
	default:
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("chat send failed")
		ctl.sendError(conn, "message not delivered")
	}
}
