package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"beacon/internal/app"
	"beacon/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// surface selects which event vocabulary a connection speaks.
type surface int

const (
	surfaceChat surface = iota
	surfaceVideo
)

// Controller terminates both WebSocket surfaces and feeds events into the relay.
type Controller struct {
	Relay      *app.Relay
	ReadLimit  int64
	PingPeriod time.Duration
	JoinLimit  *JoinRateLimiter
}

func NewController(relay *app.Relay, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Relay:      relay,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		JoinLimit:  NewJoinRateLimiter(10, time.Minute),
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleChat upgrades a chat connection. Chat connections are placed into the
// global room immediately; the observed clients never send an explicit join.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	ctl.handle(ctx, c, surfaceChat)
}

// HandleSignal upgrades a call-signaling connection. The client must join a
// room before any signaling event is processed.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ctl.handle(ctx, c, surfaceVideo)
}

func (ctl *Controller) handle(ctx context.Context, c *gin.Context, sfc surface) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	// Fresh id per transport session; one browser may hold a chat and a
	// signaling socket at once, so the client token cannot be the key.
	id := core.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := ctl.Relay.Connect(id, conn, cancel); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("connect rejected")
		cancel()
		conn.Close()
		return
	}

	if sfc == surfaceChat {
		if err := ctl.Relay.JoinChat(id); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("lobby join failed")
			ctl.Relay.Disconnect(id)
			cancel()
			conn.Close()
			return
		}
	}

	go ctl.writePump(ctx, id, conn)
	go ctl.readPump(ctx, id, conn, sfc)
}
