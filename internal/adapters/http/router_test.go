package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"beacon/internal/adapters/signal"
	"beacon/internal/app"
	"beacon/internal/config"
	"beacon/internal/domain"
	"beacon/internal/history"
)

type messagesResponse struct {
	Success  bool                 `json:"success"`
	Messages []domain.ChatMessage `json:"messages"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *history.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	relay := &app.Relay{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		History:  store,
		Policy:   app.SimplePolicy{},
	}
	ctrl := signal.NewController(relay, 65536, 54*time.Second)

	cfg := &config.Config{
		Mode:          "release",
		Port:          8080,
		ReadLimit:     65536,
		PingPeriod:    54 * time.Second,
		Secret:        "test-secret",
		HistoryWindow: 100,
	}
	return SetupRouter(context.Background(), cfg, ctrl, store), store
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestMessagesBackfill(t *testing.T) {
	r, store := newTestRouter(t)
	for i := 1; i <= 5; i++ {
		_, err := store.Append("alice", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages?limit=3", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp messagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Messages, 3)
	require.Equal(t, "msg 3", resp.Messages[0].Text)
	require.Equal(t, "msg 5", resp.Messages[2].Text)
}

func TestMessagesDefaultAndExcessiveLimit(t *testing.T) {
	r, store := newTestRouter(t)
	for i := 0; i < 120; i++ {
		_, err := store.Append("alice", "x")
		require.NoError(t, err)
	}

	for _, q := range []string{"", "?limit=99999", "?limit=abc"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/messages"+q, nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp messagesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.Len(t, resp.Messages, 100, "query %q", q)
	}
}

func TestMessagesEmptyLog(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp messagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Messages)
	require.Empty(t, resp.Messages)
}

func TestClientTokenCookieIssued(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "ct" && c.Value != "" {
			found = true
		}
	}
	require.True(t, found)
}
