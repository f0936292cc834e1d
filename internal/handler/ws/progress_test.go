package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FinForecast/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsProgress(t *testing.T) {
	hub := NewHub(nil, time.Second)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.Notify(models.ProgressEvent{RunID: "r", Variant: models.VariantLSTM, Stage: models.StageFinal, Epoch: 3, Epochs: 10, TrainLoss: 0.5})

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev models.ProgressEvent
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, models.VariantLSTM, ev.Variant)
		assert.Equal(t, 3, ev.Epoch)
		assert.Equal(t, 0.5, ev.TrainLoss)
	}
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(nil, time.Second)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))

	// Notify after close is a no-op.
	hub.Notify(models.ProgressEvent{Epoch: 1})
}
