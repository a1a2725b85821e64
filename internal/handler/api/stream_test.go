package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptArb/internal/domain/models"
)

func TestResultHubStreamsResults(t *testing.T) {
	hub := NewResultHub(nil, 8)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/results", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(&models.Result{ID: "r1", Instrument: "IRO9ABCD0001", Signal: models.SignalSell})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got models.Result
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, models.SignalSell, got.Signal)

	hub.Close()
	assert.Equal(t, 0, hub.Subscribers())
}

func TestResultHubDropsSlowSubscriber(t *testing.T) {
	hub := NewResultHub(nil, 1)
	cl := &wsClient{send: make(chan []byte, 1)}
	hub.clients[cl] = struct{}{}

	hub.Broadcast(&models.Result{ID: "a"})
	assert.Equal(t, 1, hub.Subscribers())

	hub.Broadcast(&models.Result{ID: "b"})
	assert.Equal(t, 0, hub.Subscribers())

	// the buffered message is still delivered before the channel reports closed
	first, ok := <-cl.send
	assert.True(t, ok)
	assert.Contains(t, string(first), `"id":"a"`)
	_, ok = <-cl.send
	assert.False(t, ok)
}
