package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikemorandi/flightradar/internal/radar"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

func startHub(t *testing.T) (*Server, string) {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	s := NewServer(log)
	go s.Run()

	srv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestBroadcastPositionsReachesClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.Eventually(t, hub.HasSubscribers, time.Second, 5*time.Millisecond)

	lat, lon := 45.0, -73.5
	flights := map[string]radar.PositionReport{
		"f1": {Icao24: "a1b2c3", Lat: &lat, Lon: &lon},
		"f2": {Icao24: "d4e5f6", Lat: &lat, Lon: &lon},
	}
	hub.BroadcastPositions(flights, []string{"f1"})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePositions, msg.Type)

	payload, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payload, "f1")
	assert.NotContains(t, payload, "f2", "only changed flights are published")
}

func TestHasSubscribers(t *testing.T) {
	hub, url := startHub(t)
	assert.False(t, hub.HasSubscribers())

	conn := dial(t, url)
	require.Eventually(t, hub.HasSubscribers, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return !hub.HasSubscribers() },
		time.Second, 5*time.Millisecond)
}
