package devrealm_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livelyclient/internal/devrealm"
	"livelyclient/internal/eventlog"
	"livelyclient/internal/lively"
	"livelyclient/internal/transport/socketio"
)

func setupRealm(t *testing.T, cfg devrealm.Config) (*devrealm.Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	realm := devrealm.NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(realm.Engine())
	t.Cleanup(func() {
		realm.Close()
		ts.Close()
	})
	return realm, ts
}

func newLivelyClient(url string, disconnectOnAck bool) (*lively.Client, *eventlog.MemoryLog) {
	log := eventlog.NewMemoryLog()
	transport := socketio.NewClient(socketio.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	cfg := lively.Config{
		Realm:           url,
		Token:           "incorrect",
		DisconnectOnAck: disconnectOnAck,
	}
	return lively.NewClient(cfg, transport, lively.WithRecorder(log)), log
}

func TestLivelyClient_EndToEnd(t *testing.T) {
	realm, ts := setupRealm(t, devrealm.Config{})
	client, log := newLivelyClient(ts.URL, false)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Send(ctx, "hi", "3"))

	assert.Eventually(t, func() bool { return log.Count(eventlog.KindAck) == 1 }, 5*time.Second, 10*time.Millisecond)

	msgs := realm.Hub().Room("3").Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{
		"action": "[broadcast] send",
		"data": map[string]any{
			"action": "[el-jupyter] message",
			"broadcast": map[string]any{
				"eventType": "load",
				"payload":   "hi",
			},
			"room": "3",
		},
		"n":      float64(1),
		"sender": "lively_client client",
		"token":  "incorrect",
	}, msgs[0].Payload)

	require.NoError(t, client.Disconnect())
	assert.Equal(t, []any{
		true,
		"Client Connected",
		"Sent message to room 3",
		"Message has been received by server.",
		"Client Disconnected",
	}, log.Values())
}

func TestLivelyClient_DisconnectOnAck(t *testing.T) {
	_, ts := setupRealm(t, devrealm.Config{})
	client, log := newLivelyClient(ts.URL, true)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Send(ctx, map[string]any{"cell": 1}, "lobby"))

	assert.Eventually(t, func() bool { return log.Count(eventlog.KindDisconnected) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Error(t, client.Disconnect())
}

func TestLivelyClient_ConnectFailure(t *testing.T) {
	_, ts := setupRealm(t, devrealm.Config{Secret: "s3cret"})
	client, log := newLivelyClient(ts.URL, false)

	err := client.Connect(context.Background())

	assert.ErrorIs(t, err, socketio.ErrHandshake)
	assert.Zero(t, log.Len())
}

func TestLivelyClient_SendBeforeConnect(t *testing.T) {
	_, ts := setupRealm(t, devrealm.Config{})
	client, log := newLivelyClient(ts.URL, false)

	err := client.Send(context.Background(), "hi", "3")

	assert.ErrorIs(t, err, socketio.ErrNotConnected)
	assert.Equal(t, []any{"Sent message to room 3"}, log.Values())
}

func TestLivelyClient_Batch(t *testing.T) {
	realm, ts := setupRealm(t, devrealm.Config{})
	client, log := newLivelyClient(ts.URL, false)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	defer client.Disconnect()

	n, err := lively.Batch(ctx, client, "b", []any{"one", "two", "three"}, lively.NewLimiter(100, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Eventually(t, func() bool { return log.Count(eventlog.KindAck) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, realm.Hub().Room("b").Count())
}

func TestServer_RejectsPollingTransport(t *testing.T) {
	_, ts := setupRealm(t, devrealm.Config{})

	resp, err := http.Get(ts.URL + "/lively-socket.io/?EIO=4&transport=polling")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_HealthAndRooms(t *testing.T) {
	realm, ts := setupRealm(t, devrealm.Config{})
	realm.Hub().Room("3").Add(devrealm.Received{Payload: "x"})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Rooms map[string]int `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]int{"3": 1}, body.Rooms)
}

func TestServer_Metrics(t *testing.T) {
	realm, ts := setupRealm(t, devrealm.Config{})
	client, log := newLivelyClient(ts.URL, false)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Send(ctx, "hi", "m"))
	assert.Eventually(t, func() bool { return log.Count(eventlog.KindAck) == 1 }, 5*time.Second, 10*time.Millisecond)

	m := realm.Metrics()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Handshakes.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Events.WithLabelValues("/l2l")))
	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.Acks) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))

	require.NoError(t, client.Disconnect())
	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.ActiveSessions) == 0 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "lively_devrealm_events_total")
}

func TestRoomOf(t *testing.T) {
	assert.Equal(t, "3", devrealm.RoomOf(map[string]any{"data": map[string]any{"room": "3"}}))
	assert.Equal(t, devrealm.UnroutedRoom, devrealm.RoomOf("plain"))
	assert.Equal(t, devrealm.UnroutedRoom, devrealm.RoomOf(map[string]any{"data": "x"}))
	assert.Equal(t, devrealm.UnroutedRoom, devrealm.RoomOf(map[string]any{"data": map[string]any{"room": 3}}))
}

func TestHub_RoomIDsSorted(t *testing.T) {
	hub := devrealm.NewHub()
	hub.Room("b")
	hub.Room("a")
	assert.Same(t, hub.Room("a"), hub.Room("a"))
	assert.Equal(t, []string{"a", "b"}, hub.RoomIDs())
}
