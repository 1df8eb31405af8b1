package devtools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-dev/synapse/pkg/synapse"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func dialStream(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(h.HandleStream))
	t.Cleanup(ts.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRecord(t *testing.T, conn *websocket.Conn) synapse.Record {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var rec synapse.Record
	require.NoError(t, json.Unmarshal(payload, &rec))
	return rec
}

func TestHubStreamsRecords(t *testing.T) {
	h := NewHub(Config{}, discardLogger())
	defer h.Close()

	conn := dialStream(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	h.Emit(synapse.Record{Seq: 7, Op: synapse.OpWrite, Signal: "counter", Changed: true})

	rec := readRecord(t, conn)
	assert.Equal(t, uint64(7), rec.Seq)
	assert.Equal(t, synapse.OpWrite, rec.Op)
	assert.Equal(t, "counter", rec.Signal)
	assert.True(t, rec.Changed)
}

func TestHubMultipleClientsAllReceive(t *testing.T) {
	h := NewHub(Config{}, discardLogger())
	defer h.Close()

	first := dialStream(t, h)
	second := dialStream(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	h.Emit(synapse.Record{Seq: 1, Op: synapse.OpEffectRun, Effect: "render"})

	for _, conn := range []*websocket.Conn{first, second} {
		rec := readRecord(t, conn)
		assert.Equal(t, synapse.OpEffectRun, rec.Op)
		assert.Equal(t, "render", rec.Effect)
	}
}

func TestHubEmitWithNoClients(t *testing.T) {
	h := NewHub(Config{}, discardLogger())
	defer h.Close()

	h.Emit(synapse.Record{Seq: 1, Op: synapse.OpRead, Signal: "counter"})
}

func TestHubEmitDoesNotBlockOnSlowClient(t *testing.T) {
	h := NewHub(Config{BufferSize: 1}, discardLogger())
	defer h.Close()

	// Connect a client that never reads.
	dialStream(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			h.Emit(synapse.Record{Seq: uint64(i), Op: synapse.OpWrite, Signal: "burst"})
		}
	}()

	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond, "Emit burst should not block on a slow client")
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	h := NewHub(Config{}, discardLogger())

	conn := dialStream(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	h.Close()
	assert.Equal(t, 0, h.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a normal close, got %v", err)
}

func TestHubRejectsConnectionsAfterClose(t *testing.T) {
	h := NewHub(Config{}, discardLogger())
	h.Close()

	// The upgrade succeeds but the connection is dropped immediately.
	conn := dialStream(t, h)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, h.ClientCount())
}

func TestSameOriginCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://inspector.local/api/stream", nil)
	assert.True(t, sameOriginCheck(req), "no Origin header should pass")

	req.Header.Set("Origin", "http://inspector.local")
	assert.True(t, sameOriginCheck(req), "same-host origin should pass")

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, sameOriginCheck(req), "cross-origin should be rejected")

	req.Header.Set("Origin", "://bad url")
	assert.False(t, sameOriginCheck(req), "unparseable origin should be rejected")
}
