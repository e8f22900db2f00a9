package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var upgrader = websocket.Upgrader{}

// relayStub upgrades one connection and hands it to the test.
func relayStub(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		handle(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server, opts Options) *Channel {
	t.Helper()
	who, err := domain.NewIdentity("u-1", "Ada")
	require.NoError(t, err)
	ch, err := Connect(context.Background(), wsURL(srv), "room-1", who, opts)
	require.NoError(t, err)
	t.Cleanup(ch.Close)
	return ch
}

func TestConnectAnnouncesJoin(t *testing.T) {
	frames := make(chan envelope, 1)
	srv := relayStub(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		frames <- env
	})
	defer srv.Close()

	dial(t, srv, Options{})

	select {
	case env := <-frames:
		assert.Equal(t, core.EvJoinRoom, env.Event)
		var join joinPayload
		require.NoError(t, json.Unmarshal(env.Data, &join))
		assert.Equal(t, domain.RoomID("room-1"), join.RoomID)
		assert.Equal(t, domain.UserID("u-1"), join.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("relay never received the join frame")
	}
}

func TestInboundFramesBecomeEvents(t *testing.T) {
	srv := relayStub(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil { // join
			return
		}
		frame, _ := json.Marshal(envelope{
			Event: core.EvUserConnected,
			Data:  json.RawMessage(`{"peerId":"p1"}`),
		})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	ch := dial(t, srv, Options{})

	select {
	case ev := <-ch.Events():
		assert.Equal(t, core.EvUserConnected, ev.Name)
		assert.JSONEq(t, `{"peerId":"p1"}`, string(ev.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no event surfaced")
	}
}

func TestChatIsThrottled(t *testing.T) {
	srv := relayStub(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	ch := dial(t, srv, Options{ChatRatePerSec: 0.001, ChatBurst: 1})

	require.NoError(t, ch.Send(core.EvChatMessage, map[string]any{"content": "hi"}))
	assert.ErrorIs(t, ch.Send(core.EvChatMessage, map[string]any{"content": "again"}), ErrBackpressure)
	// Non-chat traffic is never throttled.
	assert.NoError(t, ch.Send(core.EvToggleAudio, map[string]any{"on": false}))
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := relayStub(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	ch := dial(t, srv, Options{})

	assert.NotPanics(t, func() {
		ch.Close()
		ch.Close()
	})
	assert.ErrorIs(t, ch.Send(core.EvToggleAudio, nil), ErrChannelClosed)
}

func TestRelayDropSurfacesDisconnect(t *testing.T) {
	srv := relayStub(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil { // join
			return
		}
		conn.Close()
	})
	defer srv.Close()

	ch := dial(t, srv, Options{})

	var last core.InboundEvent
	for ev := range ch.Events() {
		last = ev
	}
	assert.Equal(t, core.EvDisconnected, last.Name, "the drop reaches the session as an event")
}
