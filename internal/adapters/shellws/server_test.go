package shellws

import (
	"DeskRelay/internal/core/ports"
	"DeskRelay/internal/shared/config"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// startTestServer boots a server on an ephemeral loopback port and
// stops it when the test ends.
func startTestServer(t *testing.T, token string) *Server {
	nopLogger := zerolog.Nop()
	cfg := &config.RelayConfig{
		ListenAddr: "127.0.0.1:0",
		ShellToken: token,
	}

	srv, err := NewServer(cfg, &nopLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

// dialShell connects like the shell would and completes the handshake.
func dialShell(t *testing.T, srv *Server, token string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/shell", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(helloFrame{Type: frameHello, Token: token}))

	welcome := readFrame(t, conn)
	require.Equal(t, frameWelcome, welcome["type"])
	return conn
}

// readFrame reads one JSON frame with a deadline so a silent server
// fails the test instead of hanging it.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// waitController polls until the handshake has published the controller.
func waitController(t *testing.T, srv *Server) ports.ShellController {
	var ctrl ports.ShellController
	require.Eventually(t, func() bool {
		ctrl = srv.Controller()
		return ctrl != nil
	}, time.Second, 5*time.Millisecond)
	return ctrl
}

func TestNewServer_RejectsNonLoopbackAddresses(t *testing.T) {
	nopLogger := zerolog.Nop()

	tests := []struct {
		name string
		addr string
	}{
		{"wildcard", "0.0.0.0:0"},
		{"public hostname", "example.com:80"},
		{"missing port", "127.0.0.1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewServer(&config.RelayConfig{ListenAddr: tc.addr}, &nopLogger)
			require.Error(t, err)
		})
	}
}

func TestNewServer_AcceptsLocalhost(t *testing.T) {
	nopLogger := zerolog.Nop()
	srv, err := NewServer(&config.RelayConfig{ListenAddr: "localhost:0"}, &nopLogger)
	require.NoError(t, err)
	require.NoError(t, srv.listener.Close())
}

func TestServer_HandshakePublishesController(t *testing.T) {
	srv := startTestServer(t, "s3cret")
	require.Nil(t, srv.Controller())

	dialShell(t, srv, "s3cret")
	waitController(t, srv)
}

func TestServer_RejectsWrongToken(t *testing.T) {
	srv := startTestServer(t, "s3cret")

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/shell", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(helloFrame{Type: frameHello, Token: "wrong"}))

	// The server closes the connection instead of welcoming us.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	require.Never(t, func() bool {
		return srv.Controller() != nil
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestServer_EventFrameFiresListeners(t *testing.T) {
	srv := startTestServer(t, "")
	conn := dialShell(t, srv, "")
	ctrl := waitController(t, srv)

	fired := make(chan struct{}, 1)
	ctrl.Events().Register(ports.RawCallConnected, func() {
		fired <- struct{}{}
	})

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": frameEvent,
		"name": ports.RawCallConnected,
	}))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was never fired")
	}
}

func TestServer_StateFrameFiresOnlyOnChange(t *testing.T) {
	// 1. Setup: count listener firings and use a sentinel event as a
	// sync point, since the read loop processes frames in order
	srv := startTestServer(t, "")
	conn := dialShell(t, srv, "")
	ctrl := waitController(t, srv)

	var bellFires, chatFires atomic.Int32
	ctrl.Events().Register(ports.RawBellCountChanged, func() { bellFires.Add(1) })
	ctrl.Events().Register(ports.RawChatListChanged, func() { chatFires.Add(1) })

	synced := make(chan struct{}, 4)
	ctrl.Events().Register("syncPing", func() { synced <- struct{}{} })
	sync := func() {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": frameEvent, "name": "syncPing"}))
		select {
		case <-synced:
		case <-time.After(2 * time.Second):
			t.Fatal("sync event never arrived")
		}
	}

	// 2. First state frame changes both counters
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": frameState, "activities": 3, "unread": 5,
	}))
	sync()
	require.Equal(t, int32(1), bellFires.Load())
	require.Equal(t, int32(1), chatFires.Load())
	require.Equal(t, 3, ctrl.Bell().UnseenCount())
	require.Equal(t, 5, ctrl.ChatList().UnreadCount())

	// 3. The same values again fire nothing
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": frameState, "activities": 3, "unread": 5,
	}))
	sync()
	require.Equal(t, int32(1), bellFires.Load())
	require.Equal(t, int32(1), chatFires.Load())

	// 4. A single changed counter fires only its own event
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": frameState, "activities": 3, "unread": 6,
	}))
	sync()
	require.Equal(t, int32(1), bellFires.Load())
	require.Equal(t, int32(2), chatFires.Load())
	require.Equal(t, 6, ctrl.ChatList().UnreadCount())
}

func TestServer_CalendarRoundTrip(t *testing.T) {
	srv := startTestServer(t, "")
	conn := dialShell(t, srv, "")
	ctrl := waitController(t, srv)

	// 1. RequestRefresh marks the flag and reaches the shell
	cal := ctrl.Calendar()
	require.Empty(t, cal.CachedEntries())
	cal.RequestRefresh()
	require.True(t, cal.RefreshPending())

	refresh := readFrame(t, conn)
	require.Equal(t, frameRefreshCalendar, refresh["type"])

	// 2. The calendar snapshot settles the refresh; the entry with a
	// broken id is skipped
	goodID := uuid.New()
	starts := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": frameCalendar,
		"entries": []map[string]interface{}{
			{
				"id":        goodID.String(),
				"title":     "Sprint review",
				"organizer": "pm@example.com",
				"startsAt":  starts.Format(time.RFC3339),
				"endsAt":    starts.Add(time.Hour).Format(time.RFC3339),
			},
			{"id": "not-a-uuid", "title": "Broken"},
		},
	}))

	require.Eventually(t, func() bool {
		return !cal.RefreshPending()
	}, time.Second, 5*time.Millisecond)

	entries := cal.CachedEntries()
	require.Len(t, entries, 1)
	require.Equal(t, goodID, entries[0].ID)
	require.Equal(t, "Sprint review", entries[0].Title)
	require.Equal(t, "pm@example.com", entries[0].Organizer)
	require.True(t, starts.Equal(entries[0].StartsAt))
}

func TestServer_WorkerFrameDeliversRawRecords(t *testing.T) {
	srv := startTestServer(t, "")
	conn := dialShell(t, srv, "")
	ctrl := waitController(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    frameWorker,
		"records": []map[string]interface{}{{"kind": "meetingStarted", "title": "Demo"}},
	}))

	select {
	case raw := <-ctrl.WorkerMessages():
		require.JSONEq(t, `[{"kind":"meetingStarted","title":"Demo"}]`, string(raw))
	case <-time.After(2 * time.Second):
		t.Fatal("no worker payload delivered")
	}
}

func TestServer_SetDefaultTitleReachesShell(t *testing.T) {
	srv := startTestServer(t, "")
	conn := dialShell(t, srv, "")
	ctrl := waitController(t, srv)

	ctrl.SetDefaultTitle("Focus time")

	frame := readFrame(t, conn)
	require.Equal(t, frameSetTitle, frame["type"])
	require.Equal(t, "Focus time", frame["title"])
}

func TestServer_ReconnectKeepsControllerAndListeners(t *testing.T) {
	srv := startTestServer(t, "tok")

	// 1. First connection registers a listener
	first := dialShell(t, srv, "tok")
	ctrl := waitController(t, srv)

	fired := make(chan struct{}, 2)
	ctrl.Events().Register(ports.RawCallDisconnected, func() {
		fired <- struct{}{}
	})

	// 2. The shell drops and reconnects
	require.NoError(t, first.Close())
	second := dialShell(t, srv, "tok")

	require.Same(t, ctrl, srv.Controller())

	// 3. Events over the new connection still reach the old listener
	require.NoError(t, second.WriteJSON(map[string]interface{}{
		"type": frameEvent,
		"name": ports.RawCallDisconnected,
	}))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not survive the reconnect")
	}
}
