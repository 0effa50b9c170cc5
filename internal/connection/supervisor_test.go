package connection

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/lcuwatch/internal/auth"
	"github.com/rickgao/lcuwatch/internal/model"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

// keepAlive sends one non-presence event after the subscribe frame and then
// keeps reading.
func keepAlive(t *testing.T) func(int, *websocket.Conn) {
	return func(_ int, conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		drain(conn, nil)
	}
}

func TestSupervisor_StartTwice(t *testing.T) {
	server := mockWSServer(t, keepAlive(t))

	sup := NewSupervisor(testConfig(), nil)
	cred := server.credential(t)

	require.True(t, sup.Start(cred))
	assert.False(t, sup.Start(cred), "second start while running")

	sup.Stop()
	assert.False(t, sup.Running())

	require.True(t, sup.Start(cred), "start after stop")
	sup.Stop()
	sup.Stop()
}

func TestSupervisor_ConnectAndResync(t *testing.T) {
	server := mockWSServer(t, keepAlive(t))
	server.setREST(http.StatusOK, `{"presences":[{"private":"`+privateBlob("MENUS")+`"}]}`)

	rec := &recorder{}
	sup := NewSupervisor(testConfig(), nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, sup.IsConnected, waitFor, tick)
	assert.Eventually(t, func() bool { return sup.LoopState() == "MENUS" }, waitFor, tick)
	assert.Eventually(t, func() bool { return sup.Phase() == PhaseStreaming }, waitFor, tick)

	authHeader, origin := server.headers()
	assert.Equal(t, auth.BasicAuthHeader("riot", testPassword), authHeader)
	assert.Equal(t, DefaultOrigin, origin)

	got := rec.snapshot()
	assert.Equal(t, 1, got.connected)
	require.Len(t, got.states, 1)
	assert.Equal(t, model.UnknownLoopState, got.states[0].From)
	assert.Equal(t, "MENUS", got.states[0].To)
	assert.Equal(t, SourceREST, got.states[0].Source)

	sup.Stop()
	assert.False(t, sup.IsConnected())
	assert.Equal(t, PhaseIdle, sup.Phase())

	got = rec.snapshot()
	assert.Len(t, got.disconnect, got.connected)
}

func TestSupervisor_PresenceEvents(t *testing.T) {
	server := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		time.Sleep(50 * time.Millisecond)

		conn.WriteMessage(websocket.TextMessage, eventFrame(t, model.PresencesURI, presenceData(privateBlob("MATCHMAKING"))))
		// Invalid JSON inside valid base64 must not disturb the receiver.
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, model.PresencesURI, presenceData("bm90IGpzb24gYXQgYWxs")))
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, model.PresencesURI, presenceData(privateBlob("INGAME"))))
		drain(conn, nil)
	})
	server.setREST(http.StatusNotFound, `{"message":"not found"}`)

	rec := &recorder{}
	sup := NewSupervisor(testConfig(), nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool { return sup.LoopState() == "INGAME" }, waitFor, tick)

	got := rec.snapshot()
	require.Len(t, got.states, 2)
	assert.Equal(t, "MATCHMAKING", got.states[0].To)
	assert.Equal(t, SourceEvent, got.states[0].Source)
	assert.Equal(t, "MATCHMAKING", got.states[1].From)
	assert.Equal(t, "INGAME", got.states[1].To)
	assert.GreaterOrEqual(t, got.messages, 4)
	assert.Equal(t, int32(1), server.upgrades.Load())
}

func TestSupervisor_FirstEventTimeout(t *testing.T) {
	server := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		drain(conn, nil)
	})

	cfg := testConfig()
	cfg.FirstEventTimeout = 100 * time.Millisecond

	rec := &recorder{}
	sup := NewSupervisor(cfg, nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got.disconnect) > 0 && errors.Is(got.disconnect[0], ErrFirstEventTimeout)
	}, waitFor, tick)
	assert.False(t, sup.IsConnected())
	assert.Equal(t, 0, rec.snapshot().connected)
}

func TestSupervisor_FirstEventSkipsOtherFrames(t *testing.T) {
	server := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`[8,"Other",{}]`))
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		time.Sleep(50 * time.Millisecond)
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		drain(conn, nil)
	})

	cfg := testConfig()
	cfg.SilenceTimeout = time.Minute

	rec := &recorder{}
	sup := NewSupervisor(cfg, nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool { return sup.Phase() == PhaseStreaming }, waitFor, tick)

	got := rec.snapshot()
	assert.Equal(t, 1, got.connected)
	assert.Equal(t, 3, got.messages)
	assert.Empty(t, got.disconnect)
}

func TestSupervisor_FirstEventTimeoutIgnoresOtherFrames(t *testing.T) {
	server := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`[8,"OnSomethingElse",{}]`))
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		drain(conn, nil)
	})

	cfg := testConfig()
	cfg.FirstEventTimeout = 200 * time.Millisecond
	cfg.BackoffMin = time.Minute
	cfg.BackoffMax = time.Minute

	rec := &recorder{}
	sup := NewSupervisor(cfg, nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool { return len(rec.snapshot().disconnect) > 0 }, waitFor, tick)

	got := rec.snapshot()
	assert.ErrorIs(t, got.disconnect[0], ErrFirstEventTimeout)
	assert.Equal(t, 0, got.connected)
	assert.Equal(t, 2, got.messages)
	assert.False(t, sup.IsConnected())
}

func TestSupervisor_BackoffGrowsAndResets(t *testing.T) {
	server := mockWSServer(t, func(n int, conn *websocket.Conn) {
		if n != 4 {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		time.Sleep(50 * time.Millisecond)
	})

	rec := &recorder{}
	sup := NewSupervisor(testConfig(), nil, WithObserver(rec), WithRand(func() float64 { return 0 }))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool { return len(rec.snapshot().backoffs) >= 5 }, waitFor, tick)
	sup.Stop()

	ms := time.Millisecond
	assert.Equal(t, []time.Duration{10 * ms, 20 * ms, 40 * ms, 10 * ms, 20 * ms}, rec.snapshot().backoffs[:5])
}

func TestSupervisor_ProbeKeepsResponsiveLink(t *testing.T) {
	server := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		// Stay silent except when resubscribed.
		drain(conn, func([]byte) {
			conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		})
	})

	rec := &recorder{}
	sup := NewSupervisor(testConfig(), nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool { return len(rec.snapshot().probes) >= 2 }, waitFor, tick)

	got := rec.snapshot()
	assert.NotContains(t, got.probes, false)
	assert.Equal(t, int32(1), server.upgrades.Load())
	assert.True(t, sup.IsConnected())
}

func TestSupervisor_SilentLinkReconnects(t *testing.T) {
	server := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		drain(conn, nil)
	})

	rec := &recorder{}
	sup := NewSupervisor(testConfig(), nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool { return server.upgrades.Load() >= 2 }, waitFor, tick)

	got := rec.snapshot()
	assert.Contains(t, got.probes, false)
	require.NotEmpty(t, got.disconnect)
	assert.ErrorIs(t, got.disconnect[0], ErrConnectionEnded)
	assert.ErrorIs(t, got.disconnect[0], ErrSilence)
}

func TestSupervisor_StopDuringBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.BackoffMin = 10 * time.Second
	cfg.BackoffMax = 10 * time.Second

	rec := &recorder{}
	sup := NewSupervisor(cfg, nil, WithObserver(rec))
	require.True(t, sup.Start(closedPortCredential(t)))

	assert.Eventually(t, func() bool { return len(rec.snapshot().backoffs) == 1 }, waitFor, tick)

	start := time.Now()
	sup.Stop()
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, sup.Running())
}

func TestSupervisor_StopWhileStreaming(t *testing.T) {
	server := mockWSServer(t, keepAlive(t))

	cfg := testConfig()
	cfg.SilenceTimeout = time.Minute

	sup := NewSupervisor(cfg, nil)
	require.True(t, sup.Start(server.credential(t)))

	assert.Eventually(t, func() bool { return sup.Phase() == PhaseStreaming }, waitFor, tick)

	start := time.Now()
	sup.Stop()
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, sup.IsConnected())
	assert.Equal(t, int32(1), server.upgrades.Load())
}

func TestSupervisor_WatchdogAloneDetectsSilence(t *testing.T) {
	server := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, eventFrame(t, "/riotclient/heartbeat", map[string]any{}))
		drain(conn, nil)
	})

	cfg := testConfig()
	cfg.PingInterval = time.Minute

	rec := &recorder{}
	sup := NewSupervisor(cfg, nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))
	defer sup.Stop()

	assert.Eventually(t, func() bool { return server.upgrades.Load() >= 2 }, waitFor, tick)

	got := rec.snapshot()
	assert.Contains(t, got.probes, false)
	require.NotEmpty(t, got.disconnect)
	assert.ErrorIs(t, got.disconnect[0], ErrSilence)
}

func TestSupervisor_StopPairsConnectWithDisconnect(t *testing.T) {
	server := mockWSServer(t, keepAlive(t))

	cfg := testConfig()
	cfg.SilenceTimeout = time.Minute

	rec := &recorder{}
	sup := NewSupervisor(cfg, nil, WithObserver(rec))
	require.True(t, sup.Start(server.credential(t)))

	assert.Eventually(t, sup.IsConnected, waitFor, tick)
	sup.Stop()

	got := rec.snapshot()
	assert.Equal(t, 1, got.connected)
	require.Len(t, got.disconnect, 1)
	assert.ErrorIs(t, got.disconnect[0], ErrStopped)
	assert.Empty(t, got.backoffs)
}
