package connection

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/lcuwatch/internal/model"
)

const testPassword = "s3cret"

// mockServer is a TLS server that upgrades "/" to a WebSocket and serves the
// presences resource.
type mockServer struct {
	*httptest.Server

	upgrades atomic.Int32

	mu         sync.Mutex
	authHeader string
	origin     string
	restStatus int
	restBody   string
}

// mockWSServer starts a server that hands each upgraded connection, with its
// 1-based index, to handler.
func mockWSServer(t *testing.T, handler func(n int, conn *websocket.Conn)) *mockServer {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	m := &mockServer{restStatus: http.StatusOK, restBody: `{"presences":[]}`}

	mux := http.NewServeMux()
	mux.HandleFunc(model.PresencesURI, func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		status, body := m.restStatus, m.restBody
		m.mu.Unlock()

		w.WriteHeader(status)
		w.Write([]byte(body))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.authHeader = r.Header.Get("Authorization")
		m.origin = r.Header.Get("Origin")
		m.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(int(m.upgrades.Add(1)), conn)
	})

	m.Server = httptest.NewTLSServer(mux)
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) setREST(status int, body string) {
	m.mu.Lock()
	m.restStatus, m.restBody = status, body
	m.mu.Unlock()
}

func (m *mockServer) headers() (authHeader, origin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authHeader, m.origin
}

func (m *mockServer) credential(t *testing.T) model.Credential {
	t.Helper()
	u, err := url.Parse(m.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return model.Credential{Name: "Riot Client", PID: 1, Port: port, Password: testPassword, Protocol: "https"}
}

// closedPortCredential returns a credential for a loopback port nobody listens on.
func closedPortCredential(t *testing.T) model.Credential {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return model.Credential{Port: port, Password: testPassword}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FirstEventTimeout = 500 * time.Millisecond
	cfg.PingInterval = 30 * time.Millisecond
	cfg.SilenceTimeout = 150 * time.Millisecond
	cfg.WatchdogInterval = 20 * time.Millisecond
	cfg.BackoffMin = 10 * time.Millisecond
	cfg.BackoffMax = 40 * time.Millisecond
	cfg.BackoffJitter = 0
	cfg.BackoffFloor = time.Millisecond
	cfg.ProbeWait = 150 * time.Millisecond
	cfg.ProbePoll = 5 * time.Millisecond
	cfg.WriteTimeout = time.Second
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.RestTimeout = 2 * time.Second
	return cfg
}

func eventFrame(t *testing.T, uri string, data any) []byte {
	t.Helper()
	b, err := json.Marshal([]any{8, model.EventTopic, map[string]any{
		"uri":       uri,
		"eventType": "Update",
		"data":      data,
	}})
	require.NoError(t, err)
	return b
}

func privateBlob(state string) string {
	return base64.StdEncoding.EncodeToString([]byte(`{"sessionLoopState":"` + state + `"}`))
}

func presenceData(privates ...string) map[string]any {
	list := make([]map[string]any, 0, len(privates))
	for _, p := range privates {
		list = append(list, map[string]any{"puuid": "p1", "product": "valorant", "private": p})
	}
	return map[string]any{"presences": list}
}

// drain reads until the connection fails, calling onText for each text frame.
func drain(conn *websocket.Conn, onText func(data []byte)) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if onText != nil {
			onText(data)
		}
	}
}

// recorded is a point-in-time copy of a recorder.
type recorded struct {
	connected  int
	messages   int
	disconnect []error
	probes     []bool
	backoffs   []time.Duration
	states     []LoopStateChange
}

// recorder captures Observer notifications.
type recorder struct {
	mu         sync.Mutex
	connected  int
	messages   int
	disconnect []error
	probes     []bool
	backoffs   []time.Duration
	states     []LoopStateChange
}

func (r *recorder) OnConnected() {
	r.mu.Lock()
	r.connected++
	r.mu.Unlock()
}

func (r *recorder) OnDisconnected(err error) {
	r.mu.Lock()
	r.disconnect = append(r.disconnect, err)
	r.mu.Unlock()
}

func (r *recorder) OnMessage() {
	r.mu.Lock()
	r.messages++
	r.mu.Unlock()
}

func (r *recorder) OnProbe(observed bool) {
	r.mu.Lock()
	r.probes = append(r.probes, observed)
	r.mu.Unlock()
}

func (r *recorder) OnBackoff(d time.Duration) {
	r.mu.Lock()
	r.backoffs = append(r.backoffs, d)
	r.mu.Unlock()
}

func (r *recorder) OnLoopState(c LoopStateChange) {
	r.mu.Lock()
	r.states = append(r.states, c)
	r.mu.Unlock()
}

func (r *recorder) snapshot() recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorded{
		connected:  r.connected,
		messages:   r.messages,
		disconnect: append([]error(nil), r.disconnect...),
		probes:     append([]bool(nil), r.probes...),
		backoffs:   append([]time.Duration(nil), r.backoffs...),
		states:     append([]LoopStateChange(nil), r.states...),
	}
}
