package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/JuniperScore/core/merge"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// waitClients waits until the hub has n clients.
func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", h.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
	return ev
}

func TestWebSocketMergeEvents(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, s.Hub(), 1)

	status, env := call(t, http.MethodPost, ts.URL+"/merge", MergeRequest{Primary: twoVoices},
		http.Header{"X-Request-Id": {"req-42"}})
	if status != http.StatusOK {
		t.Fatalf("merge = %d %+v", status, env.Error)
	}

	ev := readEvent(t, conn)
	if ev.Type != EventMismatch || ev.Mismatch == nil || ev.Mismatch.Kind != merge.MismatchPitch || ev.RequestID != "req-42" {
		t.Errorf("first event = %+v", ev)
	}
	ev = readEvent(t, conn)
	if ev.Type != EventComplete || ev.RunID == "" || ev.Report == nil || ev.Report.Groups != 1 {
		t.Errorf("second event = %+v", ev)
	}
}

func TestWebSocketErrorEvent(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, s.Hub(), 1)

	call(t, http.MethodPost, ts.URL+"/merge", MergeRequest{Format: "pae", Primary: "@data:4Q"}, nil)
	if ev := readEvent(t, conn); ev.Type != EventError || ev.Message == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestWebSocketOrigin(t *testing.T) {
	_, ts := newTestServer(t, Config{AllowedOrigins: []string{"https://scores.example.org"}})

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), http.Header{"Origin": {"https://evil.example"}}); err == nil {
		t.Error("foreign origin accepted")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign origin status = %d", resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), http.Header{"Origin": {"https://scores.example.org"}})
	if err != nil {
		t.Fatalf("allowed origin refused: %v", err)
	}
	conn.Close()
}

func TestWebSocketAuth(t *testing.T) {
	const key = "0123456789abcdef0123"
	_, ts := newTestServer(t, Config{Auth: AuthConfig{Enabled: true, APIKey: key}})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("dial without key: err %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL)+"?api_key="+key, nil)
	if err != nil {
		t.Fatalf("query key refused: %v", err)
	}
	conn.Close()
	conn, _, err = websocket.DefaultDialer.Dial(wsURL(ts.URL), http.Header{"X-Api-Key": {key}})
	if err != nil {
		t.Fatalf("header key refused: %v", err)
	}
	conn.Close()
}

func TestWebSocketClientRateLimit(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, s.Hub(), 1)

	burst := DefaultWebSocketSecurityConfig().MaxMessageRate*2 + 5
	for range burst {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
			break
		}
	}
	waitClients(t, s.Hub(), 0)
}

func TestHubStop(t *testing.T) {
	h := NewHub()
	go h.Run()
	c := &Client{hub: h, send: make(chan []byte, 1)}
	if !h.attach(c) {
		t.Fatal("attach failed on a running hub")
	}
	h.Stop()
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("send channel delivered instead of closing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not close the client channel")
	}
	if h.attach(&Client{hub: h, send: make(chan []byte)}) {
		t.Error("attach succeeded on a stopped hub")
	}
	h.Stop()
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()
	c := &Client{hub: h, send: make(chan []byte)}
	h.attach(c)
	h.Broadcast(Event{Type: EventComplete})
	waitClients(t, h, 0)
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"", nil, true},
		{"https://a.example", nil, true},
		{"", []string{"*"}, false},
		{"https://a.example", []string{"*"}, true},
		{"https://a.example", []string{"https://a.example"}, true},
		{"https://b.example", []string{"https://a.example"}, false},
		{"https://app.example.com", []string{"*.example.com"}, true},
		{"https://evilexample.com", []string{"*.example.com"}, false},
	}
	for _, tt := range tests {
		if got := isOriginAllowed(tt.origin, tt.allowed); got != tt.want {
			t.Errorf("isOriginAllowed(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
		}
	}
}
