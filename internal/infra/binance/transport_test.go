package binance

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
)

// echoServer upgrades each connection, sends the scripted frames for its
// connection number, then keeps reading so control frames are serviced.
type echoServer struct {
	t      *testing.T
	mu     sync.Mutex
	conns  int
	frames func(conn int) [][]byte
	closeAfterFrames bool
}

func (s *echoServer) handler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Logf("upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.conns++
	n := s.conns
	s.mu.Unlock()

	for _, f := range s.frames(n) {
		if err := c.WriteMessage(websocket.TextMessage, f); err != nil {
			return
		}
	}
	if s.closeAfterFrames {
		c.Close()
		return
	}
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *echoServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func newTestTransport(t *testing.T, srvURL string) *Transport {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http")
	return NewTransport(wsURL, 100*time.Millisecond, 100*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTransport_DeliversFramesInOrder(t *testing.T) {
	es := &echoServer{t: t, frames: func(int) [][]byte {
		return [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	}}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	tr.StartEventLoop()
	defer tr.StopEventLoop()

	var mu sync.Mutex
	var got []string
	h, err := tr.Start("!ticker@arr", func(raw []byte) {
		mu.Lock()
		got = append(got, string(raw))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Errorf("unexpected frames: %v", got)
	}

	if err := tr.Stop(h); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestTransport_StartRequiresEventLoop(t *testing.T) {
	tr := NewTransport("ws://localhost:1", time.Second, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := tr.Start("!ticker@arr", func([]byte) {})
	if !errors.Is(err, domain.ErrEventLoopStopped) {
		t.Errorf("expected ErrEventLoopStopped, got %v", err)
	}
}

func TestTransport_DuplicatePath(t *testing.T) {
	es := &echoServer{t: t, frames: func(int) [][]byte { return nil }}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	tr.StartEventLoop()
	defer tr.StopEventLoop()

	if _, err := tr.Start("!ticker@arr", func([]byte) {}); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	_, err := tr.Start("!ticker@arr", func([]byte) {})
	if !errors.Is(err, domain.ErrDuplicateStream) {
		t.Errorf("expected ErrDuplicateStream, got %v", err)
	}
}

func TestTransport_DialFailure(t *testing.T) {
	// Nothing listens here; the dial must fail immediately and retriably.
	tr := NewTransport("ws://127.0.0.1:1", time.Second, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.StartEventLoop()
	defer tr.StopEventLoop()

	_, err := tr.Start("!ticker@arr", func([]byte) {})
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !domain.IsRetriable(err) {
		t.Errorf("dial failure should be retriable, got %v", err)
	}
}

func TestTransport_StopUnknownHandle(t *testing.T) {
	es := &echoServer{t: t, frames: func(int) [][]byte { return nil }}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	tr.StartEventLoop()
	defer tr.StopEventLoop()

	if err := tr.Stop("nope"); !errors.Is(err, domain.ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream, got %v", err)
	}
}

func TestTransport_ReconnectsBeneathHandle(t *testing.T) {
	// First connection drops after one frame; the transport must redial and
	// keep delivering on the same handle.
	es := &echoServer{t: t, closeAfterFrames: false, frames: func(conn int) [][]byte {
		if conn == 1 {
			return [][]byte{[]byte("before-drop")}
		}
		return [][]byte{[]byte("after-drop")}
	}}
	es.closeAfterFrames = true
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	tr.StartEventLoop()
	defer tr.StopEventLoop()

	var mu sync.Mutex
	var got []string
	_, err := tr.Start("!ticker@arr", func(raw []byte) {
		mu.Lock()
		got = append(got, string(raw))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) < 2 || got[0] != "before-drop" || got[1] != "after-drop" {
		t.Errorf("expected delivery across reconnect, got %v", got)
	}
	if es.connCount() < 2 {
		t.Errorf("expected at least 2 connections, got %d", es.connCount())
	}
}
