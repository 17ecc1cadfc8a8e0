package binance

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
	"github.com/henrytriplette/binance-trade-bot/internal/stream"
)

const handshakeTimeout = 10 * time.Second

// Transport implements stream.Transport over gorilla/websocket. Each logical
// stream gets its own connection, a proactive ping/pong keepalive, and an
// automatic reconnect loop beneath the handle: link drops are absorbed here
// and never surface as subscription failures.
type Transport struct {
	baseURL      string
	pingInterval time.Duration
	pongTimeout  time.Duration
	log          *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	streams map[stream.Handle]*streamConn
	wg      sync.WaitGroup
}

// streamConn is one logical stream and its current underlying connection.
type streamConn struct {
	path      string
	onMessage func(raw []byte)
	ctx       context.Context
	cancel    context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn
}

func (sc *streamConn) current() *websocket.Conn {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.conn
}

func (sc *streamConn) setConn(conn *websocket.Conn) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.conn = conn
}

func (sc *streamConn) close() {
	sc.cancel()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.conn != nil {
		sc.conn.Close()
	}
}

// NewTransport creates a transport rooted at baseURL, e.g.
// "wss://stream.binance.com:9443". Streams connect at baseURL + "/ws/" + path.
func NewTransport(baseURL string, pingInterval, pongTimeout time.Duration, log *slog.Logger) *Transport {
	return &Transport{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		log:          log,
		streams:      make(map[stream.Handle]*streamConn),
	}
}

// StartEventLoop makes the transport ready to open streams.
func (t *Transport) StartEventLoop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.running = true
}

// StopEventLoop tears down every stream and waits for their goroutines.
func (t *Transport) StopEventLoop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.cancel()
	conns := make([]*streamConn, 0, len(t.streams))
	for _, sc := range t.streams {
		conns = append(conns, sc)
	}
	t.streams = make(map[stream.Handle]*streamConn)
	t.mu.Unlock()

	for _, sc := range conns {
		sc.close()
	}
	t.wg.Wait()
}

// Start dials the stream at path and begins delivering frames to onMessage,
// one at a time, in arrival order. The path doubles as the handle, so a path
// can only be open once.
func (t *Transport) Start(path string, onMessage func(raw []byte)) (stream.Handle, error) {
	h := stream.Handle(path)

	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return "", domain.NewFatalTransportError("start", domain.ErrEventLoopStopped)
	}
	if _, dup := t.streams[h]; dup {
		t.mu.Unlock()
		return "", domain.NewFatalTransportError("start", domain.ErrDuplicateStream)
	}
	parent := t.ctx
	t.mu.Unlock()

	conn, err := t.dial(parent, path)
	if err != nil {
		return "", domain.NewTransportError("dial", err)
	}

	ctx, cancel := context.WithCancel(parent)
	sc := &streamConn{path: path, onMessage: onMessage, ctx: ctx, cancel: cancel, conn: conn}

	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		sc.close()
		return "", domain.NewFatalTransportError("start", domain.ErrEventLoopStopped)
	}
	t.streams[h] = sc
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(sc)

	t.log.Debug("transport stream opened", slog.String("path", path))
	return h, nil
}

// Stop tears down one stream.
func (t *Transport) Stop(h stream.Handle) error {
	t.mu.Lock()
	sc, ok := t.streams[h]
	if ok {
		delete(t.streams, h)
	}
	t.mu.Unlock()

	if !ok {
		return domain.ErrUnknownStream
	}
	sc.close()
	t.log.Debug("transport stream closed", slog.String("path", sc.path))
	return nil
}

func (t *Transport) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, t.baseURL+"/ws/"+path, nil)
	return conn, err
}

// run reads the stream until it is stopped, redialing with exponential
// backoff whenever the connection drops.
func (t *Transport) run(sc *streamConn) {
	defer t.wg.Done()

	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Jitter: true}
	for {
		err := t.consume(sc)
		if sc.ctx.Err() != nil {
			return
		}
		t.log.Warn("stream connection lost, reconnecting",
			slog.String("path", sc.path),
			slog.Any("error", err))

		for {
			select {
			case <-sc.ctx.Done():
				return
			case <-time.After(b.Duration()):
			}

			conn, err := t.dial(sc.ctx, sc.path)
			if err != nil {
				t.log.Warn("stream reconnect failed",
					slog.String("path", sc.path),
					slog.Any("error", err))
				continue
			}
			sc.setConn(conn)
			b.Reset()
			t.log.Debug("stream reconnected", slog.String("path", sc.path))
			break
		}
	}
}

// consume runs the keepalive and read loop for the current connection until
// it fails. A missing pong within pongTimeout of a ping fails the read via
// the deadline.
func (t *Transport) consume(sc *streamConn) error {
	conn := sc.current()

	deadline := func() time.Time { return time.Now().Add(t.pingInterval + t.pongTimeout) }
	conn.SetReadDeadline(deadline())
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(deadline())
	})

	pingCtx, stopPing := context.WithCancel(sc.ctx)
	defer stopPing()
	go t.pingLoop(pingCtx, conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return err
		}
		conn.SetReadDeadline(deadline())
		sc.onMessage(msg)
	}
}

func (t *Transport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.pongTimeout)); err != nil {
				return
			}
		}
	}
}
