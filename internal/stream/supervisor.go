package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
	"github.com/henrytriplette/binance-trade-bot/internal/event"
	"github.com/henrytriplette/binance-trade-bot/internal/infra"
	"github.com/henrytriplette/binance-trade-bot/internal/service"
)

// Kind names one of the two logical subscriptions.
type Kind string

const (
	KindTicker Kind = "ticker"
	KindUser   Kind = "user"
)

const (
	// TickerStreamPath is the all-market ticker stream.
	TickerStreamPath = "!ticker@arr"

	// maxStartAttempts bounds the start retry loop. Exhaustion is surfaced to
	// the caller as ErrStreamNotEstablished, never as a process crash.
	maxStartAttempts = 20

	// defaultStartPause is the single fixed pause before the first connect
	// attempt. There is deliberately no per-attempt backoff after it; the
	// transport's own reconnect layer handles transient link flaps.
	defaultStartPause = time.Second

	defaultInboxSize   = 256
	defaultFaultBuffer = 64
)

// subscription is the per-stream state owned by the supervisor.
type subscription struct {
	kind  Kind
	path  func(ctx context.Context) (string, error)
	parse func(raw []byte) (event.Event, error)
	clear func() // cache collection dropped when the stream is rebuilt
	inbox chan []byte

	mu     sync.Mutex
	handle Handle
	active bool
}

func (sub *subscription) setHandle(h Handle, active bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.handle = h
	sub.active = active
}

func (sub *subscription) currentHandle() (Handle, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.handle, sub.active
}

// Options tune a Supervisor. The zero value gives production behavior.
type Options struct {
	StartPause  time.Duration         // pause before the first connect attempt (default 1s)
	InboxSize   int                   // per-subscription frame buffer (default 256)
	FaultBuffer int                   // fault channel capacity (default 64)
	OnOrder     func(o *domain.Order) // optional fill observer, called after the cache write
	Metrics     *infra.Metrics        // defaults to infra.GlobalMetrics
}

// Supervisor owns the two logical Binance subscriptions (ticker, user) and
// their lifecycle: bounded-retry startup, in-band-error restarts with cache
// clear, and shutdown. Inbound frames are processed in order per
// subscription; the two subscriptions run concurrently with each other.
type Supervisor struct {
	transport Transport
	cache     *service.Cache
	keys      ListenKeySource
	log       *slog.Logger
	metrics   *infra.Metrics

	startPause time.Duration
	onOrder    func(o *domain.Order)

	ticker *subscription
	user   *subscription

	listenKey atomic.Value // string, last acquired user-stream listen key

	ctx       context.Context
	done      chan struct{}
	faults    chan error
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSupervisor wires a supervisor over a transport, a cache and a listen-key
// source. The logger receives a debug/warn record at every state transition.
func NewSupervisor(t Transport, cache *service.Cache, keys ListenKeySource, log *slog.Logger, opts Options) *Supervisor {
	if opts.StartPause == 0 {
		opts.StartPause = defaultStartPause
	}
	if opts.InboxSize == 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.FaultBuffer == 0 {
		opts.FaultBuffer = defaultFaultBuffer
	}
	if opts.Metrics == nil {
		opts.Metrics = infra.GlobalMetrics
	}

	s := &Supervisor{
		transport:  t,
		cache:      cache,
		keys:       keys,
		log:        log,
		metrics:    opts.Metrics,
		startPause: opts.StartPause,
		onOrder:    opts.OnOrder,
		done:       make(chan struct{}),
		faults:     make(chan error, opts.FaultBuffer),
	}
	s.listenKey.Store("")

	s.ticker = &subscription{
		kind:  KindTicker,
		path:  func(context.Context) (string, error) { return TickerStreamPath, nil },
		parse: ParseTickerMessage,
		clear: cache.ClearTickerPrices,
		inbox: make(chan []byte, opts.InboxSize),
	}
	s.user = &subscription{
		kind:  KindUser,
		path:  s.userStreamPath,
		parse: ParseUserMessage,
		clear: cache.ClearBalances,
		inbox: make(chan []byte, opts.InboxSize),
	}
	return s
}

// userStreamPath acquires a fresh listen key; the key doubles as the stream
// path on the combined endpoint.
func (s *Supervisor) userStreamPath(ctx context.Context) (string, error) {
	key, err := s.keys.ListenKey(ctx)
	if err != nil {
		return "", err
	}
	s.listenKey.Store(key)
	return key, nil
}

// UserListenKey returns the most recently acquired user-stream listen key, or
// "" before the user subscription first connects. The keepalive loop reads it.
func (s *Supervisor) UserListenKey() string {
	return s.listenKey.Load().(string)
}

// Faults delivers translator faults (malformed messages, absent-key balance
// deletes). The supervisor only reports them; whether they are fatal is the
// caller's policy.
func (s *Supervisor) Faults() <-chan error {
	return s.faults
}

// Start brings up the event loop and both subscriptions. A subscription whose
// bounded retry loop is exhausted is reported in the returned error, wrapped
// around ErrStreamNotEstablished; the other subscription is still attempted
// and keeps running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.ctx = ctx
	s.transport.StartEventLoop()

	var errs []error
	for _, sub := range []*subscription{s.ticker, s.user} {
		s.wg.Add(1)
		go s.processLoop(sub)

		if !s.establish(sub) {
			errs = append(errs, fmt.Errorf("%s stream: %w", sub.kind, domain.ErrStreamNotEstablished))
		}
	}
	return errors.Join(errs...)
}

// establish runs the bounded start loop for one subscription: a single fixed
// pause, then up to maxStartAttempts attempts with no inter-attempt delay.
// Each failure logs a warning; the underlying cause is logged once, on the
// first failure only.
func (s *Supervisor) establish(sub *subscription) bool {
	s.log.Debug("starting stream", slog.String("stream", string(sub.kind)))

	for attempt := 0; attempt < maxStartAttempts; attempt++ {
		if attempt == 0 {
			select {
			case <-time.After(s.startPause):
			case <-s.done:
				return false
			}
		}

		path, err := sub.path(s.ctx)
		if err == nil {
			var h Handle
			h, err = s.transport.Start(path, s.deliver(sub))
			if err == nil {
				sub.setHandle(h, true)
				s.metrics.IncrementStreams()
				s.log.Debug("stream active",
					slog.String("stream", string(sub.kind)),
					slog.Int("attempt", attempt))
				return true
			}
		}

		s.log.Warn("failed to connect to stream, trying again",
			slog.String("stream", string(sub.kind)),
			slog.Int("attempt", attempt),
			slog.Int("maxAttempts", maxStartAttempts))
		if attempt == 0 {
			s.log.Info("stream connect failure cause",
				slog.String("stream", string(sub.kind)),
				slog.Any("error", err))
		}
	}
	return false
}

// deliver returns the transport callback for one subscription. Frames are
// queued to the subscription's inbox; the send blocks rather than drops so
// that in-order processing also means complete processing.
func (s *Supervisor) deliver(sub *subscription) func(raw []byte) {
	return func(raw []byte) {
		select {
		case sub.inbox <- raw:
		case <-s.done:
		}
	}
}

// processLoop is the dedicated processing goroutine of one subscription.
func (s *Supervisor) processLoop(sub *subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case raw := <-sub.inbox:
			s.processFrame(sub, raw)
		}
	}
}

func (s *Supervisor) processFrame(sub *subscription, raw []byte) {
	started := time.Now()

	ev, err := sub.parse(raw)
	if err != nil {
		s.fault(err)
		return
	}
	if ev == nil {
		// Unrecognized event kind; ignored for forward compatibility.
		return
	}

	if _, ok := ev.(*event.StreamError); ok {
		s.log.Debug("in-band stream error",
			slog.String("stream", string(sub.kind)),
			slog.String("payload", string(raw)))
		s.restart(sub)
		return
	}

	orderUpdate, _ := ev.(*event.OrderUpdate)

	if err := Apply(ev, s.cache); err != nil {
		s.fault(err)
		return
	}
	s.metrics.RecordEvent(time.Since(started).Nanoseconds())

	if orderUpdate != nil && s.onOrder != nil {
		s.onOrder(orderUpdate.Order)
	}
}

// restart handles an in-band error: stop the transport handle, clear the
// subscription's cache collection, then re-enter the bounded start. Runs on
// the subscription's own processing goroutine, so frames stay ordered around
// the restart. This can happen unboundedly many times over the process
// lifetime, once per error message.
func (s *Supervisor) restart(sub *subscription) {
	if h, active := sub.currentHandle(); active {
		if err := s.transport.Stop(h); err != nil {
			s.log.Warn("failed to stop stream before restart",
				slog.String("stream", string(sub.kind)),
				slog.Any("error", err))
		}
		sub.setHandle("", false)
		s.metrics.DecrementStreams()
	}

	sub.clear()
	s.metrics.RecordRestart()

	if !s.establish(sub) {
		s.log.Warn("stream not re-established after in-band error",
			slog.String("stream", string(sub.kind)))
	}
}

func (s *Supervisor) fault(err error) {
	s.metrics.RecordFault()
	s.log.Warn("stream message fault", slog.Any("error", err))
	select {
	case s.faults <- err:
	default:
		s.log.Warn("fault channel full, dropping fault", slog.Any("error", err))
	}
}

// Close stops both subscriptions and the transport event loop, then waits for
// the processing goroutines to drain. It is the only cancellation primitive.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		for _, sub := range []*subscription{s.ticker, s.user} {
			if h, active := sub.currentHandle(); active {
				if err := s.transport.Stop(h); err != nil {
					s.log.Warn("failed to stop stream on close",
						slog.String("stream", string(sub.kind)),
						slog.Any("error", err))
				}
				sub.setHandle("", false)
				s.metrics.DecrementStreams()
			}
		}
		s.transport.StopEventLoop()
		s.log.Debug("stream supervisor closed")
	})
	s.wg.Wait()
}
