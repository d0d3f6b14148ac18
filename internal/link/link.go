package link

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/events"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
)

// Conn is one established connection to the wearable.
type Conn interface {
	// Subscribe enables notifications on the telemetry characteristic.
	Subscribe(handler func(payload []byte)) error
	// Write performs a write-with-response on the command characteristic.
	Write(ctx context.Context, data []byte) error
	// Disconnected is closed when the peripheral drops the connection.
	Disconnected() <-chan struct{}
	Disconnect(ctx context.Context) error
}

// Transport establishes connections to the configured peripheral.
// Connect must return promptly once ctx is done.
type Transport interface {
	Connect(ctx context.Context) (Conn, error)
}

type Config struct {
	ConnectTimeout    time.Duration
	Backoff           time.Duration
	CommandTimeout    time.Duration
	DisconnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    10 * time.Second,
		Backoff:           2 * time.Second,
		CommandTimeout:    2 * time.Second,
		DisconnectTimeout: 3 * time.Second,
	}
}

type commandRequest struct {
	ctx   context.Context
	data  []byte
	reply chan error
}

// Link keeps a connection to one wearable alive, decodes its notifications
// and forwards commands to it. The connection loop runs until Disconnect.
type Link struct {
	transport Transport
	cfg       Config
	logger    *log.Logger
	now       func() time.Time

	mu        sync.RWMutex
	state     ConnectionState
	sample    TelemetrySample
	hasSample bool
	cancel    context.CancelFunc
	loopDone  chan struct{}

	commands    chan commandRequest
	stateEvent  *events.ChannelEvent[ConnectionState]
	sampleEvent *events.CallbackEvent[TelemetrySample]
}

func New(transport Transport, cfg Config, logger *log.Logger) *Link {
	if transport == nil {
		panic("Link: transport cannot be nil")
	}
	if logger == nil {
		panic("Link: logger cannot be nil")
	}
	l := &Link{
		transport:   transport,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		state:       Disconnected,
		commands:    make(chan commandRequest),
		stateEvent:  events.NewChannelEvent[ConnectionState](true),
		sampleEvent: events.NewCallbackEvent[TelemetrySample](false),
	}
	l.stateEvent.Notify(Disconnected)
	return l
}

// ConnectInBackground starts the connection loop. It is a no-op while a loop
// is already running.
func (l *Link) ConnectInBackground() {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.loopDone = done
	l.mu.Unlock()

	l.logger.Printf("Link: starting connection loop")
	go_func_utils.SafeGo(l.logger, func() {
		defer close(done)
		l.run(ctx)
	})
}

// Disconnect stops the connection loop, closes the peripheral connection and
// leaves the link Disconnected. Safe to call at any time.
func (l *Link) Disconnect() {
	l.mu.Lock()
	cancel, done := l.cancel, l.loopDone
	l.cancel = nil
	l.loopDone = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(l.cfg.DisconnectTimeout):
			l.logger.Printf("Link: loop still closing after %v", l.cfg.DisconnectTimeout)
		}
	}
	l.setState(Disconnected)
}

func (l *Link) ConnectionState() ConnectionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// LatestSample returns the last decoded sample, valid or not.
func (l *Link) LatestSample() (TelemetrySample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sample, l.hasSample
}

// ListenToState delivers every published state. The current state is
// delivered on registration.
func (l *Link) ListenToState(ch chan<- ConnectionState) func() {
	return l.stateEvent.Listen(ch)
}

// OnSample registers a callback run on the notification goroutine for each
// decoded sample.
func (l *Link) OnSample(callback func(TelemetrySample)) func() {
	return l.sampleEvent.Listen(callback)
}

// SendCommand writes value as decimal text to the wearable. The write runs on
// the connection loop; the caller waits at most the command timeout.
func (l *Link) SendCommand(value int64) error {
	l.mu.RLock()
	state, done := l.state, l.loopDone
	l.mu.RUnlock()
	if state != Connected || done == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.CommandTimeout)
	defer cancel()
	req := commandRequest{ctx: ctx, data: EncodeCommand(value), reply: make(chan error, 1)}

	select {
	case l.commands <- req:
	case <-done:
		return ErrLinkStopped
	case <-ctx.Done():
		return ErrCommandTimeout
	}

	select {
	case err := <-req.reply:
		return err
	case <-done:
		return ErrLinkStopped
	case <-ctx.Done():
		return ErrCommandTimeout
	}
}

func (l *Link) run(ctx context.Context) {
	defer l.logger.Printf("Link: connection loop exited")
	for {
		l.publish(ctx, Connecting)
		conn, err := l.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.logger.Printf("Link: connect failed: %v, retrying in %v", err, l.cfg.Backoff)
		} else {
			l.publish(ctx, Connected)
			l.logger.Printf("Link: connected")
			if !l.serve(ctx, conn) {
				return
			}
			l.publish(ctx, Disconnected)
			l.logger.Printf("Link: connection lost, retrying in %v", l.cfg.Backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.Backoff):
		}
	}
}

func (l *Link) connect(ctx context.Context) (Conn, error) {
	connectCtx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancel()

	conn, err := l.transport.Connect(connectCtx)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	if err := conn.Subscribe(l.handleNotification); err != nil {
		l.closeConn(conn)
		return nil, &TransportError{Op: "subscribe", Err: err}
	}
	if ctx.Err() != nil {
		l.closeConn(conn)
		return nil, ctx.Err()
	}
	return conn, nil
}

// serve owns conn until it drops or ctx ends. It reports whether the loop
// should keep going.
func (l *Link) serve(ctx context.Context, conn Conn) bool {
	for {
		select {
		case <-ctx.Done():
			l.closeConn(conn)
			return false
		case <-conn.Disconnected():
			return true
		case req := <-l.commands:
			req.reply <- l.write(conn, req)
		}
	}
}

func (l *Link) write(conn Conn, req commandRequest) error {
	if err := req.ctx.Err(); err != nil {
		return ErrCommandTimeout
	}
	err := conn.Write(req.ctx, req.data)
	switch {
	case err == nil:
		l.logger.Printf("Link: wrote command %q", req.data)
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		l.logger.Printf("Link: command %q timed out", req.data)
		return ErrCommandTimeout
	default:
		l.logger.Printf("Link: command %q failed: %v", req.data, err)
		return &TransportError{Op: "write", Err: err}
	}
}

func (l *Link) closeConn(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.DisconnectTimeout)
	defer cancel()
	if err := conn.Disconnect(ctx); err != nil {
		l.logger.Printf("Link: disconnect: %v", err)
	}
}

func (l *Link) handleNotification(payload []byte) {
	sample, err := DecodeSample(payload, l.now())
	if err != nil {
		l.logger.Printf("Link: ignoring notification %q: %v", payload, err)
		return
	}
	l.mu.Lock()
	l.sample = sample
	l.hasSample = true
	l.mu.Unlock()
	l.sampleEvent.Notify(sample)
}

// publish sets the state unless ctx has been cancelled, so a loop that is
// shutting down never overwrites the state Disconnect leaves behind.
func (l *Link) publish(ctx context.Context, state ConnectionState) {
	l.mu.Lock()
	if ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	l.state = state
	l.stateEvent.Notify(state)
	l.mu.Unlock()
}

// setState notifies under the lock so listeners see states in the order they
// were set. Notify never blocks.
func (l *Link) setState(state ConnectionState) {
	l.mu.Lock()
	l.state = state
	l.stateEvent.Notify(state)
	l.mu.Unlock()
}
