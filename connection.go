// connection.go
package serialhelper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rusminto/serial.helper/parser"
)

// Sentinel errors returned by Conn operations.
var (
	// ErrNotOpen is returned when a write is attempted without a live
	// transport.
	ErrNotOpen = errors.New("connection is not open")
	// ErrRequestPending is returned when Request is called while another
	// request is still outstanding.
	ErrRequestPending = errors.New("a request is already outstanding")
)

// errAborted signals that Disconnect interrupted an in-flight connect.
var errAborted = errors.New("connect aborted by disconnect")

// Soft reset handshake parameters: a transient session at a fixed low baud
// rate with a settle delay on both edges.
const (
	softResetBaud   = 1200
	softResetSettle = 100 * time.Millisecond
)

// Conn is one resilient logical connection over a serial line.
//
// A Conn owns its transport handle exclusively: at most one handle is live
// at any time, and reconnection tears the framing feed down and replaces it
// rather than mutating it in place. Subscribers and the request correlator
// only ever observe the record feed.
type Conn struct {
	cfg    Config
	logger *zap.Logger
	events *emitter

	mu        sync.Mutex
	state     State
	port      Port
	feed      parser.Parser
	gen       uint64 // increments per open cycle; stale emissions are ignored
	wantOpen  bool   // caller intent: set by Connect, cleared by Disconnect
	retry     *time.Timer
	softReset bool // one-shot; cleared after the handshake succeeds

	pendingMu sync.Mutex
	pending   chan Record // armed request intercept, nil when idle

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
}

// New validates cfg and creates the connection. Unless cfg.NoAutoOpen is
// set the first connect runs in the background, with its outcome observable
// through the opened and error notifications and the reconnect policy.
func New(cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Conn{
		cfg:       cfg,
		logger:    cfg.Logger,
		events:    newEmitter(),
		softReset: cfg.SoftReset,
	}

	if !cfg.NoAutoOpen {
		go func() { _ = c.Connect(context.Background()) }()
	}
	return c, nil
}

// Connect opens the transport and attaches the configured framing. Calling
// it while already open or opening is a no-op. When the one-shot soft reset
// is armed it runs first, retrying until it succeeds; ctx is the only bound
// on those retries.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateOpen, StateOpening, StateClosing:
		c.mu.Unlock()
		return nil
	}
	if c.retry != nil { // collapse a pending reconnect into this attempt
		c.retry.Stop()
		c.retry = nil
	}
	c.state = StateOpening
	c.wantOpen = true
	needsReset := c.softReset
	c.mu.Unlock()

	if needsReset {
		if err := c.runSoftReset(ctx); err != nil {
			c.mu.Lock()
			c.state = StateClosed
			c.mu.Unlock()
			return err
		}
	}

	port, err := c.cfg.Open(c.cfg.Port, c.cfg.Baud)
	if err != nil {
		err = fmt.Errorf("failed to open %s: %w", c.cfg.Port, err)
		c.logger.Error("open failed", zap.Error(err))
		c.events.emitError(err)
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	if !c.wantOpen { // Disconnect raced the open
		c.state = StateClosed
		c.mu.Unlock()
		port.Close()
		return errAborted
	}
	c.gen++
	gen := c.gen
	feed, err := parser.New(c.cfg.Parser, func(record []byte) {
		c.dispatch(gen, record)
	})
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		port.Close()
		return fmt.Errorf("failed to attach framing: %w", err)
	}
	c.port = port
	c.feed = feed
	c.state = StateOpen
	c.mu.Unlock()

	go c.readLoop(gen, port, feed)

	c.logger.Info("connection open",
		zap.String("port", c.cfg.Port),
		zap.Int("baud", c.cfg.Baud),
		zap.Stringer("framing", c.cfg.Parser.Type),
	)
	c.events.emitOpened(fmt.Sprintf("connected to %s at %d baud", c.cfg.Port, c.cfg.Baud))
	return nil
}

// Disconnect closes the transport, cancels any pending reconnect and
// detaches the framing feed. It is idempotent. A deliberate Disconnect
// suppresses the automatic reconnect; only closures the caller did not ask
// for trigger one. The closed notification fires once the read loop
// observes the closure.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	c.wantOpen = false
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.state == StateReconnecting {
		c.state = StateClosed
	}
	port := c.port
	if port != nil {
		c.state = StateClosing
	}
	c.mu.Unlock()

	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", c.cfg.Port, err)
	}
	return nil
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Port returns the configured device path.
func (c *Conn) Port() string { return c.cfg.Port }

// Baud returns the configured line speed.
func (c *Conn) Baud() int { return c.cfg.Baud }

// BytesSent returns the number of payload bytes written since construction.
func (c *Conn) BytesSent() uint64 { return c.bytesSent.Load() }

// BytesReceived returns the number of bytes read since construction.
func (c *Conn) BytesReceived() uint64 { return c.bytesReceived.Load() }

// OnOpened registers a handler for the opened notification.
func (c *Conn) OnOpened(fn func(msg string)) Subscription {
	return c.events.subscribeOpened(fn)
}

// OnClosed registers a handler for the closed notification.
func (c *Conn) OnClosed(fn func(msg string)) Subscription {
	return c.events.subscribeClosed(fn)
}

// OnError registers a handler for transport and write failures. Failures are
// always fanned out here in addition to the error the initiating call
// returns, so a caller relying solely on notifications misses nothing.
func (c *Conn) OnError(fn func(err error)) Subscription {
	return c.events.subscribeError(fn)
}

// OnData registers a handler for inbound records. Records intercepted by an
// outstanding Request do not reach data handlers.
func (c *Conn) OnData(fn func(rec Record)) Subscription {
	return c.events.subscribeData(fn)
}

// Unsubscribe removes a previously registered handler.
func (c *Conn) Unsubscribe(t Subscription) {
	c.events.unsubscribe(t)
}

// runSoftReset repeats the handshake until it succeeds, then clears the
// one-shot flag so it never runs again on later reconnects. There is no
// delay between attempts beyond the handshake's own settle times.
func (c *Conn) runSoftReset(ctx context.Context) error {
	for {
		err := c.softResetOnce(ctx)
		if err == nil {
			c.mu.Lock()
			c.softReset = false
			c.mu.Unlock()
			c.logger.Info("soft reset complete", zap.String("port", c.cfg.Port))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.mu.Lock()
		aborted := !c.wantOpen
		c.mu.Unlock()
		if aborted {
			return errAborted
		}
		c.logger.Warn("soft reset attempt failed, retrying", zap.Error(err))
	}
}

// softResetOnce opens the port at the reset baud, lets the device settle,
// closes it again and settles once more.
func (c *Conn) softResetOnce(ctx context.Context) error {
	port, err := c.cfg.Open(c.cfg.Port, softResetBaud)
	if err != nil {
		return fmt.Errorf("failed to open %s at %d baud: %w", c.cfg.Port, softResetBaud, err)
	}
	if err := sleep(ctx, softResetSettle); err != nil {
		port.Close()
		return err
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close reset session: %w", err)
	}
	return sleep(ctx, softResetSettle)
}

// readLoop pumps transport bytes into the framing feed until the port
// reports an error, then runs the close path for its generation.
func (c *Conn) readLoop(gen uint64, port Port, feed parser.Parser) {
	buf := make([]byte, 4096)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			c.bytesReceived.Add(uint64(n))
			feed.Feed(buf[:n])
		}
		if err != nil {
			c.transportClosed(gen, err)
			return
		}
	}
}

// transportClosed tears down one open cycle: detach the feed, drop the
// handle, notify closed, and apply the reconnect policy. Whether the
// closure was deliberate is carried by wantOpen, not by the cause.
func (c *Conn) transportClosed(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	port := c.port
	feed := c.feed
	c.port = nil
	c.feed = nil
	c.state = StateClosed
	wantOpen := c.wantOpen
	c.mu.Unlock()

	if feed != nil {
		feed.Reset()
	}
	if port != nil {
		port.Close()
	}

	c.logger.Info("connection closed",
		zap.String("port", c.cfg.Port),
		zap.NamedError("cause", cause),
	)
	c.events.emitClosed(fmt.Sprintf("disconnected from %s", c.cfg.Port))

	if wantOpen {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms exactly one retry after the configured interval.
// Retries repeat indefinitely at that fixed spacing for as long as closures
// keep recurring.
func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.NoAutoReconnect || !c.wantOpen {
		c.state = StateClosed
		return
	}
	if c.retry != nil {
		return
	}
	c.state = StateReconnecting
	c.retry = time.AfterFunc(c.cfg.ReconnectInterval, func() {
		c.mu.Lock()
		c.retry = nil
		abandoned := !c.wantOpen // Disconnect raced the timer
		c.mu.Unlock()
		if abandoned {
			return
		}
		_ = c.Connect(context.Background())
	})
	c.logger.Info("reconnect scheduled",
		zap.String("port", c.cfg.Port),
		zap.Duration("interval", c.cfg.ReconnectInterval),
	)
}

// dispatch routes one framed record: decode per framing mode, then hand it
// to the armed request intercept or the data subscribers. Emissions from a
// previous open cycle are dropped.
func (c *Conn) dispatch(gen uint64, raw []byte) {
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}

	var rec Record
	if c.cfg.Parser.Type == parser.Line {
		rec = decodeLine(raw)
	} else {
		rec = binaryRecord(raw)
	}

	if c.deliverPending(rec) {
		return
	}
	if rec.noise() {
		return
	}
	c.events.emitData(rec)
}

// deliverPending hands the record to the armed intercept, if any. The
// intercept is one-shot: it is disarmed before the send.
func (c *Conn) deliverPending(rec Record) bool {
	c.pendingMu.Lock()
	ch := c.pending
	c.pending = nil
	c.pendingMu.Unlock()
	if ch == nil {
		return false
	}
	ch <- rec
	return true
}

// sleep waits d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
