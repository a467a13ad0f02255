// request.go
package serialhelper

import (
	"context"
	"time"
)

// Request writes payload and waits for the next inbound record, the timeout
// or ctx, whichever resolves first. A timeout of zero or below uses
// Config.RequestTimeout.
//
// The three outcomes map onto the return values: (record, nil) when a reply
// arrives in time; (nil, nil) when the line stays quiet past the timeout,
// which is not an error and emits no error notification; (nil, err) when
// the write fails, with the same cause fanned out through the error
// notification. The reply intercept is armed before the write so a fast
// responder cannot slip past it, and while it is armed the next record
// never reaches data subscribers. Line framing delivers the reply decoded;
// the binary framings deliver it raw.
//
// At most one request may be outstanding per connection; an overlapping
// call fails immediately with ErrRequestPending.
func (c *Conn) Request(ctx context.Context, payload any, timeout time.Duration) (*Record, error) {
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}

	ch := make(chan Record, 1)
	c.pendingMu.Lock()
	if c.pending != nil {
		c.pendingMu.Unlock()
		return nil, ErrRequestPending
	}
	c.pending = ch
	c.pendingMu.Unlock()

	if err := c.Write(payload); err != nil {
		c.clearPending(ch)
		c.releaseRecord(ch)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rec := <-ch:
		return &rec, nil

	case <-timer.C:
		c.clearPending(ch)
		// the record may have won while the intercept was being disarmed
		select {
		case rec := <-ch:
			return &rec, nil
		default:
		}
		return nil, nil

	case <-ctx.Done():
		c.clearPending(ch)
		select {
		case rec := <-ch:
			return &rec, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// clearPending disarms the intercept if it is still this request's.
func (c *Conn) clearPending(ch chan Record) {
	c.pendingMu.Lock()
	if c.pending == ch {
		c.pending = nil
	}
	c.pendingMu.Unlock()
}

// releaseRecord hands a record that was intercepted by an already-failed
// request back to the normal data path.
func (c *Conn) releaseRecord(ch chan Record) {
	select {
	case rec := <-ch:
		if !rec.noise() {
			c.events.emitData(rec)
		}
	default:
	}
}
