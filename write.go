// write.go
package serialhelper

import (
	"fmt"

	"go.uber.org/zap"
)

// Write converts data via ToBytes and writes it to the open transport,
// waiting for the drain so the bytes are on the wire when it returns.
// Transport failures are also fanned out through the error notification.
func (c *Conn) Write(data any) error {
	return c.writeBytes(ToBytes(data))
}

// Print writes the string form of v.
func (c *Conn) Print(v any) error {
	return c.writeBytes([]byte(stringify(v)))
}

// Println writes the string form of v followed by a newline.
func (c *Conn) Println(v any) error {
	return c.writeBytes([]byte(stringify(v) + "\n"))
}

func (c *Conn) writeBytes(payload []byte) error {
	c.mu.Lock()
	port := c.port
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || port == nil {
		c.events.emitError(ErrNotOpen)
		return ErrNotOpen
	}

	if c.cfg.Debug >= DebugVerbose {
		c.logger.Debug("write",
			zap.String("port", c.cfg.Port),
			zap.Binary("payload", payload),
		)
	}

	n, err := port.Write(payload)
	switch {
	case err != nil:
		err = fmt.Errorf("failed to write to %s: %w", c.cfg.Port, err)
	case n < len(payload):
		err = fmt.Errorf("short write to %s: %d of %d bytes", c.cfg.Port, n, len(payload))
	default:
		if derr := port.Drain(); derr != nil {
			err = fmt.Errorf("failed to drain %s: %w", c.cfg.Port, derr)
		}
	}
	if err != nil {
		c.logger.Error("write failed", zap.Error(err))
		c.events.emitError(err)
		return err
	}

	c.bytesSent.Add(uint64(n))
	return nil
}
