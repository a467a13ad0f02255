// parser/parser.go

// Package parser provides the framing strategies that split a raw serial
// byte stream into discrete records.
//
// Exactly one strategy is attached to a connection at a time. A strategy is
// fed raw bytes as they arrive on the transport and emits each completed
// record through the Emit callback it was constructed with. Strategies do not
// touch the transport; they only frame what they are given.
package parser

import (
	"fmt"
	"time"
)

// Type selects a framing strategy.
type Type int

const (
	// Line splits the stream on a configurable delimiter and yields text
	// records without the delimiter. This is the default.
	Line Type = iota
	// InterByte yields a record whenever no new bytes arrive for a
	// configurable interval. Used for protocols with no explicit delimiter.
	InterByte
	// ByteLength yields a record every N bytes.
	ByteLength
)

// String returns the canonical name of the framing type.
func (t Type) String() string {
	switch t {
	case Line:
		return "line"
	case InterByte:
		return "interbyte"
	case ByteLength:
		return "bytelength"
	default:
		return fmt.Sprintf("parser.Type(%d)", int(t))
	}
}

// ParseType converts a configuration string into a Type. Both the long and
// the short spellings are accepted.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "line":
		return Line, nil
	case "interbyte", "idle-timeout":
		return InterByte, nil
	case "bytelength", "fixed-length":
		return ByteLength, nil
	default:
		return Line, fmt.Errorf("unknown parser type %q", s)
	}
}

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultDelimiter = "\n"
	DefaultInterval  = 30 * time.Millisecond
	DefaultLength    = 1
)

// Config describes which framing strategy to build and its parameters.
// Zero values fall back to the documented defaults, so the zero Config is a
// newline-delimited line framing.
type Config struct {
	// Type selects the strategy.
	Type Type
	// Delimiter is the record separator for Line framing. Default "\n".
	Delimiter string
	// Interval is the idle gap that closes a record for InterByte framing.
	// Default 30ms.
	Interval time.Duration
	// Length is the record size for ByteLength framing. Default 1.
	Length int
}

// Validate reports whether the descriptor can build a strategy.
func (c Config) Validate() error {
	switch c.Type {
	case Line:
		return nil
	case InterByte:
		if c.Interval < 0 {
			return fmt.Errorf("parser: interval must be positive, got %s", c.Interval)
		}
		return nil
	case ByteLength:
		if c.Length < 0 {
			return fmt.Errorf("parser: length must be positive, got %d", c.Length)
		}
		return nil
	default:
		return fmt.Errorf("parser: unknown type %d", int(c.Type))
	}
}

// Emit receives one completed record. The slice is owned by the receiver.
type Emit func(record []byte)

// Parser is one attached framing strategy.
//
// Feed is called from the connection's read loop with raw transport bytes.
// Reset drops any buffered partial record and pending timers; it is called
// when the feed is detached so a strategy never emits stale data into a new
// connection cycle.
type Parser interface {
	Feed(data []byte)
	Reset()
}

// New builds the single framing strategy described by cfg. Records are
// delivered through emit.
func New(cfg Config, emit Emit) (Parser, error) {
	if emit == nil {
		return nil, fmt.Errorf("parser: emit callback is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case Line:
		delim := cfg.Delimiter
		if delim == "" {
			delim = DefaultDelimiter
		}
		return newLine(delim, emit), nil

	case InterByte:
		interval := cfg.Interval
		if interval == 0 {
			interval = DefaultInterval
		}
		return newInterByte(interval, emit), nil

	case ByteLength:
		length := cfg.Length
		if length == 0 {
			length = DefaultLength
		}
		return newByteLength(length, emit), nil

	default:
		return nil, fmt.Errorf("parser: unknown type %d", int(cfg.Type))
	}
}
