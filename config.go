// config.go
package serialhelper

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rusminto/serial.helper/internal/logutil"
	"github.com/rusminto/serial.helper/parser"
)

// DebugLevel controls the connection's diagnostic output.
type DebugLevel int

const (
	// DebugOff emits nothing unless a Logger is supplied explicitly.
	DebugOff DebugLevel = iota
	// DebugOn logs lifecycle transitions and failures.
	DebugOn
	// DebugVerbose additionally logs every outbound write.
	DebugVerbose
)

// String returns the configuration spelling of the level.
func (d DebugLevel) String() string {
	switch d {
	case DebugOn:
		return "on"
	case DebugVerbose:
		return "verbose"
	default:
		return "off"
	}
}

// ParseDebugLevel converts a configuration string into a DebugLevel.
func ParseDebugLevel(s string) (DebugLevel, error) {
	switch s {
	case "", "off", "false":
		return DebugOff, nil
	case "on", "true":
		return DebugOn, nil
	case "verbose":
		return DebugVerbose, nil
	default:
		return DebugOff, fmt.Errorf("unknown debug level %q", s)
	}
}

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultReconnectInterval = 3 * time.Second
	DefaultRequestTimeout    = time.Second
)

// Config describes one logical connection. It is immutable after New.
//
// The two No* flags are inverted so that the zero value keeps the defaults:
// a zero Config reconnects automatically and opens on construction.
type Config struct {
	// Port is the transport path, e.g. /dev/ttyUSB0.
	Port string
	// Baud is the transport bit rate.
	Baud int

	// NoAutoReconnect disables the automatic reconnect on closure.
	NoAutoReconnect bool
	// ReconnectInterval is the fixed delay between reconnect attempts.
	// Default 3s.
	ReconnectInterval time.Duration
	// NoAutoOpen disables the background connect that New kicks off.
	NoAutoOpen bool

	// Debug selects the diagnostic verbosity.
	Debug DebugLevel
	// Parser describes the framing strategy. The zero value is line
	// framing with a "\n" delimiter.
	Parser parser.Config
	// SoftReset arms the one-shot 1200 baud reset handshake before the
	// first open.
	SoftReset bool
	// RequestTimeout is how long Request waits for a reply when the caller
	// passes no timeout. Default 1s.
	RequestTimeout time.Duration

	// Logger receives diagnostics. When nil one is derived from Debug.
	Logger *zap.Logger
	// Open opens the transport. When nil the real serial opener is used.
	Open OpenFunc
}

// withDefaults fills the zero fields.
func (c Config) withDefaults() Config {
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Open == nil {
		c.Open = openSerial
	}
	if c.Logger == nil {
		if c.Debug == DebugOff {
			c.Logger = zap.NewNop()
		} else {
			c.Logger = logutil.Console(c.Debug == DebugVerbose)
		}
	}
	return c
}

// validate rejects configurations the connection cannot run with.
func (c Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud rate must be positive, got %d", c.Baud)
	}
	if c.ReconnectInterval < 0 {
		return fmt.Errorf("reconnect interval must not be negative, got %s", c.ReconnectInterval)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout)
	}
	if err := c.Parser.Validate(); err != nil {
		return err
	}
	return nil
}
