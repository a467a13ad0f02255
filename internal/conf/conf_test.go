// internal/conf/conf_test.go
package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rusminto/serial.helper/parser"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serialhelper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.True(t, cfg.Serial.AutoReconnect)
	assert.Equal(t, 3*time.Second, cfg.Serial.ReconnectInterval)
	assert.True(t, cfg.Serial.AutoOpen)
	assert.Equal(t, "line", cfg.Serial.Parser.Type)
	assert.Equal(t, "\n", cfg.Serial.Parser.Delimiter)
	assert.Equal(t, 30*time.Millisecond, cfg.Serial.Parser.Interval)
	assert.Equal(t, time.Second, cfg.Serial.RequestTimeout)
	assert.Equal(t, ":8084", cfg.Bridge.Listen)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, 1, cfg.MQTT.QoS)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyACM0
  baud: 9600
  autoreconnect: false
  reconnect_interval: 500ms
  parser:
    type: interbyte
    interval: 75ms
bridge:
  listen: ":9000"
mqtt:
  broker: tcp://broker.local:1883
  qos: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.False(t, cfg.Serial.AutoReconnect)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.ReconnectInterval)
	assert.Equal(t, "interbyte", cfg.Serial.Parser.Type)
	assert.Equal(t, 75*time.Millisecond, cfg.Serial.Parser.Interval)
	assert.Equal(t, ":9000", cfg.Bridge.Listen)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, 2, cfg.MQTT.QoS)

	// untouched sections keep their defaults
	assert.True(t, cfg.Serial.AutoOpen)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"negative baud", "serial:\n  baud: -1\n"},
		{"unknown parser", "serial:\n  parser:\n    type: morse\n"},
		{"unknown debug", "serial:\n  debug: shouty\n"},
		{"bad qos", "mqtt:\n  qos: 3\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestConfig_Connection(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB3
  baud: 57600
  autoreconnect: false
  autoopen: false
  debug: verbose
  soft_reset: true
  parser:
    type: bytelength
    length: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	conn, err := cfg.Connection(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB3", conn.Port)
	assert.Equal(t, 57600, conn.Baud)
	// the positive file keys invert into the library's No* flags
	assert.True(t, conn.NoAutoReconnect)
	assert.True(t, conn.NoAutoOpen)
	assert.True(t, conn.SoftReset)
	assert.Equal(t, parser.ByteLength, conn.Parser.Type)
	assert.Equal(t, 8, conn.Parser.Length)
	assert.NotNil(t, conn.Logger)
}

func TestConfig_ConnectionDefaultsStayOn(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	conn, err := cfg.Connection(zap.NewNop())
	require.NoError(t, err)

	assert.False(t, conn.NoAutoReconnect)
	assert.False(t, conn.NoAutoOpen)
	assert.Equal(t, parser.Line, conn.Parser.Type)
}
