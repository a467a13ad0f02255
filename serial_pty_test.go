// serial_pty_test.go
package serialhelper

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run the default serial opener against a pty pair, so the
// whole stack from transport to notification is exercised without hardware.

func openPTYConn(t *testing.T) (*Conn, *bufio.Reader, interface{ Write([]byte) (int, error) }) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	c, err := New(Config{
		Port:       slave.Name(),
		Baud:       115200,
		NoAutoOpen: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Disconnect() })

	require.NoError(t, c.Connect(context.Background()))
	return c, bufio.NewReader(master), master
}

func TestConn_PTYRoundTrip(t *testing.T) {
	c, fromConn, toConn := openPTYConn(t)

	records := make(chan Record, 4)
	c.OnData(func(rec Record) { records <- rec })

	// device to host
	_, err := toConn.Write([]byte("ping\n"))
	require.NoError(t, err)

	select {
	case rec := <-records:
		assert.Equal(t, "ping", rec.Text)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for record over pty")
	}

	// host to device
	require.NoError(t, c.Println("pong"))
	line, err := fromConn.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "pong\n", line)
}

func TestConn_PTYRequest(t *testing.T) {
	c, fromConn, toConn := openPTYConn(t)

	// the device side answers one known command
	go func() {
		line, err := fromConn.ReadString('\n')
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "version?" {
			toConn.Write([]byte("{\"version\":\"2.1\"}\n"))
		}
	}()

	rec, err := c.Request(context.Background(), "version?\n", time.Second)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Decoded)
	assert.Equal(t, map[string]any{"version": "2.1"}, rec.Value)
}
