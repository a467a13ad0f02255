// doc.go

// Package serialhelper maintains a resilient logical connection over a
// serial line: it reopens the port on failure, frames the inbound byte
// stream into records, decodes line records opportunistically as JSON and
// correlates one outstanding request with its reply.
//
// A connection is built from a Config and starts connecting immediately
// unless told not to:
//
//	conn, err := serialhelper.New(serialhelper.Config{
//		Port: "/dev/ttyUSB0",
//		Baud: 115200,
//	})
//
// Inbound records and lifecycle transitions fan out to subscribers:
//
//	conn.OnData(func(rec serialhelper.Record) {
//		fmt.Println(rec.Payload())
//	})
//	conn.OnClosed(func(msg string) { fmt.Println(msg) })
//
// Write, Print and Println push payloads out; Request performs one
// send-and-await-reply round trip:
//
//	rec, err := conn.Request(ctx, "STATUS\n", 0)
//
// When the port closes without a Disconnect, the connection schedules a new
// attempt at a fixed interval until the device comes back. Framing is
// pluggable between delimiter-split lines, idle-gap chunks and fixed-length
// chunks; see the parser subpackage.
package serialhelper
