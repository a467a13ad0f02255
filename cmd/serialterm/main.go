// cmd/serialterm/main.go

// serialterm is an interactive terminal for one serial port. Lines typed
// on stdin are written to the port, records framed off the port are
// printed to stdout, lifecycle notices go to stderr.
//
// With -list it prints the available ports and exits. With -request it
// performs a single request round trip and exits.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	serialhelper "github.com/rusminto/serial.helper"
	"github.com/rusminto/serial.helper/parser"
)

func main() {
	var (
		list        = flag.Bool("list", false, "list available ports and exit")
		port        = flag.String("port", "", "serial port path, e.g. /dev/ttyUSB0")
		baud        = flag.Int("baud", 115200, "baud rate")
		parserName  = flag.String("parser", "line", "framing: line, interbyte or bytelength")
		delimiter   = flag.String("delimiter", `\n`, "record delimiter for the line parser")
		interval    = flag.Duration("interval", parser.DefaultInterval, "idle window for the interbyte parser")
		length      = flag.Int("length", parser.DefaultLength, "record size for the bytelength parser")
		softReset   = flag.Bool("soft-reset", false, "pulse 1200 baud before opening")
		noReconnect = flag.Bool("no-reconnect", false, "do not reopen the port after a connection loss")
		request     = flag.String("request", "", "send one request, print the reply and exit")
		timeout     = flag.Duration("timeout", serialhelper.DefaultRequestTimeout, "request timeout")
		verbose     = flag.Bool("verbose", false, "log every write and record")
	)
	flag.Parse()

	if *list {
		if err := listPorts(); err != nil {
			fatal(err)
		}
		return
	}
	if *port == "" {
		flag.Usage()
		os.Exit(2)
	}

	parserType, err := parser.ParseType(*parserName)
	if err != nil {
		fatal(err)
	}

	debug := serialhelper.DebugOff
	if *verbose {
		debug = serialhelper.DebugVerbose
	}

	conn, err := serialhelper.New(serialhelper.Config{
		Port:            *port,
		Baud:            *baud,
		NoAutoReconnect: *noReconnect,
		NoAutoOpen:      true,
		Debug:           debug,
		Parser: parser.Config{
			Type:      parserType,
			Delimiter: unescape(*delimiter),
			Interval:  *interval,
			Length:    *length,
		},
		SoftReset:      *softReset,
		RequestTimeout: *timeout,
	})
	if err != nil {
		fatal(err)
	}

	conn.OnOpened(func(msg string) { fmt.Fprintln(os.Stderr, "#", msg) })
	conn.OnClosed(func(msg string) { fmt.Fprintln(os.Stderr, "#", msg) })
	conn.OnError(func(err error) { fmt.Fprintln(os.Stderr, "# error:", err) })
	conn.OnData(func(rec serialhelper.Record) { fmt.Println(formatRecord(rec)) })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.Connect(ctx); err != nil {
		fatal(err)
	}
	defer conn.Disconnect()

	if *request != "" {
		runRequest(ctx, conn, *request, *timeout)
		return
	}

	go readStdin(conn)
	<-ctx.Done()
	fmt.Fprintln(os.Stderr)
}

// runRequest performs one round trip and reports the outcome.
func runRequest(ctx context.Context, conn *serialhelper.Conn, payload string, timeout time.Duration) {
	rec, err := conn.Request(ctx, payload, timeout)
	switch {
	case err != nil:
		fatal(err)
	case rec == nil:
		fmt.Fprintln(os.Stderr, "# no reply within", timeout)
		os.Exit(1)
	default:
		fmt.Println(formatRecord(*rec))
	}
}

// readStdin forwards typed lines to the port until EOF.
func readStdin(conn *serialhelper.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := conn.Println(scanner.Text()); err != nil {
			fmt.Fprintln(os.Stderr, "# write failed:", err)
		}
	}
}

// listPorts prints one line per enumerated port.
func listPorts() error {
	ports, err := serialhelper.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		line := p.Path
		if p.IsUSB {
			line += fmt.Sprintf("  [%s:%s]", p.VID, p.PID)
			if p.Product != "" {
				line += " " + p.Product
			}
			if p.SerialNumber != "" {
				line += " sn=" + p.SerialNumber
			}
		}
		fmt.Println(line)
	}
	return nil
}

// formatRecord renders a record for the terminal: hex for binary frames,
// compact JSON for decoded values, the text otherwise.
func formatRecord(rec serialhelper.Record) string {
	if rec.Binary {
		return fmt.Sprintf("% X", rec.Raw)
	}
	if rec.Decoded {
		if b, err := json.Marshal(rec.Value); err == nil {
			return string(b)
		}
	}
	return rec.Text
}

// unescape turns the usual backslash escapes in a flag value into their
// byte equivalents.
func unescape(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t", `\0`, "\x00")
	return r.Replace(s)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "serialterm: %v\n", err)
	os.Exit(1)
}
