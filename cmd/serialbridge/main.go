// cmd/serialbridge/main.go

// serialbridge exposes one serial connection as a web console: REST
// endpoints, a WebSocket event stream, and Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	serialhelper "github.com/rusminto/serial.helper"
	"github.com/rusminto/serial.helper/internal/bridge"
	"github.com/rusminto/serial.helper/internal/conf"
	"github.com/rusminto/serial.helper/internal/logutil"
)

// Application ties the configuration, the connection, and the bridge
// server together.
type Application struct {
	cfg    *conf.Config
	logger *zap.Logger
	conn   *serialhelper.Conn
	server *bridge.Server
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	app, err := newApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serialbridge: %v\n", err)
		os.Exit(1)
	}

	if err := app.run(); err != nil {
		app.logger.Fatal("bridge failed", zap.Error(err))
	}
}

// newApplication loads configuration and assembles the components.
func newApplication(configPath string) (*Application, error) {
	cfg, err := conf.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logutil.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	connCfg, err := cfg.Connection(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection config: %w", err)
	}
	conn, err := serialhelper.New(connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	return &Application{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		server: bridge.NewServer(cfg.Bridge, conn, logger),
	}, nil
}

// run serves until a shutdown signal arrives.
func (app *Application) run() error {
	app.logger.Info("serialbridge starting",
		zap.String("port", app.cfg.Serial.Port),
		zap.Int("baud", app.cfg.Serial.Baud),
		zap.String("listen", app.cfg.Bridge.Listen),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-quit:
		app.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	app.shutdown()
	return nil
}

// shutdown stops the server, closes the port, and flushes the logger.
func (app *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Bridge.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("bridge shutdown error", zap.Error(err))
	}

	if err := app.conn.Disconnect(); err != nil {
		app.logger.Error("disconnect error", zap.Error(err))
	}

	app.logger.Info("serialbridge stopped")
	_ = app.logger.Sync()
}
