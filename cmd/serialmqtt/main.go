// cmd/serialmqtt/main.go

// serialmqtt relays one serial connection over an MQTT broker: records
// and lifecycle status out, writes and request round trips in.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	serialhelper "github.com/rusminto/serial.helper"
	"github.com/rusminto/serial.helper/internal/conf"
	"github.com/rusminto/serial.helper/internal/gateway"
	"github.com/rusminto/serial.helper/internal/logutil"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "serialmqtt: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := conf.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logutil.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	connCfg, err := cfg.Connection(logger)
	if err != nil {
		return fmt.Errorf("failed to build connection config: %w", err)
	}
	conn, err := serialhelper.New(connCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	gw := gateway.New(cfg.MQTT, conn, logger)
	if err := gw.Start(); err != nil {
		return err
	}

	logger.Info("serialmqtt running",
		zap.String("port", cfg.Serial.Port),
		zap.Int("baud", cfg.Serial.Baud),
		zap.String("broker", cfg.MQTT.Broker),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	gw.Shutdown()
	if err := conn.Disconnect(); err != nil {
		logger.Error("disconnect error", zap.Error(err))
	}
	logger.Info("serialmqtt stopped")
	return nil
}
