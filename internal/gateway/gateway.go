// internal/gateway/gateway.go

// Package gateway relays one serial connection over an MQTT broker.
// Records and lifecycle events flow out, writes and request round trips
// flow in. Topics hang off a configurable prefix:
//
//	<prefix>/data      records framed off the port (JSON)
//	<prefix>/status    lifecycle state, retained (JSON)
//	<prefix>/write     raw payloads to write to the port
//	<prefix>/request   request round trips (JSON)
//	<prefix>/reply     replies to request round trips (JSON)
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	serialhelper "github.com/rusminto/serial.helper"
	"github.com/rusminto/serial.helper/internal/conf"
)

const requestCeiling = 30 * time.Second

// dataMessage carries one record to the data topic.
type dataMessage struct {
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// statusMessage carries lifecycle state to the retained status topic.
type statusMessage struct {
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// requestMessage is one inbound request round trip.
type requestMessage struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// replyMessage answers one request on the reply topic.
type replyMessage struct {
	ID        string    `json:"id"`
	Payload   any       `json:"payload,omitempty"`
	Timeout   bool      `json:"timeout,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Gateway bridges one connection and one broker.
type Gateway struct {
	settings conf.MQTTSettings
	logger   *zap.Logger
	conn     *serialhelper.Conn
	client   mqtt.Client
	subs     []serialhelper.Subscription
}

// New builds the gateway without connecting to the broker.
func New(settings conf.MQTTSettings, conn *serialhelper.Conn, logger *zap.Logger) *Gateway {
	g := &Gateway{
		settings: settings,
		logger:   logger.With(zap.String("component", "gateway")),
		conn:     conn,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(settings.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetKeepAlive(settings.KeepAlive).
		SetConnectTimeout(settings.ConnectTimeout).
		SetWill(g.topic("status"), `{"state":"offline"}`, byte(settings.QoS), true).
		SetOnConnectHandler(g.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			g.logger.Warn("broker connection lost", zap.Error(err))
		})
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
	}
	if settings.Password != "" {
		opts.SetPassword(settings.Password)
	}

	g.client = mqtt.NewClient(opts)
	return g
}

// Start connects to the broker and attaches to the connection's events.
func (g *Gateway) Start() error {
	tok := g.client.Connect()
	if !tok.WaitTimeout(g.settings.ConnectTimeout) {
		return fmt.Errorf("broker connect timeout after %s", g.settings.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	g.subs = append(g.subs,
		g.conn.OnData(func(rec serialhelper.Record) {
			g.publish(g.topic("data"), dataMessage{Payload: rec.Payload(), Timestamp: time.Now()}, false)
		}),
		g.conn.OnOpened(func(msg string) {
			g.publishStatus("open", msg)
		}),
		g.conn.OnClosed(func(msg string) {
			g.publishStatus("closed", msg)
		}),
		g.conn.OnError(func(err error) {
			g.publishStatus(g.conn.State().String(), err.Error())
		}),
	)
	g.logger.Info("gateway started",
		zap.String("broker", g.settings.Broker),
		zap.String("prefix", g.settings.TopicPrefix),
	)
	return nil
}

// Shutdown detaches from the connection and leaves a retained offline
// status behind.
func (g *Gateway) Shutdown() {
	for _, sub := range g.subs {
		g.conn.Unsubscribe(sub)
	}
	g.publishStatus("offline", "")
	g.client.Disconnect(250)
}

// onConnect runs on every (re)connect: command subscriptions do not
// survive a clean-session reconnect, so they are installed here.
func (g *Gateway) onConnect(client mqtt.Client) {
	qos := byte(g.settings.QoS)

	tok := client.Subscribe(g.topic("write"), qos, func(_ mqtt.Client, m mqtt.Message) {
		if err := g.conn.Write(m.Payload()); err != nil {
			g.logger.Error("failed to write inbound payload", zap.Error(err))
		}
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		g.logger.Error("failed to subscribe to write topic", zap.Error(err))
	}

	tok = client.Subscribe(g.topic("request"), qos, func(_ mqtt.Client, m mqtt.Message) {
		var req requestMessage
		if err := json.Unmarshal(m.Payload(), &req); err != nil {
			g.logger.Warn("malformed request message", zap.Error(err))
			return
		}
		go g.handleRequest(req)
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		g.logger.Error("failed to subscribe to request topic", zap.Error(err))
	}

	g.publishStatus(g.conn.State().String(), "")
	g.logger.Info("broker connected", zap.String("broker", g.settings.Broker))
}

// handleRequest runs one round trip and publishes the reply.
func (g *Gateway) handleRequest(req requestMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestCeiling)
	defer cancel()

	rec, err := g.conn.Request(ctx, req.Data, time.Duration(req.TimeoutMS)*time.Millisecond)
	reply := replyMessage{ID: req.ID, Timestamp: time.Now()}
	switch {
	case err != nil:
		reply.Error = err.Error()
	case rec == nil:
		reply.Timeout = true
	default:
		reply.Payload = rec.Payload()
	}
	g.publish(g.topic("reply"), reply, false)
}

func (g *Gateway) publishStatus(state, message string) {
	g.publish(g.topic("status"), statusMessage{
		State:     state,
		Message:   message,
		Timestamp: time.Now(),
	}, true)
}

// publish never blocks the caller on the broker ack; data handlers run on
// the connection's read loop and must not stall it.
func (g *Gateway) publish(topic string, v any, retained bool) {
	body, err := json.Marshal(v)
	if err != nil {
		g.logger.Error("failed to marshal message", zap.Error(err))
		return
	}
	tok := g.client.Publish(topic, byte(g.settings.QoS), retained, body)
	go func() {
		tok.Wait()
		if err := tok.Error(); err != nil {
			g.logger.Error("failed to publish",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}()
}

func (g *Gateway) topic(suffix string) string {
	return g.settings.TopicPrefix + "/" + suffix
}
