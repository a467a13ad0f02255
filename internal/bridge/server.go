// internal/bridge/server.go

// Package bridge serves a web console over one serial connection: REST
// endpoints for port control, a WebSocket stream of records and lifecycle
// events, and Prometheus metrics.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	serialhelper "github.com/rusminto/serial.helper"
	"github.com/rusminto/serial.helper/internal/conf"
)

// apiResponse is the envelope for every REST reply.
type apiResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type sendRequest struct {
	Data    string `json:"data" binding:"required"`
	Newline bool   `json:"newline"`
}

type requestRequest struct {
	Data      string `json:"data" binding:"required"`
	TimeoutMS int    `json:"timeout_ms"`
}

// Server wires one serial connection to HTTP: routes, console hub, and
// metrics.
type Server struct {
	settings conf.BridgeSettings
	logger   *zap.Logger
	conn     *serialhelper.Conn
	hub      *Hub
	metrics  *Metrics
	http     *http.Server
	subs     []serialhelper.Subscription
}

// NewServer assembles the bridge over an already-configured connection.
func NewServer(settings conf.BridgeSettings, conn *serialhelper.Conn, logger *zap.Logger) *Server {
	hub := NewHub(conn, logger)
	s := &Server{
		settings: settings,
		logger:   logger.With(zap.String("component", "bridge")),
		conn:     conn,
		hub:      hub,
		metrics:  NewMetrics(conn, hub),
	}
	s.subscribe()

	s.http = &http.Server{
		Addr:         settings.Listen,
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("bridge listening", zap.String("addr", s.settings.Listen))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve bridge: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server, drops console clients, and detaches from
// the connection.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, sub := range s.subs {
		s.conn.Unsubscribe(sub)
	}
	s.hub.Close()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down bridge: %w", err)
	}
	return nil
}

// subscribe fans connection events into the hub and the counters.
func (s *Server) subscribe() {
	s.subs = append(s.subs,
		s.conn.OnData(func(rec serialhelper.Record) {
			s.metrics.Records.Inc()
			s.hub.Broadcast(Event{Type: "data", Data: rec.Payload(), Timestamp: time.Now()})
		}),
		s.conn.OnOpened(func(msg string) {
			s.metrics.Opens.Inc()
			s.hub.Broadcast(Event{Type: "opened", Data: msg, Timestamp: time.Now()})
		}),
		s.conn.OnClosed(func(msg string) {
			s.metrics.Closes.Inc()
			s.hub.Broadcast(Event{Type: "closed", Data: msg, Timestamp: time.Now()})
		}),
		s.conn.OnError(func(err error) {
			s.metrics.Errors.Inc()
			s.hub.Broadcast(Event{Type: "error", Data: err.Error(), Timestamp: time.Now()})
		}),
	)
}

// router builds the gin engine with middleware and routes.
func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(s.requestLogger())
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"),
		)
		s.respondError(c, http.StatusInternalServerError, "internal server error")
	}))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     s.settings.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/health", s.handleHealth)
	engine.GET("/ws", s.hub.HandleConnection)
	engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/ports", s.handlePorts)
		v1.GET("/status", s.handleStatus)
		v1.POST("/send", s.handleSend)
		v1.POST("/request", s.handleRequest)
	}
	return engine
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	s.respondOK(c, "ok", gin.H{"state": s.conn.State().String()})
}

func (s *Server) handlePorts(c *gin.Context) {
	ports, err := serialhelper.List()
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(c, "", ports)
}

func (s *Server) handleStatus(c *gin.Context) {
	s.respondOK(c, "", gin.H{
		"state":          s.conn.State().String(),
		"port":           s.conn.Port(),
		"baud":           s.conn.Baud(),
		"bytes_sent":     s.conn.BytesSent(),
		"bytes_received": s.conn.BytesReceived(),
		"clients":        s.hub.Count(),
	})
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if req.Newline {
		err = s.conn.Println(req.Data)
	} else {
		err = s.conn.Write(req.Data)
	}
	if err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondOK(c, "sent", nil)
}

func (s *Server) handleRequest(c *gin.Context) {
	var req requestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.conn.Request(c.Request.Context(), req.Data, time.Duration(req.TimeoutMS)*time.Millisecond)
	switch {
	case errors.Is(err, serialhelper.ErrRequestPending):
		s.respondError(c, http.StatusConflict, err.Error())
	case err != nil:
		s.respondError(c, http.StatusServiceUnavailable, err.Error())
	case rec == nil:
		s.respondOK(c, "timeout", nil)
	default:
		s.respondOK(c, "", rec.Payload())
	}
}

func (s *Server) respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, apiResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func (s *Server) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, apiResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now(),
	})
}
