// Package api exposes the bridge queues and receiver controls over HTTP for
// presentation layers that poll.
package api

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roman-kulish/radio-receiver/internal/audio"
	"github.com/roman-kulish/radio-receiver/internal/bridge"
	"github.com/roman-kulish/radio-receiver/internal/scanner"
)

const shutdownTimeout = 5 * time.Second

// Runner reports whether a reception is in progress
type Runner interface {
	Running() bool
}

// ChannelSource is the scanner as seen by the API
type ChannelSource interface {
	Running() bool
	Index() int
	Active() []scanner.Channel
}

// Status is the body of GET /v1/status
type Status struct {
	Receiving     bool    `json:"receiving"`
	Scanning      bool    `json:"scanning"`
	ScanIndex     int     `json:"scanIndex,omitempty"`
	Quality       float64 `json:"quality"`
	DroppedFrames uint64  `json:"droppedFrames"`
	DroppedEvents uint64  `json:"droppedEvents"`
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "api"))
	}
}

// WithReceiver reports the reception state in /v1/status
func WithReceiver(r Runner) func(s *Server) {
	return func(s *Server) {
		s.receiver = r
	}
}

// WithScanner serves the scanner results
func WithScanner(c ChannelSource) func(s *Server) {
	return func(s *Server) {
		s.scanner = c
	}
}

// WithGate lets clients read and update the noise gate
func WithGate(g *audio.GateConfig) func(s *Server) {
	return func(s *Server) {
		s.gate = g
	}
}

// Server serves the HTTP poll API.
type Server struct {
	bridge   *bridge.Bridge
	receiver Runner
	scanner  ChannelSource
	gate     *audio.GateConfig

	engine *gin.Engine
	logger *slog.Logger
}

// New creates a new Server reading from b
func New(b *bridge.Bridge, options ...func(s *Server)) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := Server{
		bridge: b,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())

	v1 := s.engine.Group("/v1")
	v1.GET("/status", s.status)
	v1.GET("/events", s.events)
	v1.GET("/frame", s.frame)
	v1.GET("/scan/channels", s.channels)
	v1.GET("/gate", s.getGate)
	v1.PUT("/gate", s.putGate)

	return &s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving api: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down api: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) status(c *gin.Context) {
	frames, events := s.bridge.Dropped()

	st := Status{
		Quality:       s.bridge.Quality(),
		DroppedFrames: frames,
		DroppedEvents: events,
	}
	if s.receiver != nil {
		st.Receiving = s.receiver.Running()
	}
	if s.scanner != nil && s.scanner.Running() {
		st.Scanning = true
		st.ScanIndex = s.scanner.Index()
	}

	c.JSON(http.StatusOK, st)
}

func (s *Server) events(c *gin.Context) {
	events := s.bridge.DrainEvents()
	if events == nil {
		events = []bridge.Event{}
	}
	c.JSON(http.StatusOK, events)
}

// frame writes the latest frame as PNG, or 204 when nothing was decoded yet
func (s *Server) frame(c *gin.Context) {
	f := s.bridge.LatestFrame()
	if f == nil || f.Image == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("Content-Type", "image/png")
	c.Header("X-Frame-Quality", fmt.Sprintf("%.1f", f.Quality))
	c.Status(http.StatusOK)

	if err := png.Encode(c.Writer, f.Image); err != nil {
		s.logger.Error(fmt.Sprintf("encoding frame: %s", err))
	}
}

func (s *Server) channels(c *gin.Context) {
	if s.scanner == nil {
		c.JSON(http.StatusOK, []scanner.Channel{})
		return
	}

	active := s.scanner.Active()
	if active == nil {
		active = []scanner.Channel{}
	}
	c.JSON(http.StatusOK, active)
}

func (s *Server) getGate(c *gin.Context) {
	if s.gate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "noise gate not configured"})
		return
	}
	c.JSON(http.StatusOK, s.gate.Settings())
}

func (s *Server) putGate(c *gin.Context) {
	if s.gate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "noise gate not configured"})
		return
	}

	settings := s.gate.Settings()
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.gate.Update(settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("noise gate updated",
		slog.Float64("threshold", settings.Threshold),
		slog.Bool("enabled", settings.Enabled),
	)
	c.JSON(http.StatusOK, s.gate.Settings())
}
