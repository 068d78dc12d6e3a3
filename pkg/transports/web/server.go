// Package web serves the browser client: a small JSON API and the interview
// websocket.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/harunnryd/mockview/pkg/archive"
	"github.com/harunnryd/mockview/pkg/jobdesc"
	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/report"
)

type Config struct {
	Addr           string
	AllowedOrigins []string
	// StaticDir, when set, is served at the site root.
	StaticDir string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	return c
}

// Info is returned by GET /api/config.
type Info struct {
	MaxQuestions int    `json:"max_questions"`
	STTProvider  string `json:"stt_provider"`
	TTSProvider  string `json:"tts_provider"`
}

// ReportLoader reads archived reports.
type ReportLoader interface {
	Load(ctx context.Context, id string) (report.Report, error)
}

type Server struct {
	cfg      Config
	echo     *echo.Echo
	upgrader websocket.Upgrader
	factory  SessionFactory
	reports  ReportLoader
	info     Info
	log      *slog.Logger

	mu       sync.Mutex
	clients  map[string]*Client
	handlers sync.WaitGroup
	draining atomic.Bool
	addr     net.Addr
}

func NewServer(cfg Config, info Info, factory SessionFactory, reports ReportLoader, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		factory: factory,
		reports: reports,
		info:    info,
		log:     logging.NewComponentLogger(logger, "web"),
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("http_request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins}))
	}
	e.GET("/healthz", s.health)
	e.GET("/api/config", s.config)
	e.POST("/api/roles/extract", s.extractRole)
	e.GET("/api/reports/:id", s.getReport)
	e.GET("/ws", s.websocket)
	if cfg.StaticDir != "" {
		e.Static("/", cfg.StaticDir)
	}
	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.echo.Listener = ln
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("web_server_error", slog.String("error", err.Error()))
		}
	}()
	s.log.Info("web_server_started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Drain refuses new sessions, disconnects live clients and waits for their
// handlers to finish, then stops the HTTP server.
func (s *Server) Drain() error {
	s.draining.Store(true)
	s.mu.Lock()
	for _, c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()
	s.handlers.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// ActiveSessions is the number of connected clients.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) health(c echo.Context) error {
	if s.draining.Load() {
		return c.String(http.StatusServiceUnavailable, "draining")
	}
	return c.String(http.StatusOK, "ok")
}

func (s *Server) config(c echo.Context) error {
	return c.JSON(http.StatusOK, s.info)
}

func (s *Server) extractRole(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	if fh.Size > jobdesc.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer f.Close()
	data, err := jobdesc.ReadLimited(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	}
	mime := jobdesc.DetectMIME(fh.Header.Get(echo.HeaderContentType), fh.Filename, data)
	role, err := jobdesc.Extract(mime, data)
	switch {
	case errors.Is(err, jobdesc.ErrUnsupportedType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case err != nil:
		s.log.Warn("role_extract_failed", slog.String("mime", mime), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not read the job description")
	}
	return c.JSON(http.StatusOK, map[string]string{"role": role})
}

func (s *Server) getReport(c echo.Context) error {
	if s.reports == nil {
		return echo.NewHTTPError(http.StatusNotFound, "report archive is disabled")
	}
	r, err := s.reports.Load(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, archive.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	case errors.Is(err, archive.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load report")
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) websocket(c echo.Context) error {
	if s.draining.Load() {
		return c.String(http.StatusServiceUnavailable, "draining")
	}
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	client := newClient(uuid.NewString(), conn, s.log)

	s.handlers.Add(1)
	defer s.handlers.Done()
	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.id)
		s.mu.Unlock()
		client.Close()
	}()

	// The request context ends with the hijacked connection's handler; the
	// session lives until the client goes away.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	defer cancel()
	go func() {
		<-client.Done()
		cancel()
	}()

	go client.writeLoop()
	handler, err := s.factory(ctx, client)
	if err != nil {
		s.log.Error("session_create_failed", slog.String("error", err.Error()))
		_ = client.Send(ErrorMessage("could not start a session"))
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	client.readLoop(ctx, handler)
	client.Close()
	handler.Close()
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return true
	}
	originHost := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	for _, allowed := range s.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		switch {
		case a == "":
			continue
		case a == "*":
			return true
		case strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://"):
			if strings.EqualFold(a, origin) {
				return true
			}
		case strings.EqualFold(a, originHost):
			return true
		}
	}
	return false
}
