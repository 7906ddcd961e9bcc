package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/cbind/internal/config"
	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/mapping"
	"github.com/roach88/cbind/internal/resolver"
	"github.com/roach88/cbind/internal/session"
)

// Service errors.
var (
	ErrNoConfig      = errors.New("no configuration set")
	ErrUnknownHandle = errors.New("unknown session handle")
	ErrQuit          = errors.New("service quit")
)

// Service is the driver-facing surface over sessions. It holds the global
// configuration and logger handed to every session it creates, and the open
// sessions by handle.
type Service struct {
	handles session.HandleGenerator
	clock   func() *session.Clock

	mu       sync.Mutex
	logger   *slog.Logger
	sink     session.Sink
	cfg      *config.Config
	sessions map[string]*session.Session
	quit     chan struct{}
	quitOnce sync.Once

	registry *prometheus.Registry
	metrics  *metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used until SetLogger installs a sink.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithHandles sets the generator for session handles.
func WithHandles(g session.HandleGenerator) Option {
	return func(s *Service) { s.handles = g }
}

// WithClock sets the logical clock factory for new sessions.
func WithClock(f func() *session.Clock) Option {
	return func(s *Service) { s.clock = f }
}

// New creates a service with no configuration and no sessions.
func New(opts ...Option) *Service {
	s := &Service{
		handles:  session.UUIDv7Generator{},
		clock:    session.NewClock,
		logger:   slog.Default(),
		sessions: make(map[string]*session.Session),
		quit:     make(chan struct{}),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics = newMetrics(s.registry, func() float64 {
		s.mu.Lock()
		defer s.mu.Unlock()
		return float64(len(s.sessions))
	})
	return s
}

// Ping answers a liveness check.
func (s *Service) Ping(text string) string {
	return "cbind ping " + text
}

// SetLogger routes the diagnostics of sessions created from now on to sink.
// Debug records are forwarded when the configuration a session is created
// with enables debug.
func (s *Service) SetLogger(sink session.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Logger returns the logger handed to new sessions.
func (s *Service) Logger() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggerLocked()
}

func (s *Service) loggerLocked() *slog.Logger {
	if s.sink == nil {
		return s.logger
	}
	return session.NewSinkLogger(s.sink, s.cfg != nil && s.cfg.Debug)
}

// SetConfig validates cfg and makes it the configuration of sessions
// created from now on.
func (s *Service) SetConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return &session.Error{Code: session.CodeConfig, Op: "set_config", Err: fmt.Errorf("%w: %w", session.ErrInvalidConfig, err)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &cfg
	return nil
}

// GetConfig returns the configuration, or ErrNoConfig before SetConfig.
func (s *Service) GetConfig() (config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return config.Config{}, &session.Error{Code: session.CodeConfig, Op: "get_config", Err: ErrNoConfig}
	}
	return *s.cfg, nil
}

// Index creates a configured session, indexes the headers and returns the
// session handle. A session whose indexing fails is closed.
func (s *Service) Index(ctx context.Context, req session.IndexRequest) (string, error) {
	s.mu.Lock()
	if s.cfg == nil {
		s.mu.Unlock()
		return "", &session.Error{Code: session.CodeConfig, Op: "index", Err: ErrNoConfig}
	}
	select {
	case <-s.quit:
		s.mu.Unlock()
		return "", &session.Error{Code: session.CodeTransport, Op: "index", Err: ErrQuit}
	default:
	}
	sess := session.New(
		session.WithConfig(*s.cfg),
		session.WithHandles(s.handles),
		session.WithLogger(s.loggerLocked()),
		session.WithClock(s.clock()))
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	s.metrics.created.Inc()

	if err := sess.Index(ctx, req); err != nil {
		s.drop(sess.ID())
		_ = sess.Close()
		return "", err
	}
	return sess.ID(), nil
}

// Session returns the open session for handle.
func (s *Service) Session(handle string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[handle]
	if !ok {
		return nil, &session.Error{Code: session.CodeInvalidTransition, Session: handle, Op: "lookup", Err: ErrUnknownHandle}
	}
	return sess, nil
}

// Handles returns the handles of the open sessions, sorted.
func (s *Service) Handles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.sessions))
}

// FilterAndResolve selects and resolves the roots of the session at handle.
func (s *Service) FilterAndResolve(ctx context.Context, handle string, pred filter.Predicate) (*resolver.Result, error) {
	sess, err := s.Session(handle)
	if err != nil {
		return nil, err
	}
	return sess.FilterAndResolve(ctx, pred)
}

// AddMapping registers mappers on the session at handle, in order. It stops
// at the first mapper the session rejects.
func (s *Service) AddMapping(ctx context.Context, handle string, mappers ...mapping.Mapper) error {
	sess, err := s.Session(handle)
	if err != nil {
		return err
	}
	for _, m := range mappers {
		if err := sess.AddMapping(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// WriteTo applies the mappings of the session at handle and writes its
// output to dir.
func (s *Service) WriteTo(ctx context.Context, handle, dir string) (*session.WriteResult, error) {
	sess, err := s.Session(handle)
	if err != nil {
		return nil, err
	}
	return sess.WriteTo(ctx, dir)
}

// CloseSession closes the session at handle and forgets it.
func (s *Service) CloseSession(handle string) error {
	sess, err := s.Session(handle)
	if err != nil {
		return err
	}
	s.drop(handle)
	return sess.Close()
}

func (s *Service) drop(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, handle)
}

// Quit asks the driver loop to stop. Sessions stay open until Shutdown.
func (s *Service) Quit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Done is closed once Quit has been called.
func (s *Service) Done() <-chan struct{} {
	return s.quit
}

// Shutdown aborts every open session with cause and closes it. Aborted
// sessions write nothing.
func (s *Service) Shutdown(ctx context.Context, cause error) {
	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]*session.Session)
	s.mu.Unlock()

	for _, handle := range slices.Sorted(maps.Keys(open)) {
		sess := open[handle]
		if err := sess.Abort(ctx, cause); err != nil {
			s.Logger().Warn("abort failed", "session", handle, "error", err)
		}
		_ = sess.Close()
	}
}

// Gatherers returns the service registry followed by the registry of every
// open session.
func (s *Service) Gatherers() prometheus.Gatherers {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := prometheus.Gatherers{s.registry}
	for _, handle := range slices.Sorted(maps.Keys(s.sessions)) {
		g = append(g, s.sessions[handle].Metrics().Registry())
	}
	return g
}
