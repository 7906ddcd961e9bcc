package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/cbind/internal/config"
	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/mapping"
	"github.com/roach88/cbind/internal/parse"
	"github.com/roach88/cbind/internal/resolver"
	"github.com/roach88/cbind/internal/store"
	"github.com/roach88/cbind/internal/typemodel"
)

// Session preconditions.
var (
	ErrNotConfigured   = errors.New("session is not configured")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrNoHeaders       = errors.New("no headers matched")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrTransportClosed = errors.New("transport closed")
)

// IndexRequest names the inputs of Index.
type IndexRequest struct {
	// Headers are header paths or doublestar globs.
	Headers   []string `json:"headers"`
	Libraries []string `json:"libraries,omitempty"`

	// HeaderDirs default to the distinct directories of Headers.
	HeaderDirs []string `json:"header_dirs,omitempty"`
}

// WriteResult describes what WriteTo produced.
type WriteResult struct {
	Dir      string          `json:"dir"`
	Files    []string        `json:"files"`
	Snapshot store.Snapshot  `json:"snapshot"`
	Mapping  *mapping.Result `json:"-"`
}

// Session is one single-pass binding run over one tree. Calls are
// serialized through a worker goroutine, so a Session may be shared between
// goroutines; callers still await each call before issuing a dependent one.
//
// A Session must be closed to stop its worker.
type Session struct {
	id      string
	logger  *slog.Logger
	clock   *Clock
	metrics *Metrics
	w       *worker

	state atomic.Int32
	cache atomic.Pointer[typemodel.Cache]

	mu    sync.Mutex
	cause error

	// Owned by the worker goroutine.
	cfg     *config.Config
	req     IndexRequest
	headers []string
	forest  []*ir.TranslationUnit
	diags   []parse.Diagnostic
	result  *resolver.Result
	root    ir.Element
	mappers []mapping.Mapper
}

// Option configures a Session.
type Option func(*options)

type options struct {
	handles HandleGenerator
	logger  *slog.Logger
	clock   *Clock
	cfg     *config.Config
}

// WithHandles sets the handle generator. The default is UUIDv7Generator.
func WithHandles(g HandleGenerator) Option {
	return func(o *options) { o.handles = g }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the logical clock. The default starts at 0.
func WithClock(c *Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithConfig starts the session already configured. cfg must be valid.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// New creates a session and starts its worker.
func New(opts ...Option) *Session {
	o := options{handles: UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = NewClock()
	}

	s := &Session{
		id:    o.handles.Generate(),
		clock: o.clock,
		w:     startWorker(),
	}
	s.logger = o.logger.With("session", s.id)
	s.metrics = newMetrics(s.id, s.cacheStats)
	if o.cfg != nil {
		s.cfg = o.cfg
		s.setState(StateConfigured)
	}
	return s
}

// ID returns the session handle.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Metrics returns the session's collectors.
func (s *Session) Metrics() *Metrics { return s.metrics }

// Clock returns the session's logical clock.
func (s *Session) Clock() *Clock { return s.clock }

// Err returns the error that aborted the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *Session) cacheStats() typemodel.CacheStats {
	if c := s.cache.Load(); c != nil {
		return c.Stats()
	}
	return typemodel.CacheStats{}
}

// exec runs fn on the worker as operation op moving the session to to.
// Failures are classified, and fatal ones abort the session after the
// error is logged.
func (s *Session) exec(ctx context.Context, op string, to State, fn func(ctx context.Context) error) error {
	start := time.Now()
	var ferr error
	err := s.w.do(ctx, func() {
		if err := checkTransition(op, s.State(), to); err != nil {
			ferr = &Error{Code: CodeInvalidTransition, Op: op, Session: s.id, Err: err}
			return
		}
		if err := ctx.Err(); err != nil {
			ferr = s.fail(op, err)
			return
		}
		s.clock.Next()
		if ferr = fn(ctx); ferr != nil {
			ferr = s.fail(op, ferr)
			return
		}
		s.setState(to)
	})
	if err != nil {
		se := &Error{Code: codeOf(err), Op: op, Session: s.id, Err: err}
		if !errors.Is(err, ErrSessionClosed) {
			// The caller gave up on a queued or running call. The call sees
			// the same context and stops; the session does not survive it.
			s.w.queue.Enqueue(call{fn: func() { s.abort(se) }, done: make(chan struct{})})
		}
		s.metrics.observe(op, start, se)
		return se
	}
	s.metrics.observe(op, start, ferr)
	return ferr
}

// fail wraps err and aborts the session when it is fatal. It runs on the
// worker.
func (s *Session) fail(op string, err error) error {
	se := &Error{Code: codeOf(err), Op: op, Session: s.id, Err: err}
	if !se.Fatal() {
		s.logger.Warn("call rejected", "op", op, "code", se.Code, "error", err)
		return se
	}
	s.abort(se)
	return se
}

// abort logs cause and moves the session to Closed, dropping its tree so
// nothing partial can be written. It runs on the worker.
func (s *Session) abort(cause error) {
	if s.State() == StateClosed {
		return
	}
	s.logger.Error("session aborted", "state", s.State().String(), "error", cause)
	s.mu.Lock()
	s.cause = cause
	s.mu.Unlock()
	s.forest, s.root, s.result, s.mappers = nil, nil, nil, nil
	s.setState(StateClosed)
}

// Abort fails the session with cause, as when the driver's transport
// closes. Nothing is written afterwards. Aborting a closed session is a
// no-op.
func (s *Session) Abort(ctx context.Context, cause error) error {
	err := s.w.do(ctx, func() {
		s.abort(&Error{Code: codeOf(cause), Op: "abort", Session: s.id, Err: cause})
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// Configure sets the global configuration. It may be called again until
// the session is indexed.
func (s *Session) Configure(ctx context.Context, cfg config.Config) error {
	return s.exec(ctx, "configure", StateConfigured, func(context.Context) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		s.cfg = &cfg
		s.logger.Debug("configured", "module", cfg.Module, "package", cfg.Package)
		return nil
	})
}

// Config returns the configuration. It fails with ErrNotConfigured before
// Configure.
func (s *Session) Config(ctx context.Context) (config.Config, error) {
	var cfg config.Config
	var ferr error
	err := s.w.do(ctx, func() {
		if s.cfg == nil {
			ferr = &Error{Code: CodeConfig, Op: "get_config", Session: s.id, Err: ErrNotConfigured}
			return
		}
		cfg = *s.cfg
	})
	if err != nil {
		return config.Config{}, &Error{Code: codeOf(err), Op: "get_config", Session: s.id, Err: err}
	}
	return cfg, ferr
}

// Index expands and parses the requested headers into the session's raw
// forest. Headers are parsed concurrently; Index returns after all of them
// are joined.
func (s *Session) Index(ctx context.Context, req IndexRequest) error {
	return s.exec(ctx, "index", StateIndexed, func(ctx context.Context) error {
		headers, err := parse.ExpandHeaders(req.Headers)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if len(headers) == 0 {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoHeaders)
		}
		if err := checkLibraries(req.Libraries); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if len(req.HeaderDirs) == 0 {
			req.HeaderDirs = parse.HeaderDirs(headers)
		}

		units, err := parse.ParseAll(ctx, headers, s.cfg.ParseWorkers)
		if err != nil {
			return fmt.Errorf("parse headers: %w", err)
		}
		s.forest = s.forest[:0]
		s.diags = nil
		for _, u := range units {
			s.forest = append(s.forest, u.TU)
			for _, d := range u.Diagnostics {
				s.logger.Warn("syntax error", "at", d.String())
			}
			s.diags = append(s.diags, u.Diagnostics...)
		}
		s.req = req
		s.headers = headers
		s.cache.Store(typemodel.NewCache(typemodel.HostContext{Package: s.cfg.Package}))

		n := 0
		for _, tu := range s.forest {
			n += count(tu)
		}
		s.metrics.setElements("indexed", n)
		s.logger.Info("indexed", "headers", len(headers), "elements", n, "diagnostics", len(s.diags))
		if s.cfg.Debug {
			s.logger.Info("header dirs", "dirs", req.HeaderDirs)
		}
		return nil
	})
}

// Diagnostics returns the syntax problems found by Index.
func (s *Session) Diagnostics(ctx context.Context) ([]parse.Diagnostic, error) {
	var out []parse.Diagnostic
	if err := s.w.do(ctx, func() { out = append(out, s.diags...) }); err != nil {
		// The call may still be running; out belongs to it.
		return nil, err
	}
	return out, nil
}

// FilterAndResolve selects the top-level declarations matching pred and
// resolves them under the configured reference policy. A nil pred selects
// with filter.Default. Under the throw policy an unresolved reference
// aborts the session.
func (s *Session) FilterAndResolve(ctx context.Context, pred filter.Predicate) (*resolver.Result, error) {
	var res *resolver.Result
	err := s.exec(ctx, "filter_and_resolve", StateFiltered, func(ctx context.Context) error {
		if pred != nil {
			if v := filter.Validate(pred); !v.Valid() {
				return fmt.Errorf("%w: %v", ErrInvalidFilter, v.Errors)
			}
		}
		policy, _ := s.cfg.References()
		alloc, _ := s.cfg.AllocationStyle()
		r := resolver.New(s.cache.Load(),
			resolver.WithPolicy(policy),
			resolver.WithAllocation(alloc),
			resolver.WithLogger(s.logger))

		out, err := r.Resolve(ctx, s.cfg.Module, s.forest, pred)
		if err != nil {
			return err
		}
		s.result = out
		s.root = out.Root
		s.forest = nil
		res = out

		s.metrics.setElements("resolved", count(out.Root))
		s.logger.Info("resolved",
			"classes", out.Classes,
			"functions", out.Functions,
			"included", len(out.Included),
			"opaque", out.Opaque,
			"dropped", len(out.Dropped))
		if s.cfg.Debug {
			for _, d := range out.Dropped {
				s.logger.Info("dropped", "element", d.Element, "type", d.Spelling, "reason", d.Reason)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddMapping registers m to run, after the mappers before it, when the
// tree is written. A mapper without a filter or callback is rejected and
// the session stays usable.
func (s *Session) AddMapping(ctx context.Context, m mapping.Mapper) error {
	return s.exec(ctx, "add_mapping", StateMapped, func(context.Context) error {
		if err := mapping.Check(m); err != nil {
			return err
		}
		s.mappers = append(s.mappers, m)
		s.logger.Debug("mapping added", "mapper", mapping.NameOf(m), "filter", m.Filter().String())
		return nil
	})
}

// WriteTo applies the registered mappings and writes the final tree to
// dir: <module>.ir.json, the <module>.db snapshot and the <module>.def
// descriptor. An empty dir uses the configured output directory. Files are
// staged and moved into place only once all of them are complete; a failed
// move removes the files already moved.
func (s *Session) WriteTo(ctx context.Context, dir string) (*WriteResult, error) {
	var out *WriteResult
	err := s.exec(ctx, "write_to", StateWritten, func(ctx context.Context) error {
		if dir == "" {
			dir = s.cfg.OutputDir
		}
		var mres *mapping.Result
		if len(s.mappers) > 0 {
			var err error
			if mres, err = s.applyMappings(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.write(ctx, dir)
		if err != nil {
			return err
		}
		res.Mapping = mres
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) applyMappings(ctx context.Context) (*mapping.Result, error) {
	policy, _ := s.cfg.Errors()
	eng := mapping.New(
		mapping.WithMaxSteps(s.cfg.MaxSteps),
		mapping.WithErrorPolicy(policy),
		mapping.WithTypeResolver(s.cache.Load()),
		mapping.WithBaseResolver(resolver.BasesOf(s.root)),
		mapping.WithLogger(s.logger))

	if s.cfg.Debug {
		s.logger.Info("running mappings", "mappers", len(s.mappers))
	}
	res, err := eng.Apply(ctx, s.root, s.mappers...)
	if res != nil {
		s.metrics.addIntents(res.Intents)
	}
	if err != nil {
		return nil, err
	}
	s.root = res.Root
	s.metrics.setElements("mapped", count(s.root))
	return res, nil
}

func (s *Session) write(ctx context.Context, dir string) (*WriteResult, error) {
	module := s.cfg.Module
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	stage, err := os.MkdirTemp(dir, ".cbind-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	doc, err := json.MarshalIndent(ir.ToDocument(s.root), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stage, module+".ir.json"), append(doc, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write tree: %w", err)
	}

	st, err := store.Open(filepath.Join(stage, module+".db"))
	if err != nil {
		return nil, err
	}
	snap, err := st.WriteSnapshot(ctx, module, s.root, s.clock.Current())
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	desc, err := NewDescriptor(abs, s.cfg.Package, module, s.req.HeaderDirs, s.cfg.IncludePaths, s.req.Libraries)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(stage, module+".def"), []byte(desc.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write descriptor: %w", err)
	}

	res := &WriteResult{Dir: dir, Snapshot: snap}
	for _, name := range []string{module + ".ir.json", module + ".db", module + ".def"} {
		if err := os.Rename(filepath.Join(stage, name), filepath.Join(dir, name)); err != nil {
			// Leave no partial set behind.
			for _, f := range res.Files {
				_ = os.Remove(f)
			}
			return nil, fmt.Errorf("move %s into place: %w", name, err)
		}
		res.Files = append(res.Files, filepath.Join(dir, name))
	}
	s.logger.Info("written", "dir", dir, "snapshot", snap.ID, "elements", snap.Elements)
	return res, nil
}

// Root returns the current tree: the resolved tree after FilterAndResolve
// and the mapped tree after WriteTo. It is nil before resolution and after
// an abort.
func (s *Session) Root(ctx context.Context) (ir.Element, error) {
	var root ir.Element
	if err := s.w.do(ctx, func() { root = s.root }); err != nil {
		return nil, err
	}
	return root, nil
}

// Close ends the session and stops its worker. Close is idempotent.
func (s *Session) Close() error {
	_ = s.w.do(context.Background(), func() {
		s.forest, s.root, s.result, s.mappers = nil, nil, nil, nil
		s.setState(StateClosed)
	})
	s.w.stop()
	return nil
}

func count(root ir.Element) int {
	if root == nil {
		return 0
	}
	n := 0
	for range ir.Walk(root) {
		n++
	}
	return n
}
