package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roach88/cbind/internal/config"
	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/mapping"
	"github.com/roach88/cbind/internal/rules"
	"github.com/roach88/cbind/internal/session"
)

const (
	serverName    = "cbind"
	serverVersion = "0.1.0"
)

// Tool names.
const (
	ToolPing             = "ping"
	ToolSetConfig        = "set_config"
	ToolGetConfig        = "get_config"
	ToolIndex            = "index"
	ToolFilterAndResolve = "filter_and_resolve"
	ToolAddMapping       = "add_mapping"
	ToolWriteTo          = "write_to"
	ToolCloseSession     = "close_session"
	ToolQuit             = "quit"
)

// Tool input errors.
var (
	ErrNoRules    = errors.New("one of rules or path is required")
	ErrBothRules  = errors.New("rules and path are exclusive")
	ErrNoMappings = errors.New("no rules compiled")
)

// PingInput is the input of the ping tool.
type PingInput struct {
	Text string `json:"text,omitempty" jsonschema:"text echoed back after the server name"`
}

// ConfigInput is the input of set_config. Unset fields keep their defaults.
type ConfigInput struct {
	Module          string   `json:"module"                     jsonschema:"module name, a C identifier"`
	Package         string   `json:"package,omitempty"          jsonschema:"dotted host package"`
	Compiler        string   `json:"compiler,omitempty"         jsonschema:"C++ compiler for the shim build"`
	ErrorPolicy     string   `json:"error_policy,omitempty"     jsonschema:"fail_fast or log_and_continue"`
	ReferencePolicy string   `json:"reference_policy,omitempty" jsonschema:"ignore, opaque, throw or include"`
	Allocation      string   `json:"allocation,omitempty"       jsonschema:"how constructed objects are allocated"`
	Debug           bool     `json:"debug,omitempty"            jsonschema:"forward debug records to the logger"`
	IncludePaths    []string `json:"include_paths,omitempty"    jsonschema:"extra compiler include paths"`
	OutputDir       string   `json:"output_dir,omitempty"       jsonschema:"default directory for write_to"`
	MaxSteps        int      `json:"max_steps,omitempty"        jsonschema:"mapping step quota"`
	ParseWorkers    int      `json:"parse_workers,omitempty"    jsonschema:"parallel header parsers (0 for GOMAXPROCS)"`
}

func (in ConfigInput) config() config.Config {
	cfg := config.Default()
	cfg.Module = in.Module
	cfg.Debug = in.Debug
	cfg.IncludePaths = in.IncludePaths
	cfg.ParseWorkers = in.ParseWorkers
	if in.MaxSteps != 0 {
		cfg.MaxSteps = in.MaxSteps
	}
	setString(&cfg.Package, in.Package)
	setString(&cfg.Compiler, in.Compiler)
	setString(&cfg.ErrorPolicy, in.ErrorPolicy)
	setString(&cfg.ReferencePolicy, in.ReferencePolicy)
	setString(&cfg.Allocation, in.Allocation)
	setString(&cfg.OutputDir, in.OutputDir)
	return cfg
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// GetConfigInput is the input of get_config.
type GetConfigInput struct{}

// HandleInput names a session.
type HandleInput struct {
	Handle string `json:"handle" jsonschema:"session handle returned by index"`
}

// FilterInput is the input of filter_and_resolve.
type FilterInput struct {
	Handle string `json:"handle" jsonschema:"session handle returned by index"`
	Filter any    `json:"filter" jsonschema:"predicate selecting the root classes, in the filter wire encoding"`
}

// MappingInput is the input of add_mapping. Exactly one of Rules and Path
// is set.
type MappingInput struct {
	Handle string `json:"handle"          jsonschema:"session handle returned by index"`
	Rules  string `json:"rules,omitempty" jsonschema:"CUE source defining rule: <name>: {filter, action}"`
	Path   string `json:"path,omitempty"  jsonschema:"CUE rule file or directory"`
}

// WriteInput is the input of write_to.
type WriteInput struct {
	Handle string `json:"handle"        jsonschema:"session handle returned by index"`
	Dir    string `json:"dir,omitempty" jsonschema:"output directory (default: the configured output_dir)"`
}

// QuitInput is the input of quit.
type QuitInput struct{}

// ToolOutput wraps the structured result of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

type handler[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

// Server exposes a Service as MCP tools.
type Server struct {
	svc    *Service
	inner  *mcpsdk.Server
	logger *slog.Logger

	mu    sync.RWMutex
	tools []string
}

// NewServer creates an MCP server with every tool registered. A nil
// logger uses slog.Default().
func NewServer(svc *Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	inner := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcpsdk.ServerOptions{Logger: logger})

	s := &Server{svc: svc, inner: inner, logger: logger}

	addTool(s, ToolPing, "Liveness check. Echoes the text after the server name.", s.handlePing)
	addTool(s, ToolSetConfig, "Set the global configuration used by sessions created afterwards.", s.handleSetConfig)
	addTool(s, ToolGetConfig, "Return the global configuration. Fails before set_config.", s.handleGetConfig)
	addTool(s, ToolIndex, "Parse C++ headers into a new session and return its handle.", s.handleIndex)
	addTool(s, ToolFilterAndResolve, "Select root classes with a predicate and resolve them and what they reference.", s.handleFilterAndResolve)
	addTool(s, ToolAddMapping, "Register CUE mapping rules on a session. Rules run at write_to.", s.handleAddMapping)
	addTool(s, ToolWriteTo, "Apply the registered mappings and write the IR, snapshot and module descriptor.", s.handleWriteTo)
	addTool(s, ToolCloseSession, "Close a session and release its tree.", s.handleCloseSession)
	addTool(s, ToolQuit, "Stop the server. Open sessions are aborted.", s.handleQuit)
	return s
}

func addTool[In any](s *Server, name, description string, h handler[In]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description}, withMetrics(s.svc.metrics, name, h))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, name)
}

func withMetrics[In any](m *metrics, name string, h handler[In]) handler[In] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()
		res, out, err := h(ctx, req, in)
		m.record(name, start, err != nil || (res != nil && res.IsError))
		return res, out, err
	}
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)
	return names
}

// Run serves on stdio until the client disconnects, ctx ends or quit is
// called.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport. When it returns, every open session
// has been aborted with session.ErrTransportClosed.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.svc.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.inner.Run(ctx, transport)
	s.logger.Debug("mcp server stopped", "open_sessions", len(s.svc.Handles()))
	s.svc.Shutdown(context.Background(), session.ErrTransportClosed)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) handlePing(_ context.Context, _ *mcpsdk.CallToolRequest, in PingInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return textResult(s.svc.Ping(in.Text))
}

func (s *Server) handleSetConfig(_ context.Context, _ *mcpsdk.CallToolRequest, in ConfigInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	cfg := in.config()
	if err := s.svc.SetConfig(cfg); err != nil {
		return errorResult(err)
	}
	return jsonResult(cfg)
}

func (s *Server) handleGetConfig(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetConfigInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	cfg, err := s.svc.GetConfig()
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(cfg)
}

func (s *Server) handleIndex(ctx context.Context, _ *mcpsdk.CallToolRequest, in session.IndexRequest) (*mcpsdk.CallToolResult, ToolOutput, error) {
	handle, err := s.svc.Index(ctx, in)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]string{"handle": handle})
}

// ResolveSummary is the result of filter_and_resolve.
type ResolveSummary struct {
	Classes   int      `json:"classes"`
	Functions int      `json:"functions"`
	Included  []string `json:"included,omitempty"`
	Opaque    int      `json:"opaque"`
	Dropped   int      `json:"dropped"`
}

func (s *Server) handleFilterAndResolve(ctx context.Context, _ *mcpsdk.CallToolRequest, in FilterInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	raw, err := json.Marshal(in.Filter)
	if err != nil {
		return errorResult(err)
	}
	pred, err := filter.Unmarshal(raw)
	if err != nil {
		return errorResult(&session.Error{Code: session.CodeConfig, Op: "filter_and_resolve", Session: in.Handle,
			Err: fmt.Errorf("%w: %w", session.ErrInvalidFilter, err)})
	}
	res, err := s.svc.FilterAndResolve(ctx, in.Handle, pred)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(ResolveSummary{
		Classes:   res.Classes,
		Functions: res.Functions,
		Included:  res.Included,
		Opaque:    res.Opaque,
		Dropped:   len(res.Dropped),
	})
}

func (s *Server) handleAddMapping(ctx context.Context, _ *mcpsdk.CallToolRequest, in MappingInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	mappers, err := compileMappings(in)
	if err != nil {
		return errorResult(&session.Error{Code: session.CodeConfig, Op: "add_mapping", Session: in.Handle, Err: err})
	}
	if err := s.svc.AddMapping(ctx, in.Handle, mappers...); err != nil {
		return errorResult(err)
	}
	names := make([]string, len(mappers))
	for i, m := range mappers {
		names[i] = m.Name()
	}
	return jsonResult(map[string][]string{"rules": names})
}

func compileMappings(in MappingInput) ([]mapping.Mapper, error) {
	switch {
	case in.Rules == "" && in.Path == "":
		return nil, ErrNoRules
	case in.Rules != "" && in.Path != "":
		return nil, ErrBothRules
	}

	var set *rules.Set
	var errs []error
	if in.Path != "" {
		set, errs = rules.Load([]string{in.Path})
	} else {
		set = &rules.Set{}
		set.Rules, errs = rules.CompileString("rules.cue", in.Rules)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(set.Rules) == 0 {
		return nil, ErrNoMappings
	}
	return set.Mappers(), nil
}

// WriteSummary is the result of write_to.
type WriteSummary struct {
	Dir         string   `json:"dir"`
	Files       []string `json:"files"`
	Snapshot    string   `json:"snapshot"`
	Fingerprint string   `json:"fingerprint"`
	Elements    int      `json:"elements"`
	Applied     int      `json:"applied"`
	Failed      int      `json:"failed"`
}

func (s *Server) handleWriteTo(ctx context.Context, _ *mcpsdk.CallToolRequest, in WriteInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	res, err := s.svc.WriteTo(ctx, in.Handle, in.Dir)
	if err != nil {
		return errorResult(err)
	}
	sum := WriteSummary{
		Dir:         res.Dir,
		Files:       res.Files,
		Snapshot:    res.Snapshot.ID,
		Fingerprint: res.Snapshot.Fingerprint,
		Elements:    res.Snapshot.Elements,
	}
	if res.Mapping != nil {
		sum.Applied, sum.Failed = res.Mapping.Applied, res.Mapping.Failed
	}
	return jsonResult(sum)
}

func (s *Server) handleCloseSession(_ context.Context, _ *mcpsdk.CallToolRequest, in HandleInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := s.svc.CloseSession(in.Handle); err != nil {
		return errorResult(err)
	}
	return textResult("closed " + in.Handle)
}

func (s *Server) handleQuit(_ context.Context, _ *mcpsdk.CallToolRequest, _ QuitInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	s.svc.Quit()
	return textResult("bye")
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func textResult(text string) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}, ToolOutput{Data: text}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}
