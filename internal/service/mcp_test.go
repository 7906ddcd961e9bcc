package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cbind/internal/session"
)

type harness struct {
	svc    *Service
	srv    *Server
	client *mcpsdk.ClientSession
	done   chan error
	cancel context.CancelFunc
}

func startServer(t *testing.T) *harness {
	t.Helper()
	svc := newService(t)
	srv := NewServer(svc, discard())
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	h := &harness{svc: svc, srv: srv, done: make(chan error, 1), cancel: cancel}
	go func() {
		h.done <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	h.client = cs

	t.Cleanup(func() {
		_ = cs.Close()
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) call(t *testing.T, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()
	res, err := h.client.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func decode[T any](t *testing.T, res *mcpsdk.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &v))
	return v
}

func TestServerListsTools(t *testing.T) {
	h := startServer(t)

	want := []string{
		ToolAddMapping, ToolCloseSession, ToolFilterAndResolve, ToolGetConfig,
		ToolIndex, ToolPing, ToolQuit, ToolSetConfig, ToolWriteTo,
	}
	assert.Equal(t, want, h.srv.ListToolNames())

	tools, err := h.client.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}
	assert.ElementsMatch(t, want, names)
}

func TestServerPing(t *testing.T) {
	h := startServer(t)
	res := h.call(t, ToolPing, map[string]any{"text": "hi"})
	assert.False(t, res.IsError)
	assert.Equal(t, "cbind ping hi", text(t, res))
}

func TestServerGetConfigBeforeSet(t *testing.T) {
	h := startServer(t)
	res := h.call(t, ToolGetConfig, map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "CONFIG")
}

func TestServerSetConfigDefaults(t *testing.T) {
	h := startServer(t)
	res := h.call(t, ToolSetConfig, map[string]any{"module": "geo", "package": "com.example.geo"})
	require.False(t, res.IsError, text(t, res))

	cfg, err := h.svc.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, testConfig(), cfg)

	res = h.call(t, ToolSetConfig, map[string]any{"module": "geo", "reference_policy": "sometimes"})
	assert.True(t, res.IsError)
}

func TestServerProtocol(t *testing.T) {
	h := startServer(t)
	headers := writeHeaders(t, map[string]string{"shapes.h": headerShapes})

	h.call(t, ToolSetConfig, map[string]any{"module": "geo", "package": "com.example.geo"})
	idx := decode[map[string]string](t, h.call(t, ToolIndex, map[string]any{"headers": headers}))
	handle := idx["handle"]
	assert.Equal(t, "s-1", handle)

	sum := decode[ResolveSummary](t, h.call(t, ToolFilterAndResolve, map[string]any{
		"handle": handle,
		"filter": map[string]any{"op": "kind", "kinds": []string{"class"}},
	}))
	assert.Equal(t, 2, sum.Classes)

	added := decode[map[string][]string](t, h.call(t, ToolAddMapping, map[string]any{"handle": handle, "rules": stripConst}))
	assert.Equal(t, []string{"strip_const"}, added["rules"])

	out := t.TempDir()
	wr := decode[WriteSummary](t, h.call(t, ToolWriteTo, map[string]any{"handle": handle, "dir": out}))
	assert.Equal(t, out, wr.Dir)
	assert.Equal(t, []string{
		filepath.Join(out, "geo.ir.json"),
		filepath.Join(out, "geo.db"),
		filepath.Join(out, "geo.def"),
	}, wr.Files)
	assert.Equal(t, 1, wr.Applied)
	assert.NotEmpty(t, wr.Fingerprint)

	res := h.call(t, ToolCloseSession, map[string]any{"handle": handle})
	assert.False(t, res.IsError, text(t, res))
	assert.Empty(t, h.svc.Handles())
}

func TestServerRejectsBadFilter(t *testing.T) {
	h := startServer(t)
	h.call(t, ToolSetConfig, map[string]any{"module": "geo"})
	idx := decode[map[string]string](t, h.call(t, ToolIndex, map[string]any{
		"headers": writeHeaders(t, map[string]string{"shapes.h": headerShapes}),
	}))

	res := h.call(t, ToolFilterAndResolve, map[string]any{
		"handle": idx["handle"],
		"filter": map[string]any{"op": "sometimes"},
	})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid filter")

	sess, err := h.svc.Session(idx["handle"])
	require.NoError(t, err)
	assert.Equal(t, session.StateIndexed, sess.State())
}

func TestServerAddMappingErrors(t *testing.T) {
	h := startServer(t)
	h.call(t, ToolSetConfig, map[string]any{"module": "geo"})
	idx := decode[map[string]string](t, h.call(t, ToolIndex, map[string]any{
		"headers": writeHeaders(t, map[string]string{"shapes.h": headerShapes}),
	}))
	handle := idx["handle"]
	h.call(t, ToolFilterAndResolve, map[string]any{
		"handle": handle,
		"filter": map[string]any{"op": "kind", "kinds": []string{"class"}},
	})

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"neither", map[string]any{"handle": handle}, ErrNoRules.Error()},
		{"both", map[string]any{"handle": handle, "rules": stripConst, "path": "x.cue"}, ErrBothRules.Error()},
		{"typo", map[string]any{"handle": handle, "rules": `rule: r: {filter: kind: "method", acton: remove: true}`}, `did you mean "action"?`},
		{"unknown handle", map[string]any{"handle": "nope", "rules": stripConst}, ErrUnknownHandle.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.call(t, ToolAddMapping, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), tt.want)
		})
	}

	sess, err := h.svc.Session(handle)
	require.NoError(t, err)
	assert.Equal(t, session.StateFiltered, sess.State(), "rejected mappings leave the session usable")
}

func TestTransportCloseAbortsSessions(t *testing.T) {
	h := startServer(t)
	h.call(t, ToolSetConfig, map[string]any{"module": "geo"})
	idx := decode[map[string]string](t, h.call(t, ToolIndex, map[string]any{
		"headers": writeHeaders(t, map[string]string{"shapes.h": headerShapes}),
	}))
	sess, err := h.svc.Session(idx["handle"])
	require.NoError(t, err)

	require.NoError(t, h.client.Close())
	select {
	case <-h.done:
		h.done <- nil
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after the client closed")
	}

	assert.Empty(t, h.svc.Handles())
	assert.Equal(t, session.StateClosed, sess.State())
	assert.True(t, session.IsTransportError(sess.Err()))
}

func TestServerQuit(t *testing.T) {
	h := startServer(t)
	// The reply may race the shutdown; only the stop matters.
	_, _ = h.client.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: ToolQuit, Arguments: map[string]any{}})

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- nil
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after quit")
	}
}
