package mcpmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// newToolServer builds a go-sdk server exposing one echo-style tool per name.
// A tool named "fail" reports an application-level error.
func newToolServer(t *testing.T, names ...string) *mcp.Server {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	for _, name := range names {
		toolName := name
		server.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: "tool " + toolName,
			InputSchema: json.RawMessage(`{"type":"object"}`),
		}, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if toolName == "fail" {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: "tool blew up"}},
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: toolName + ":" + string(req.Params.Arguments)}},
			}, nil
		})
	}
	return server
}

// memoryFactory serves named in-memory servers and delegates command configs
// to the default factory. Builds are counted per server.
type memoryFactory struct {
	t        *testing.T
	servers  map[string]*mcp.Server
	fallback TransportFactory

	mu     sync.Mutex
	builds map[string]int
}

func newMemoryFactory(t *testing.T, servers map[string]*mcp.Server) *memoryFactory {
	return &memoryFactory{
		t:        t,
		servers:  servers,
		fallback: NewTransportFactory(nil),
		builds:   make(map[string]int),
	}
}

func (f *memoryFactory) Build(name string, cfg ServerConfig) (*TransportHandle, error) {
	f.mu.Lock()
	f.builds[name]++
	f.mu.Unlock()

	server, ok := f.servers[name]
	if !ok {
		return f.fallback.Build(name, cfg)
	}
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(context.Background(), serverTransport, nil)
	if err != nil {
		return nil, err
	}
	f.t.Cleanup(func() { _ = ss.Close() })
	return &TransportHandle{Kind: TransportStdio, Variant: "memory", Transport: clientTransport}, nil
}

func (f *memoryFactory) buildCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds[name]
}

// fakeSession is a scripted ToolSession.
type fakeSession struct {
	pages   [][]*mcp.Tool
	listErr error
	// blockList makes ListTools wait for ctx.
	blockList bool
	call      func(context.Context, *mcp.CallToolParams) (*mcp.CallToolResult, error)
	closeErr  error

	listCalls atomic.Int32
	closed    atomic.Int32
}

func (s *fakeSession) ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	s.listCalls.Add(1)
	if s.blockList {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	page := 0
	if params != nil && params.Cursor != "" {
		if _, err := fmt.Sscanf(params.Cursor, "page-%d", &page); err != nil {
			return nil, err
		}
	}
	if page >= len(s.pages) {
		return &mcp.ListToolsResult{}, nil
	}
	res := &mcp.ListToolsResult{Tools: s.pages[page]}
	if page+1 < len(s.pages) {
		res.NextCursor = fmt.Sprintf("page-%d", page+1)
	}
	return res, nil
}

func (s *fakeSession) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	if s.call == nil {
		return nil, errors.New("no call handler")
	}
	return s.call(ctx, params)
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	return s.closeErr
}

func staticDialer(session ToolSession) Dialer {
	return func(context.Context, string, mcp.Transport) (ToolSession, error) {
		return session, nil
	}
}

// noopFactory builds a transport that is never connected; pair it with a
// Dialer that ignores the transport.
var noopFactory = TransportFactoryFunc(func(string, ServerConfig) (*TransportHandle, error) {
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_ = serverTransport
	return &TransportHandle{Kind: TransportStdio, Variant: "noop", Transport: clientTransport}, nil
})

func requireSleep(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep binary not available")
	}
}

func requireStatus[T Status](t *testing.T, status Status) T {
	t.Helper()
	s, ok := status.(T)
	require.Truef(t, ok, "unexpected status %T (%v)", status, status)
	return s
}
