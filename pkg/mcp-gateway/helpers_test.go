package mcpgateway

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

// newUpstream builds an in-memory server whose tools answer with
// "<tool>:<raw arguments>". A tool named "fail" reports a tool error.
func newUpstream(names ...string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "upstream", Version: "1.0.0"}, nil)
	for _, name := range names {
		toolName := name
		server.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: "upstream " + toolName,
			InputSchema: map[string]any{"type": "object"},
		}, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if toolName == "fail" {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: "upstream failure"}},
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

// newManager registers one server per entry, each served in memory.
func newManager(t *testing.T, upstreams map[string]*mcp.Server, opts *mcpmgr.ManagerOptions) *mcpmgr.Manager {
	t.Helper()
	if opts == nil {
		opts = &mcpmgr.ManagerOptions{}
	}
	opts.Transports = mcpmgr.TransportFactoryFunc(func(name string, _ mcpmgr.ServerConfig) (*mcpmgr.TransportHandle, error) {
		upstream, ok := upstreams[name]
		if !ok {
			upstream = newUpstream()
		}
		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		ss, err := upstream.Connect(context.Background(), serverTransport, nil)
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = ss.Close() })
		return &mcpmgr.TransportHandle{Kind: mcpmgr.TransportStdio, Variant: "memory", Transport: clientTransport}, nil
	})
	mgr := mcpmgr.NewManager(opts)
	for name := range upstreams {
		mgr.AddServer(name, mcpmgr.ServerConfig{Command: name})
	}
	t.Cleanup(func() { mgr.Cleanup(context.Background()) })
	return mgr
}

// connectClient serves gateway over httptest and opens a client session.
func connectClient(t *testing.T, gateway *Gateway) *mcp.ClientSession {
	t.Helper()
	server := httptest.NewServer(gateway.Handler())
	t.Cleanup(server.Close)

	client := mcp.NewClient(&mcp.Implementation{Name: "gateway-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{
		Endpoint:   server.URL + "/mcp",
		HTTPClient: server.Client(),
		MaxRetries: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func toolNames(t *testing.T, session *mcp.ClientSession) []string {
	t.Helper()
	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.Truef(t, ok, "unexpected content %T", res.Content[0])
	return text.Text
}
