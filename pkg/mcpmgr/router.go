package mcpmgr

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerTool pairs a tool with the server that advertised it.
type ServerTool struct {
	Server string
	Tool   ToolDescriptor
}

// CallResult is the outcome of CallTool. Content is the delegate's content
// verbatim on success, or a single text block describing the failure. Err is
// set whenever IsError is true.
type CallResult struct {
	Content []mcp.Content
	IsError bool
	Err     error
}

// ContentBlock is a flattened view of one content item.
type ContentBlock struct {
	Type string
	Text string
}

// Blocks flattens Content into typed blocks. Only text blocks carry Text.
func (r CallResult) Blocks() []ContentBlock {
	blocks := make([]ContentBlock, 0, len(r.Content))
	for _, c := range r.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			blocks = append(blocks, ContentBlock{Type: "text", Text: v.Text})
		case *mcp.ImageContent:
			blocks = append(blocks, ContentBlock{Type: "image"})
		case *mcp.AudioContent:
			blocks = append(blocks, ContentBlock{Type: "audio"})
		case *mcp.ResourceLink:
			blocks = append(blocks, ContentBlock{Type: "resource_link"})
		case *mcp.EmbeddedResource:
			blocks = append(blocks, ContentBlock{Type: "resource"})
		default:
			blocks = append(blocks, ContentBlock{Type: fmt.Sprintf("%T", c)})
		}
	}
	return blocks
}

func errorResult(err error) CallResult {
	return CallResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
		Err:     err,
	}
}

// GetAllTools flattens the tools of every connected server, in registration
// order and then discovery order.
func (m *Manager) GetAllTools() []ServerTool {
	var tools []ServerTool
	for _, rec := range m.registry.snapshot() {
		connected, ok := rec.status.(Connected)
		if !ok {
			continue
		}
		for _, tool := range connected.Tools {
			tools = append(tools, ServerTool{Server: rec.name, Tool: tool})
		}
	}
	return tools
}

// CallTool invokes tool on server. It never panics and never returns a Go
// error: an unknown or unconnected server, a delegate failure, and a tool
// that flags its own result as an error all come back with IsError set.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args any) (result CallResult) {
	session, err := m.registry.session(server)
	if err != nil {
		m.opts.Metrics.observeCall(server, "not_connected")
		return errorResult(err)
	}
	if args == nil {
		args = map[string]any{}
	}
	if m.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.CallTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			m.opts.Metrics.observeCall(server, "error")
			result = errorResult(&ToolInvocationError{Server: server, Tool: tool, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		m.opts.Metrics.observeCall(server, "error")
		return errorResult(&ToolInvocationError{Server: server, Tool: tool, Err: err})
	}
	if res == nil {
		m.opts.Metrics.observeCall(server, "ok")
		return CallResult{}
	}
	out := CallResult{Content: res.Content, IsError: res.IsError}
	if res.IsError {
		m.opts.Metrics.observeCall(server, "tool_error")
		out.Err = &ToolInvocationError{Server: server, Tool: tool}
		return out
	}
	m.opts.Metrics.observeCall(server, "ok")
	return out
}
