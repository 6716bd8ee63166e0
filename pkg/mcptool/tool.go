// Package mcptool exposes a supervisor to an agent as a single "mcp" tool with
// two actions: list the configured servers and their tools, or call a tool on
// a named server.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

// Name is the name the tool is published under.
const Name = "mcp"

// Supervisor is the part of *mcpmgr.Manager the tool drives.
type Supervisor interface {
	GetServers() []mcpmgr.ServerInfo
	CallTool(ctx context.Context, server, tool string, args any) mcpmgr.CallResult
	Connect(ctx context.Context, name string) (mcpmgr.Status, error)
	SetEnabled(ctx context.Context, name string, enabled bool) (mcpmgr.Status, error)
}

// Action selects what Execute does.
type Action string

const (
	ActionList      Action = "list"
	ActionCall      Action = "call"
	ActionEnable    Action = "enable"
	ActionDisable   Action = "disable"
	ActionReconnect Action = "reconnect"
)

// Params are the tool arguments.
type Params struct {
	Action    Action         `json:"action"`
	Server    string         `json:"server,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ServerSummary is one server in a list result.
type ServerSummary struct {
	Name   string            `json:"name"`
	Status mcpmgr.StatusKind `json:"status"`
	Tools  []string          `json:"tools"`
}

// Details is the structured half of a Result.
type Details struct {
	Action  Action          `json:"action"`
	Server  string          `json:"serverName,omitempty"`
	Tool    string          `json:"toolName,omitempty"`
	Success bool            `json:"success"`
	Result  []mcp.Content   `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Servers []ServerSummary `json:"servers,omitempty"`
	// Status is the server status after enable, disable or reconnect.
	Status mcpmgr.StatusKind `json:"status,omitempty"`
}

// Result pairs the text shown to the agent with structured details.
type Result struct {
	Text    string
	Details Details
}

// Tool binds the action handlers to a Supervisor.
type Tool struct {
	sup    Supervisor
	logger *zap.Logger
}

// New returns a Tool backed by sup.
func New(sup Supervisor, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{sup: sup, logger: logger.With(zap.String("component", "mcptool"))}
}

// Description renders the current server set. It changes as servers connect,
// so callers should refresh it after every status change.
func (t *Tool) Description() string {
	return Describe(t.sup.GetServers())
}

// InputSchema describes Params.
func InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action": {
				Type: "string",
				Enum: []any{
					string(ActionList), string(ActionCall),
					string(ActionEnable), string(ActionDisable), string(ActionReconnect),
				},
				Description: "Action: list (show servers/tools), call (invoke a tool), enable/disable/reconnect (manage a server)",
			},
			"server": {Type: "string", Description: "Server name (required for every action but list)"},
			"tool":   {Type: "string", Description: "Tool name (required for call)"},
			"arguments": {
				Type:        "object",
				Description: "Arguments to pass to the tool (for call)",
			},
		},
		Required: []string{"action"},
	}
}

// Describe builds the tool description from a server list.
func Describe(servers []mcpmgr.ServerInfo) string {
	if len(servers) == 0 {
		return "MCP tool gateway. No servers configured. Add servers to ~/.config/mcpsup/mcp.json or .mcp.json"
	}
	lines := []string{
		"MCP tool gateway. Actions:",
		"- list: Show available servers and tools",
		"- call: Call a tool (requires server, tool, arguments)",
		"- enable, disable, reconnect: Manage a server (requires server)",
		"",
		"Available servers and tools:",
	}
	for _, s := range servers {
		switch status := s.Status.(type) {
		case mcpmgr.Connected:
			lines = append(lines, fmt.Sprintf("  %s:", s.Name))
			for _, tool := range status.Tools {
				desc := ""
				if tool.Description != "" {
					desc = " - " + tool.Description
				}
				lines = append(lines, fmt.Sprintf("    - %s%s", tool.Name, desc))
			}
		case mcpmgr.Failed:
			lines = append(lines, fmt.Sprintf("  %s: (failed: %s)", s.Name, status.Message))
		case mcpmgr.Connecting:
			lines = append(lines, fmt.Sprintf("  %s: (connecting...)", s.Name))
		default:
			lines = append(lines, fmt.Sprintf("  %s: (disabled)", s.Name))
		}
	}
	return strings.Join(lines, "\n")
}

// Execute runs one action. It never returns a Go error; failures are reported
// through Details.Success and the text.
func (t *Tool) Execute(ctx context.Context, p Params) Result {
	switch p.Action {
	case ActionList:
		return t.list()
	case ActionCall:
		return t.call(ctx, p)
	case ActionEnable, ActionDisable, ActionReconnect:
		return t.manage(ctx, p)
	default:
		msg := fmt.Sprintf("Unknown action: %q", p.Action)
		return Result{Text: msg, Details: Details{Action: p.Action, Error: msg}}
	}
}

func (t *Tool) list() Result {
	servers := t.sup.GetServers()
	summaries := make([]ServerSummary, 0, len(servers))
	lines := []string{"MCP Servers:"}
	for _, s := range servers {
		sum := ServerSummary{Name: s.Name, Status: s.Status.Kind(), Tools: []string{}}
		for _, tool := range s.Tools() {
			sum.Tools = append(sum.Tools, tool.Name)
		}
		summaries = append(summaries, sum)

		if sum.Status == mcpmgr.StatusConnected {
			lines = append(lines, fmt.Sprintf("  %s: connected (%d tools)", s.Name, len(sum.Tools)))
			for _, name := range sum.Tools {
				lines = append(lines, "    - "+name)
			}
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", s.Name, sum.Status))
	}
	return Result{
		Text:    strings.Join(lines, "\n"),
		Details: Details{Action: ActionList, Success: true, Servers: summaries},
	}
}

func (t *Tool) call(ctx context.Context, p Params) Result {
	if p.Server == "" {
		return Result{
			Text:    "Missing required parameter: server",
			Details: Details{Action: ActionCall, Error: "Missing server"},
		}
	}
	if p.Tool == "" {
		return Result{
			Text:    "Missing required parameter: tool",
			Details: Details{Action: ActionCall, Error: "Missing tool"},
		}
	}
	args := p.Arguments
	if args == nil {
		args = map[string]any{}
	}

	res := t.sup.CallTool(ctx, p.Server, p.Tool, args)
	text := FormatContent(res.Content)
	details := Details{Action: ActionCall, Server: p.Server, Tool: p.Tool}
	if res.IsError {
		t.logger.Debug("tool call failed",
			zap.String("server", p.Server),
			zap.String("tool", p.Tool),
			zap.Error(res.Err))
		details.Error = text
		return Result{Text: text, Details: details}
	}
	details.Success = true
	details.Result = res.Content
	return Result{Text: text, Details: details}
}

// manage toggles or reconnects one server. Success means the server ended in
// the state the action asked for.
func (t *Tool) manage(ctx context.Context, p Params) Result {
	details := Details{Action: p.Action, Server: p.Server}
	if p.Server == "" {
		details.Error = "Missing server"
		return Result{Text: "Missing required parameter: server", Details: details}
	}

	var (
		status mcpmgr.Status
		err    error
		want   mcpmgr.StatusKind
	)
	switch p.Action {
	case ActionEnable:
		status, err = t.sup.SetEnabled(ctx, p.Server, true)
		want = mcpmgr.StatusConnected
	case ActionDisable:
		status, err = t.sup.SetEnabled(ctx, p.Server, false)
		want = mcpmgr.StatusDisabled
	default:
		status, err = t.sup.Connect(ctx, p.Server)
		want = mcpmgr.StatusConnected
	}
	if err != nil {
		details.Error = err.Error()
		return Result{Text: err.Error(), Details: details}
	}

	details.Status = status.Kind()
	text := fmt.Sprintf("%s: %s", p.Server, status)
	t.logger.Info("server managed",
		zap.String("server", p.Server),
		zap.String("action", string(p.Action)),
		zap.String("status", string(details.Status)))
	if details.Status != want {
		details.Error = text
		return Result{Text: text, Details: details}
	}
	details.Success = true
	return Result{Text: text, Details: details}
}

// FormatContent flattens content for display: text blocks verbatim, anything
// else as JSON, one block per line.
func FormatContent(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
			continue
		}
		encoded, err := json.Marshal(c)
		if err != nil {
			parts = append(parts, fmt.Sprintf("%v", c))
			continue
		}
		parts = append(parts, string(encoded))
	}
	return strings.Join(parts, "\n")
}
