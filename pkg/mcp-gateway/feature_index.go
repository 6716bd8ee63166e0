package mcpgateway

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

const (
	metaKeyServerID   = "mcpgateway.server_id"
	metaKeyNativeName = "mcpgateway.native_name"
)

// featureIndex maps gateway tool names back to the server and native name
// they were published from.
type featureIndex struct {
	ns NamespaceStrategy

	mu sync.RWMutex

	tools       map[string]toolTarget
	serverTools map[string][]string
}

type toolTarget struct {
	GatewayName string
	ServerID    string
	NativeName  string
}

type toolRegistration struct {
	Tool   *mcp.Tool
	Target toolTarget
}

func newFeatureIndex(ns NamespaceStrategy) *featureIndex {
	return &featureIndex{
		ns:          ns,
		tools:       make(map[string]toolTarget),
		serverTools: make(map[string][]string),
	}
}

// UpdateTools replaces everything published for serverID with upstream. A nil
// upstream withdraws the server.
func (f *featureIndex) UpdateTools(serverID string, upstream []mcpmgr.ToolDescriptor) (removed []string, added []toolRegistration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed = f.removeToolsLocked(serverID)
	if len(upstream) == 0 {
		return removed, nil
	}
	added = make([]toolRegistration, 0, len(upstream))
	names := make([]string, 0, len(upstream))
	for _, tool := range upstream {
		gatewayName := f.ns.ToolName(serverID, tool.Name)
		target := toolTarget{GatewayName: gatewayName, ServerID: serverID, NativeName: tool.Name}
		f.tools[gatewayName] = target
		added = append(added, toolRegistration{Tool: toTool(tool, target), Target: target})
		names = append(names, gatewayName)
	}
	f.serverTools[serverID] = names
	return removed, added
}

func (f *featureIndex) ToolTarget(name string) (toolTarget, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tools[name]
	return t, ok
}

// Servers lists the servers that currently have published tools.
func (f *featureIndex) Servers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.serverTools))
	for id := range f.serverTools {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (f *featureIndex) removeToolsLocked(serverID string) []string {
	names := f.serverTools[serverID]
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		delete(f.tools, name)
	}
	delete(f.serverTools, serverID)
	return append([]string(nil), names...)
}

func toTool(desc mcpmgr.ToolDescriptor, target toolTarget) *mcp.Tool {
	return &mcp.Tool{
		Name:        target.GatewayName,
		Description: desc.Description,
		InputSchema: objectSchema(desc.InputSchema),
		Meta: mcp.Meta{
			metaKeyServerID:   target.ServerID,
			metaKeyNativeName: target.NativeName,
		},
	}
}

// objectSchema normalizes an upstream input schema into a JSON object schema.
// Server.AddTool rejects anything whose type is not "object".
func objectSchema(schema any) any {
	fallback := map[string]any{"type": "object"}
	if schema == nil {
		return fallback
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out["type"] != "object" {
		return fallback
	}
	return out
}
