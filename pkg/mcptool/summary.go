package mcptool

import (
	"fmt"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

// Summary is the notice set shown after connecting a batch of servers.
type Summary struct {
	// Failures holds one notice per failed server.
	Failures []string
	// Info counts connected servers and their tools. Empty when nothing
	// connected.
	Info string
}

// Summarize reports the outcome of a ConnectAll. servers supplies the order
// and the tool counts.
func Summarize(results map[string]mcpmgr.Status, servers []mcpmgr.ServerInfo) Summary {
	var sum Summary
	connected, tools := 0, 0
	for _, s := range servers {
		status, ok := results[s.Name]
		if !ok {
			continue
		}
		switch st := status.(type) {
		case mcpmgr.Connected:
			connected++
			tools += len(st.Tools)
		case mcpmgr.Failed:
			sum.Failures = append(sum.Failures, fmt.Sprintf("MCP: %s failed - %s", s.Name, st.Message))
		}
	}
	if connected > 0 {
		sum.Info = fmt.Sprintf("MCP: %d server(s), %d tools", connected, tools)
	}
	return sum
}
