package mcpgateway

import (
	"fmt"
	"strings"
)

// NamespaceStrategy generates the downstream names of upstream tools.
// Implementations must be deterministic and collision-free for a given
// serverID/name pair.
type NamespaceStrategy interface {
	ToolName(serverID, toolName string) string
}

// ServerPrefixNamespace prefixes every tool name with the originating server
// name, separating fields with a configurable delimiter (defaults to "__" to
// stay within the MCP tool name character guidance).
type ServerPrefixNamespace struct {
	Separator string
}

func (s ServerPrefixNamespace) separator() string {
	if s.Separator == "" {
		return "__"
	}
	return s.Separator
}

func (s ServerPrefixNamespace) ToolName(serverID, toolName string) string {
	return fmt.Sprintf("%s%s%s", serverID, s.separator(), toolName)
}

// Split reverses ToolName. It reports false when gatewayName does not carry
// the separator.
func (s ServerPrefixNamespace) Split(gatewayName string) (serverID, toolName string, ok bool) {
	return strings.Cut(gatewayName, s.separator())
}
