// Package mcpgateway exposes an HTTP-facing aggregation layer that republishes
// the tools of every connected mcpmgr server over a single Streamable MCP
// endpoint. Tool names are namespaced per server, calls are routed through
// Manager.CallTool, and the published set follows server status changes.
package mcpgateway
