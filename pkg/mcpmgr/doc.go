// Package mcpmgr supervises connections to many Model Context Protocol (MCP)
// tool-provider servers from a single Go process. It layers registration,
// timeout-bounded connection, lifecycle tracking, and tool routing on top of
// the modelcontextprotocol/go-sdk client.
//
// # Core entry points
//
//   - Manager is the long-lived supervisor. Construct it with NewManager,
//     register servers with AddServer, then call Connect or ConnectAll.
//     Cleanup releases everything and empties the registry.
//   - ServerConfig declares how a server is reached: a subprocess (Command,
//     Args, Env, Cwd) or an HTTP endpoint (URL). A URL always wins.
//   - Status is a closed sum type: Disabled, Connecting, Connected (with its
//     tools) and Failed (with the error). Type-switch on it.
//
// Connecting builds a transport through a TransportFactory, then races the
// handshake and the tool discovery against the server timeout. Whichever side
// settles first decides the outcome; a late session from the losing side is
// closed, never recorded. ConnectAll fans out one attempt per server and
// joins them all, so a hanging server only ever costs its own timeout.
//
// GetAllTools and CallTool read the registry concurrently with connection
// work. CallTool never returns a Go error: failures come back as a CallResult
// with IsError set, so the result can be handed straight to a model.
//
// Records are replaced whole under a lock rather than mutated, and each
// connect attempt carries an id: Disconnect, SetEnabled(false), AddServer
// overwrites, and Cleanup all invalidate an attempt in flight, which then
// closes whatever it managed to open instead of recording it.
package mcpmgr
