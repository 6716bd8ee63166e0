package mcpgateway

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options configure a Gateway instance.
type Options struct {
	// Implementation identifies the gateway's MCP server implementation metadata.
	Implementation *mcp.Implementation
	// Addr controls the listen address used by ListenAndServe. Defaults to ":8700".
	Addr string
	// Path mounts the Streamable handler under a specific HTTP path. Defaults
	// to "/mcp".
	Path string
	// Namespace customizes how upstream tool names are exposed to downstream
	// clients. Defaults to ServerPrefixNamespace.
	Namespace NamespaceStrategy
	// AutoConnect connects every registered server during construction.
	AutoConnect bool
	// ExposeMetaTool additionally publishes the single "mcp" tool with list
	// and call actions. Its description tracks the server set.
	ExposeMetaTool bool
	// AdminAPI mounts POST /servers/{name}/{enable|disable|reconnect}. The
	// routes sit behind TokenVerifier when one is set.
	AdminAPI bool
	// Streamable tweaks the Streamable HTTP handler behavior passed to
	// mcp.NewStreamableHTTPHandler.
	Streamable mcp.StreamableHTTPOptions
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
	// ShutdownTimeout bounds the graceful HTTP shutdown in ListenAndServe.
	ShutdownTimeout time.Duration

	// AllowedOrigins enables CORS for browser clients when non-empty. Use
	// "*" to allow any origin.
	AllowedOrigins []string

	// Gatherer, when set, is served in the Prometheus text format on
	// MetricsPath.
	Gatherer prometheus.Gatherer
	// MetricsPath defaults to "/metrics".
	MetricsPath string

	// TokenVerifier protects the MCP endpoint with bearer token auth when set.
	TokenVerifier auth.TokenVerifier
	// TokenOptions tune the bearer token middleware. Requires TokenVerifier.
	TokenOptions *auth.RequireBearerTokenOptions
	// AuthorizationServer, when set with TokenVerifier, is advertised on
	// /.well-known/oauth-protected-resource.
	AuthorizationServer string
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Implementation == nil {
		opts.Implementation = &mcp.Implementation{
			Name:    "mcpsup-gateway",
			Title:   "MCP Supervisor Gateway",
			Version: "1.0.0",
		}
	} else {
		impl := *opts.Implementation
		opts.Implementation = &impl
	}
	if opts.Addr == "" {
		opts.Addr = ":8700"
	}
	if opts.Path == "" {
		opts.Path = "/mcp"
	}
	if opts.Namespace == nil {
		opts.Namespace = ServerPrefixNamespace{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return opts
}
