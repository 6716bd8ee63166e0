package mcpmgr

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds the handshake and the tool discovery of a server whose
// configuration omits an explicit timeout.
const DefaultTimeout = 30 * time.Second

// ServerConfig describes one tool-provider server. It is either a subprocess
// (Command, Args, Env, Cwd) or an HTTP endpoint (URL). When URL is set the
// server is reached over HTTP even if Command is also present.
type ServerConfig struct {
	// Stdio transport
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	// HTTP transport
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Enabled defaults to true when nil.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// TimeoutMS is the per-phase connection timeout in milliseconds. Zero
	// falls back to ManagerOptions.DefaultTimeout.
	TimeoutMS int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// LogJSONRPC logs every JSON-RPC message exchanged with this server.
	LogJSONRPC bool `json:"logJsonRpc,omitempty" yaml:"logJsonRpc,omitempty"`
}

// IsEnabled reports the configured enabled flag, defaulting to true.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Timeout returns the configured timeout, or fallback when none is set.
func (c ServerConfig) Timeout(fallback time.Duration) time.Duration {
	if c.TimeoutMS > 0 {
		return time.Duration(c.TimeoutMS) * time.Millisecond
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout
}

// Bool returns a pointer to v, convenient for ServerConfig.Enabled literals.
func Bool(v bool) *bool { return &v }

// ManagerOptions configures a Manager instance.
type ManagerOptions struct {
	// ClientName is advertised to servers during the handshake. Defaults to
	// "mcpsup".
	ClientName string
	// ClientVersion is the semantic version reported to servers.
	ClientVersion string
	// DefaultTimeout applies to servers whose configuration has no timeout.
	DefaultTimeout time.Duration
	// CallTimeout bounds each CallTool invocation. Zero leaves calls bounded
	// only by the caller's context.
	CallTimeout time.Duration
	// LogJSONRPC enables JSON-RPC traffic logging for every server.
	LogJSONRPC bool
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
	// Transports builds transports from configurations. Defaults to
	// NewTransportFactory with HTTPClient.
	Transports TransportFactory
	// HTTPClient is used by the default transport factory.
	HTTPClient *http.Client
	// Dialer performs the handshake over a built transport. Defaults to an
	// mcp.Client connect.
	Dialer Dialer
	// Metrics records connection and call outcomes when non-nil.
	Metrics *Metrics
}

func (o *ManagerOptions) normalized() ManagerOptions {
	if o == nil {
		o = &ManagerOptions{}
	}
	opts := *o
	if opts.ClientName == "" {
		opts.ClientName = "mcpsup"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Transports == nil {
		opts.Transports = NewTransportFactory(opts.HTTPClient)
	}
	return opts
}
