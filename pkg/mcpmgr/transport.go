package mcpmgr

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Transport variants reported on a TransportHandle.
const (
	VariantCommand    = "command"
	VariantStreamable = "streamable"
	VariantSSE        = "sse"
)

// TransportHandle is a transport built for one connect attempt.
type TransportHandle struct {
	Kind      TransportKind
	Variant   string
	Transport mcp.Transport
}

// TransportFactory builds a transport from a server configuration. Building
// performs no I/O; processes are spawned and sockets opened only when the
// transport is connected.
type TransportFactory interface {
	Build(name string, cfg ServerConfig) (*TransportHandle, error)
}

// TransportFactoryFunc adapts a function to TransportFactory.
type TransportFactoryFunc func(name string, cfg ServerConfig) (*TransportHandle, error)

func (f TransportFactoryFunc) Build(name string, cfg ServerConfig) (*TransportHandle, error) {
	return f(name, cfg)
}

// HTTPConstructor constructs one HTTP transport family for an endpoint.
type HTTPConstructor struct {
	Variant string
	New     func(endpoint string, client *http.Client) (mcp.Transport, error)
}

// StreamableHTTP constructs the bidirectional streamable HTTP transport.
var StreamableHTTP = HTTPConstructor{
	Variant: VariantStreamable,
	New: func(endpoint string, client *http.Client) (mcp.Transport, error) {
		if err := validateEndpoint(endpoint); err != nil {
			return nil, err
		}
		return &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: client}, nil
	},
}

// LegacySSE constructs the one-directional event-stream transport.
var LegacySSE = HTTPConstructor{
	Variant: VariantSSE,
	New: func(endpoint string, client *http.Client) (mcp.Transport, error) {
		if err := validateEndpoint(endpoint); err != nil {
			return nil, err
		}
		return &mcp.SSEClientTransport{Endpoint: endpoint, HTTPClient: client}, nil
	},
}

// DefaultTransportFactory builds stdio command transports and HTTP transports.
//
// HTTP constructors are tried in order and the first one that constructs
// without error is used. The fallback only covers construction: a transport
// that constructs but later fails to connect is reported as a failed
// handshake and the next constructor is not tried.
type DefaultTransportFactory struct {
	HTTPClient       *http.Client
	HTTPConstructors []HTTPConstructor
	// Environ supplies the ambient environment for subprocesses. Defaults to
	// os.Environ.
	Environ func() []string
}

// NewTransportFactory returns a factory that prefers streamable HTTP and falls
// back to SSE.
func NewTransportFactory(client *http.Client) *DefaultTransportFactory {
	return &DefaultTransportFactory{
		HTTPClient:       client,
		HTTPConstructors: []HTTPConstructor{StreamableHTTP, LegacySSE},
	}
}

func (f *DefaultTransportFactory) Build(name string, cfg ServerConfig) (*TransportHandle, error) {
	switch TransportOf(cfg) {
	case TransportHTTP:
		return f.buildHTTP(name, cfg)
	case TransportStdio:
		return f.buildStdio(cfg), nil
	default:
		return nil, &ConfigError{Server: name, Reason: "config must have either 'url' or 'command'"}
	}
}

func (f *DefaultTransportFactory) buildStdio(cfg ServerConfig) *TransportHandle {
	command, args := splitCommand(cfg.Command, cfg.Args)
	cmd := exec.Command(command, args...) //nolint:gosec // command comes from the operator's config
	if len(cfg.Env) > 0 {
		environ := os.Environ
		if f.Environ != nil {
			environ = f.Environ
		}
		cmd.Env = overlayEnv(environ(), cfg.Env)
	}
	cmd.Dir = cfg.Cwd
	return &TransportHandle{
		Kind:      TransportStdio,
		Variant:   VariantCommand,
		Transport: &mcp.CommandTransport{Command: cmd},
	}
}

func (f *DefaultTransportFactory) buildHTTP(name string, cfg ServerConfig) (*TransportHandle, error) {
	constructors := f.HTTPConstructors
	if len(constructors) == 0 {
		constructors = []HTTPConstructor{StreamableHTTP, LegacySSE}
	}
	client := f.HTTPClient
	if len(cfg.Headers) > 0 {
		client = decorateHTTPClient(client, headersFromMap(cfg.Headers))
	}
	var errs []error
	for _, c := range constructors {
		transport, err := c.New(cfg.URL, client)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Variant, err))
			continue
		}
		return &TransportHandle{Kind: TransportHTTP, Variant: c.Variant, Transport: transport}, nil
	}
	return nil, &ConfigError{Server: name, Reason: errors.Join(errs...).Error()}
}

// splitCommand treats a whitespace-separated command string as command plus
// arguments when no explicit arguments are configured.
func splitCommand(command string, args []string) (string, []string) {
	if len(args) > 0 || !strings.ContainsAny(command, " \t") {
		return command, args
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command, args
	}
	return fields[0], fields[1:]
}

// overlayEnv returns base with overrides applied; an override replaces any
// ambient entry with the same key.
func overlayEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	applied := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			if !applied[key] {
				env = append(env, key+"="+v)
				applied[key] = true
			}
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !applied[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}
