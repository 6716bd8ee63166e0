package mcpmgr

import (
	"errors"
	"fmt"
	"time"
)

// ErrDisconnected is the cause recorded when a live or in-flight connection is
// released by Disconnect.
var ErrDisconnected = errors.New("mcpmgr: disconnected")

// ErrServerRemoved is reported by a connect attempt whose record was removed
// or replaced while it was in flight.
var ErrServerRemoved = errors.New("mcpmgr: server removed while connecting")

// ConfigError reports a configuration that names no transport.
type ConfigError struct {
	Server string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("mcpmgr: invalid config for %q: %s", e.Server, e.Reason)
}

// Connection phases bounded by the server timeout.
const (
	PhaseHandshake     = "handshake"
	PhaseToolDiscovery = "tool discovery"
)

// ConnectTimeoutError reports a phase that outlived the server timeout.
type ConnectTimeoutError struct {
	Server  string
	Phase   string
	Timeout time.Duration
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("mcpmgr: %s timeout for %q after %s", e.Phase, e.Server, e.Timeout)
}

// HandshakeError wraps a failure reported by the protocol client while
// establishing a session.
type HandshakeError struct {
	Server string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("mcpmgr: handshake with %q failed: %v", e.Server, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// ToolDiscoveryError wraps a failed tools/list exchange.
type ToolDiscoveryError struct {
	Server string
	Err    error
}

func (e *ToolDiscoveryError) Error() string {
	return fmt.Sprintf("mcpmgr: list tools on %q failed: %v", e.Server, e.Err)
}

func (e *ToolDiscoveryError) Unwrap() error { return e.Err }

// UnknownServerError reports an operation on a name that is not registered.
type UnknownServerError struct {
	Server string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("mcpmgr: unknown server %q", e.Server)
}

// ToolNotConnectedError reports a call routed to a server that is not
// connected.
type ToolNotConnectedError struct {
	Server string
	Status StatusKind
}

func (e *ToolNotConnectedError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("Server %s not connected", e.Server)
	}
	return fmt.Sprintf("Server %s not connected (%s)", e.Server, e.Status)
}

// ToolInvocationError reports a call that failed, either because the delegate
// returned an error or because the tool itself flagged its result as an error.
type ToolInvocationError struct {
	Server string
	Tool   string
	Err    error
}

func (e *ToolInvocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mcpmgr: tool %s/%s reported an error", e.Server, e.Tool)
	}
	return e.Err.Error()
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }
