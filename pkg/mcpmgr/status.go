package mcpmgr

import "fmt"

// StatusKind names a Status variant.
type StatusKind string

const (
	StatusDisabled   StatusKind = "disabled"
	StatusConnecting StatusKind = "connecting"
	StatusConnected  StatusKind = "connected"
	StatusFailed     StatusKind = "failed"
)

// Status is the lifecycle state of a managed server. The set of
// implementations is closed: Disabled, Connecting, Connected and Failed.
type Status interface {
	Kind() StatusKind
	String() string
	isStatus()
}

// Disabled servers hold no handles and see no activity.
type Disabled struct{}

// Connecting is the transient state before a handshake settles. A freshly
// registered enabled server also reports Connecting.
type Connecting struct{}

// Connected servers own a live session and the tools discovered on it.
type Connected struct {
	Tools []ToolDescriptor
}

// Failed servers hold no handles. Err carries the typed cause when one is
// available.
type Failed struct {
	Message string
	Err     error
}

func (Disabled) Kind() StatusKind   { return StatusDisabled }
func (Connecting) Kind() StatusKind { return StatusConnecting }
func (Connected) Kind() StatusKind  { return StatusConnected }
func (Failed) Kind() StatusKind     { return StatusFailed }

func (Disabled) String() string   { return string(StatusDisabled) }
func (Connecting) String() string { return string(StatusConnecting) }
func (c Connected) String() string {
	return fmt.Sprintf("%s (%d tools)", StatusConnected, len(c.Tools))
}
func (f Failed) String() string { return fmt.Sprintf("%s: %s", StatusFailed, f.Message) }

func (Disabled) isStatus()   {}
func (Connecting) isStatus() {}
func (Connected) isStatus()  {}
func (Failed) isStatus()     {}

// Unwrap exposes the typed cause for errors.As on a Failed status wrapped as
// an error by callers.
func (f Failed) Unwrap() error { return f.Err }

func failedWith(err error) Failed {
	return Failed{Message: err.Error(), Err: err}
}

// ToolDescriptor describes one tool advertised by a server. InputSchema is
// passed through untouched.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema any
}

// ServerInfo is a read-only projection of a registry record.
type ServerInfo struct {
	Name      string
	Config    ServerConfig
	Status    Status
	Transport TransportKind
	Enabled   bool
}

// Tools returns the discovered tools when the server is connected.
func (s ServerInfo) Tools() []ToolDescriptor {
	if c, ok := s.Status.(Connected); ok {
		return c.Tools
	}
	return nil
}
