package mcpmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ToolSession is the slice of a protocol client session the manager uses.
// *mcp.ClientSession satisfies it.
type ToolSession interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer performs the handshake over transport. ctx stays alive for as long
// as the returned session is owned by the manager.
type Dialer func(ctx context.Context, name string, transport mcp.Transport) (ToolSession, error)

// StatusHandler observes recorded status transitions.
type StatusHandler func(name string, status Status)

// Manager supervises a set of named servers. Operations on different names
// never wait on each other.
type Manager struct {
	opts     ManagerOptions
	logger   *zap.Logger
	registry *registry

	hooksMu     sync.RWMutex
	statusHooks []StatusHandler

	// closesMu guards closes, the background closes started by AddServer
	// that Cleanup waits for.
	closesMu sync.Mutex
	closes   []chan struct{}
}

// NewManager constructs a Manager. Servers are added with AddServer; nothing
// is dialed until Connect or ConnectAll.
func NewManager(opts *ManagerOptions) *Manager {
	options := opts.normalized()
	return &Manager{
		opts:     options,
		logger:   options.Logger.With(zap.String("component", "mcpmgr")),
		registry: newRegistry(),
	}
}

// AddServer registers cfg under name without any I/O. The initial status is
// Connecting when cfg is enabled and Disabled otherwise. Replacing a name that
// still owns a session closes that session in the background and abandons any
// connect attempt in flight for it.
func (m *Manager) AddServer(name string, cfg ServerConfig) {
	rec, conn, attempt := m.registry.put(name, cfg)
	if attempt != nil {
		attempt.abort()
	}
	if conn != nil {
		done := m.trackClose()
		go func() {
			defer close(done)
			m.release(context.Background(), name, conn)
		}()
	}
	m.logger.Debug("server registered",
		zap.String("server", name),
		zap.String("transport", string(TransportOf(cfg))),
		zap.Bool("enabled", rec.enabled))
	m.statusChanged(name, rec.status)
}

// GetServer returns the projection of name.
func (m *Manager) GetServer(name string) (ServerInfo, bool) {
	rec, ok := m.registry.get(name)
	if !ok {
		return ServerInfo{}, false
	}
	return rec.info(), true
}

// GetServers returns every server in registration order.
func (m *Manager) GetServers() []ServerInfo {
	recs := m.registry.snapshot()
	out := make([]ServerInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.info())
	}
	return out
}

// ListServers returns the registered names in registration order.
func (m *Manager) ListServers() []string {
	return m.registry.names()
}

// OnStatusChange registers a handler invoked after every recorded transition.
// Handlers run without any manager lock held.
func (m *Manager) OnStatusChange(handler StatusHandler) {
	if handler == nil {
		return
	}
	m.hooksMu.Lock()
	m.statusHooks = append(m.statusHooks, handler)
	m.hooksMu.Unlock()
}

// Connect dials name and discovers its tools. The returned error is non-nil
// only for an unknown name; every connection failure is reported as a Failed
// status. A disabled server returns Disabled without building a transport.
func (m *Manager) Connect(ctx context.Context, name string) (Status, error) {
	// Streams opened during the handshake are bound to opCtx, so it must
	// outlive ctx once the session is owned by the registry.
	opCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	start, err := m.registry.begin(name, abort)
	if err != nil {
		abort()
		return nil, err
	}
	if start.disabled {
		abort()
		return Disabled{}, nil
	}
	logger := m.logger.With(zap.String("server", name), zap.String("attempt", start.id))
	logger.Debug("connecting")
	m.statusChanged(name, Connecting{})
	if start.replaced != nil {
		start.replaced.abort()
	}
	if start.previous != nil {
		m.release(ctx, name, start.previous)
	}

	began := time.Now()
	status, conn := m.establish(ctx, opCtx, abort, logger, name, start.config)
	recorded, ok := m.registry.finish(name, start.id, status, conn)
	if !ok {
		logger.Debug("connect attempt superseded", zap.Stringer("status", recorded))
		if conn != nil {
			m.release(context.Background(), name, conn)
		} else {
			abort()
		}
		return recorded, nil
	}
	m.opts.Metrics.observeConnect(name, status, time.Since(began))
	switch s := status.(type) {
	case Connected:
		logger.Info("connected",
			zap.String("transport", conn.transport.Variant),
			zap.Int("tools", len(s.Tools)),
			zap.Duration("elapsed", time.Since(began)))
	case Failed:
		logger.Warn("connect failed", zap.String("error", s.Message))
	}
	m.statusChanged(name, status)
	return status, nil
}

// establish runs the handshake and tool discovery, each raced against the
// server timeout. It returns handles only with a Connected status.
func (m *Manager) establish(ctx, opCtx context.Context, abort func(), logger *zap.Logger, name string, cfg ServerConfig) (Status, *handles) {
	handle, err := m.opts.Transports.Build(name, cfg)
	if err != nil {
		abort()
		return failedWith(err), nil
	}
	transport := handle.Transport
	if cfg.LogJSONRPC || m.opts.LogJSONRPC {
		transport = &loggingTransport{delegate: transport, logger: logger}
	}
	timeout := cfg.Timeout(m.opts.DefaultTimeout)

	session, err := race(ctx, timeout, abort, func() (ToolSession, error) {
		return m.dial(opCtx, name, transport)
	}, func(late ToolSession) {
		logger.Debug("closing session that completed after the handshake timeout")
		m.closeSession(logger, late)
	})
	if err != nil {
		abort()
		return failedWith(phaseError(name, PhaseHandshake, timeout, err)), nil
	}

	tools, err := race(ctx, timeout, abort, func() ([]ToolDescriptor, error) {
		return listAllTools(opCtx, session)
	}, nil)
	if err != nil {
		m.closeSession(logger, session)
		abort()
		return failedWith(phaseError(name, PhaseToolDiscovery, timeout, err)), nil
	}
	return Connected{Tools: tools}, &handles{session: session, transport: handle, release: abort}
}

func (m *Manager) dial(ctx context.Context, name string, transport mcp.Transport) (ToolSession, error) {
	if m.opts.Dialer != nil {
		return m.opts.Dialer(ctx, name, transport)
	}
	client := mcp.NewClient(&mcp.Implementation{
		Name:    m.opts.ClientName,
		Version: m.opts.ClientVersion,
	}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func phaseError(name, phase string, timeout time.Duration, err error) error {
	if errors.Is(err, errRaceTimeout) {
		return &ConnectTimeoutError{Server: name, Phase: phase, Timeout: timeout}
	}
	if phase == PhaseToolDiscovery {
		return &ToolDiscoveryError{Server: name, Err: err}
	}
	return &HandshakeError{Server: name, Err: err}
}

// listAllTools follows pagination until the server stops returning a cursor.
// A server that does not implement tools/list has no tools.
func listAllTools(ctx context.Context, session ToolSession) ([]ToolDescriptor, error) {
	tools := []ToolDescriptor{}
	params := &mcp.ListToolsParams{}
	seen := make(map[string]bool)
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			if isMethodUnavailableError(err) {
				return tools, nil
			}
			return nil, err
		}
		for _, tool := range res.Tools {
			if tool == nil {
				continue
			}
			tools = append(tools, ToolDescriptor{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}
		if res.NextCursor == "" {
			return tools, nil
		}
		if seen[res.NextCursor] {
			return nil, fmt.Errorf("mcpmgr: tools/list cursor %q repeated", res.NextCursor)
		}
		seen[res.NextCursor] = true
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

// isMethodUnavailableError reports a server without tools support. A
// JSON-RPC error decides by its code; other errors fall back to the text.
func isMethodUnavailableError(err error) bool {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == jsonrpc.CodeMethodNotFound
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "method not found") ||
		strings.Contains(lower, "not implemented") ||
		strings.Contains(lower, "unimplemented")
}

// ConnectAll connects every registered server concurrently and waits for all
// of them, whatever their outcome.
func (m *Manager) ConnectAll(ctx context.Context) map[string]Status {
	names := m.registry.names()
	results := make(map[string]Status, len(names))
	var mu sync.Mutex
	var g errgroup.Group
	for _, name := range names {
		g.Go(func() error {
			status, err := m.Connect(ctx, name)
			if err != nil {
				// Removed after the names were listed.
				return nil
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Disconnect releases the session owned by name, if any, and abandons any
// connect attempt in flight for it. Close errors are logged and swallowed.
// A connected or connecting server becomes Failed with ErrDisconnected;
// Disabled and Failed servers keep their status. The returned error is
// non-nil only for an unknown name.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	conn, attempt, status, changed, err := m.registry.detach(name)
	if err != nil {
		return err
	}
	if attempt != nil {
		attempt.abort()
	}
	if changed {
		m.logger.Debug("disconnected", zap.String("server", name))
		m.statusChanged(name, status)
	}
	if conn != nil {
		m.release(ctx, name, conn)
	}
	return nil
}

// SetEnabled toggles name. Enabling a Disabled server connects it; disabling
// a server that is not Disabled releases its session and forces Disabled.
// Any other combination only records the flag.
func (m *Manager) SetEnabled(ctx context.Context, name string, enabled bool) (Status, error) {
	if enabled {
		wasDisabled, err := m.registry.enable(name)
		if err != nil {
			return nil, err
		}
		if wasDisabled {
			return m.Connect(ctx, name)
		}
		rec, ok := m.registry.get(name)
		if !ok {
			return nil, &UnknownServerError{Server: name}
		}
		return rec.status, nil
	}
	conn, attempt, changed, err := m.registry.disable(name)
	if err != nil {
		return nil, err
	}
	if attempt != nil {
		attempt.abort()
	}
	if conn != nil {
		m.release(ctx, name, conn)
	}
	if changed {
		m.logger.Info("server disabled", zap.String("server", name))
		m.statusChanged(name, Disabled{})
	}
	return Disabled{}, nil
}

// Cleanup disconnects every server concurrently, then empties the registry.
// Connect attempts still in flight are abandoned; their sessions are closed
// by the attempts themselves once they settle.
func (m *Manager) Cleanup(ctx context.Context) {
	names := m.registry.names()
	var g errgroup.Group
	for _, name := range names {
		g.Go(func() error {
			if err := m.Disconnect(ctx, name); err != nil {
				m.logger.Debug("cleanup skipped server", zap.String("server", name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	conns, attempts := m.registry.clear()
	for _, attempt := range attempts {
		attempt.abort()
	}
	for _, conn := range conns {
		m.release(ctx, "", conn)
	}
	m.awaitCloses(ctx)
	for _, name := range names {
		m.opts.Metrics.forget(name)
	}
	m.logger.Debug("cleanup complete", zap.Int("servers", len(names)))
}

// trackClose registers a background close. AddServer may call it while
// Cleanup is waiting; closes registered after the wait began are not waited
// for.
func (m *Manager) trackClose() chan struct{} {
	done := make(chan struct{})
	m.closesMu.Lock()
	defer m.closesMu.Unlock()
	live := m.closes[:0]
	for _, ch := range m.closes {
		select {
		case <-ch:
		default:
			live = append(live, ch)
		}
	}
	m.closes = append(live, done)
	return done
}

func (m *Manager) awaitCloses(ctx context.Context) {
	m.closesMu.Lock()
	pending := m.closes
	m.closes = nil
	m.closesMu.Unlock()
	for _, ch := range pending {
		select {
		case <-ch:
		case <-ctx.Done():
			m.logger.Warn("background close still pending after context ended", zap.Error(ctx.Err()))
			return
		}
	}
}

// release closes a session, bounded by ctx. A close still running when ctx
// ends keeps running in the background.
func (m *Manager) release(ctx context.Context, name string, conn *handles) {
	logger := m.logger
	if name != "" {
		logger = logger.With(zap.String("server", name))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.closeSession(logger, conn.session)
		if conn.release != nil {
			conn.release()
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("close still pending after context ended", zap.Error(ctx.Err()))
	}
}

func (m *Manager) closeSession(logger *zap.Logger, session ToolSession) {
	if session == nil {
		return
	}
	if err := session.Close(); err != nil {
		logger.Warn("close failed", zap.Error(err))
	}
}

func (m *Manager) statusChanged(name string, status Status) {
	m.opts.Metrics.setState(name, status)
	m.hooksMu.RLock()
	hooks := append([]StatusHandler(nil), m.statusHooks...)
	m.hooksMu.RUnlock()
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("status handler panicked", zap.String("server", name), zap.Any("panic", r))
				}
			}()
			h(name, status)
		}()
	}
}
