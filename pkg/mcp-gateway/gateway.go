package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/modelcontextprotocol/go-sdk/oauthex"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcptool"
)

const protectedResourcePath = "/.well-known/oauth-protected-resource"

// Gateway exposes a Streamable MCP server that republishes the tools of every
// connected server managed by mcpmgr under a single HTTP endpoint.
type Gateway struct {
	manager *mcpmgr.Manager
	opts    Options
	logger  *zap.Logger

	features *featureIndex
	// admin drives the meta tool and the admin routes.
	admin *mcptool.Tool

	server        *mcp.Server
	streamHandler *mcp.StreamableHTTPHandler
	mux           *http.ServeMux
	httpHandler   http.Handler

	serverMu     sync.Mutex
	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// NewGateway builds a Gateway, publishes the current tool snapshot, and keeps
// it current by resynchronizing a server on every status change.
func NewGateway(mgr *mcpmgr.Manager, opts *Options) (*Gateway, error) {
	if mgr == nil {
		return nil, fmt.Errorf("mcpgateway: manager is required")
	}
	options := opts.withDefaults()
	if options.TokenOptions != nil && options.TokenVerifier == nil {
		return nil, fmt.Errorf("mcpgateway: TokenOptions require a TokenVerifier")
	}
	g := &Gateway{
		manager:  mgr,
		opts:     options,
		logger:   options.Logger.With(zap.String("component", "mcpgateway")),
		features: newFeatureIndex(options.Namespace),
	}

	g.server = mcp.NewServer(options.Implementation, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{Tools: &mcp.ToolCapabilities{ListChanged: true}},
	})
	g.admin = mcptool.New(mgr, options.Logger)
	g.streamHandler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return g.server
	}, &options.Streamable)
	g.httpHandler = g.mountHandler()

	mgr.OnStatusChange(func(name string, _ mcpmgr.Status) {
		g.SyncServer(name)
	})
	if options.AutoConnect {
		results := mgr.ConnectAll(context.Background())
		summary := mcptool.Summarize(results, mgr.GetServers())
		for _, notice := range summary.Failures {
			g.logger.Warn(notice)
		}
		if summary.Info != "" {
			g.logger.Info(summary.Info)
		}
	}
	g.SyncAll()

	return g, nil
}

// Handler exposes the HTTP handler that serves the Streamable endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.httpHandler
}

// ServeMux exposes the router behind Handler so callers can add routes.
func (g *Gateway) ServeMux() *http.ServeMux {
	return g.mux
}

// ListenAndServe runs an HTTP server until the provided context is cancelled or
// the server stops.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	g.httpServerMu.Lock()
	if g.httpServer != nil {
		serv := g.httpServer
		g.httpServerMu.Unlock()
		return fmt.Errorf("mcpgateway: server already running on %s", serv.Addr)
	}
	srv := &http.Server{Addr: g.opts.Addr, Handler: g.Handler()}
	g.httpServer = srv
	g.httpServerMu.Unlock()
	defer func() {
		g.httpServerMu.Lock()
		if g.httpServer == srv {
			g.httpServer = nil
		}
		g.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	g.logger.Info("gateway listening", zap.String("addr", g.opts.Addr), zap.String("path", g.opts.Path))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.opts.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()
	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

// SyncAll republishes every server and withdraws servers that are gone.
func (g *Gateway) SyncAll() {
	g.serverMu.Lock()
	defer g.serverMu.Unlock()

	known := make(map[string]bool)
	for _, info := range g.manager.GetServers() {
		known[info.Name] = true
		g.applyLocked(info.Name, info.Tools())
	}
	for _, id := range g.features.Servers() {
		if !known[id] {
			g.applyLocked(id, nil)
		}
	}
	g.refreshMetaLocked()
}

// SyncServer republishes the tools of one server. A server that is not
// connected, or no longer registered, has its tools withdrawn.
func (g *Gateway) SyncServer(name string) {
	g.serverMu.Lock()
	defer g.serverMu.Unlock()
	// Read under serverMu so concurrent syncs of one name apply in the order
	// the manager recorded them.
	var tools []mcpmgr.ToolDescriptor
	if info, ok := g.manager.GetServer(name); ok {
		tools = info.Tools()
	}
	g.applyLocked(name, tools)
	g.refreshMetaLocked()
}

func (g *Gateway) applyLocked(serverID string, tools []mcpmgr.ToolDescriptor) {
	removed, added := g.features.UpdateTools(serverID, tools)
	if len(removed) == 0 && len(added) == 0 {
		return
	}
	if len(removed) > 0 {
		g.server.RemoveTools(removed...)
	}
	for _, reg := range added {
		g.server.AddTool(reg.Tool, g.makeToolHandler(reg.Target))
	}
	g.logger.Debug("tools synchronized",
		zap.String("server", serverID),
		zap.Int("removed", len(removed)),
		zap.Int("added", len(added)))
}

func (g *Gateway) refreshMetaLocked() {
	if !g.opts.ExposeMetaTool {
		return
	}
	g.server.AddTool(&mcp.Tool{
		Name:        mcptool.Name,
		Description: g.admin.Description(),
		InputSchema: mcptool.InputSchema(),
	}, g.handleMetaTool)
}

func (g *Gateway) makeToolHandler(target toolTarget) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args any
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			args = req.Params.Arguments
		}
		res := g.manager.CallTool(ctx, target.ServerID, target.NativeName, args)
		return &mcp.CallToolResult{Content: res.Content, IsError: res.IsError}, nil
	}
}

func (g *Gateway) handleMetaTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params mcptool.Params
	if req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "invalid arguments: " + err.Error()}},
				IsError: true,
			}, nil
		}
	}
	res := g.admin.Execute(ctx, params)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
		IsError: !res.Details.Success,
	}, nil
}

func (g *Gateway) mountHandler() http.Handler {
	path := g.opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	protect := func(h http.Handler) http.Handler { return h }
	if g.opts.TokenVerifier != nil {
		protect = auth.RequireBearerToken(g.opts.TokenVerifier, g.opts.TokenOptions)
	}
	endpoint := protect(g.streamHandler)

	mux := http.NewServeMux()
	mux.Handle(path, endpoint)
	if !strings.HasSuffix(path, "/") {
		mux.Handle(path+"/", endpoint)
	}
	if g.opts.TokenVerifier != nil && g.opts.AuthorizationServer != "" {
		mux.HandleFunc(protectedResourcePath, func(w http.ResponseWriter, r *http.Request) {
			auth.ProtectedResourceMetadataHandler(g.resourceMetadata(r, path)).ServeHTTP(w, r)
		})
	}
	if g.opts.Gatherer != nil {
		mux.Handle(g.opts.MetricsPath, promhttp.HandlerFor(g.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", g.serveHealth)
	if g.opts.AdminAPI {
		mux.Handle("POST /servers/{name}/{action}", protect(http.HandlerFunc(g.serveAdmin)))
	}
	g.mux = mux

	if len(g.opts.AllowedOrigins) == 0 {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins: g.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Mcp-Session-Id", "WWW-Authenticate"},
	}).Handler(mux)
}

func (g *Gateway) resourceMetadata(r *http.Request, path string) *oauthex.ProtectedResourceMetadata {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	md := &oauthex.ProtectedResourceMetadata{
		Resource:               scheme + "://" + r.Host + path,
		AuthorizationServers:   []string{g.opts.AuthorizationServer},
		BearerMethodsSupported: []string{"header"},
	}
	if g.opts.TokenOptions != nil {
		md.ScopesSupported = g.opts.TokenOptions.Scopes
	}
	return md
}

type healthServer struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Tools  int    `json:"tools"`
	Error  string `json:"error,omitempty"`
}

func (g *Gateway) serveHealth(w http.ResponseWriter, _ *http.Request) {
	servers := g.manager.GetServers()
	body := struct {
		Servers []healthServer `json:"servers"`
	}{Servers: make([]healthServer, 0, len(servers))}
	for _, s := range servers {
		hs := healthServer{Name: s.Name, Status: string(s.Status.Kind()), Tools: len(s.Tools())}
		if failed, ok := s.Status.(mcpmgr.Failed); ok {
			hs.Error = failed.Message
		}
		body.Servers = append(body.Servers, hs)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Warn("write health response", zap.Error(err))
	}
}

// serveAdmin runs enable, disable or reconnect for one server and answers
// with the action details. 502 means the server did not reach the requested
// state.
func (g *Gateway) serveAdmin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	action := mcptool.Action(r.PathValue("action"))
	switch action {
	case mcptool.ActionEnable, mcptool.ActionDisable, mcptool.ActionReconnect:
	default:
		http.Error(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
		return
	}
	if _, ok := g.manager.GetServer(name); !ok {
		http.Error(w, fmt.Sprintf("unknown server %q", name), http.StatusNotFound)
		return
	}

	res := g.admin.Execute(r.Context(), mcptool.Params{Action: action, Server: name})
	code := http.StatusOK
	if !res.Details.Success {
		code = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(res.Details); err != nil {
		g.logger.Warn("write admin response", zap.Error(err))
	}
}
