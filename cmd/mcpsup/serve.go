package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	mcpgateway "github.com/vikashloomba/mcp-supervisor-go/pkg/mcp-gateway"
	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

type serveOptions struct {
	addr           string
	path           string
	metaTool       bool
	admin          bool
	metrics        bool
	allowedOrigins []string
	jsonResponse   bool
}

func newServeCmd(a *app) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Republish every connected server's tools over Streamable HTTP",
		Long: `serve connects to every enabled server and publishes their tools on one
Streamable MCP endpoint as <server>__<tool>. The published set follows
connection changes. /healthz reports per-server status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, so)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&so.addr, "addr", ":8700", "Listen address")
	flags.StringVar(&so.path, "path", "/mcp", "HTTP path of the MCP endpoint")
	flags.BoolVar(&so.metaTool, "meta-tool", false, `Also publish the "mcp" tool with list, call and server management actions`)
	flags.BoolVar(&so.admin, "admin", false, "Serve POST /servers/{name}/{enable|disable|reconnect}")
	flags.BoolVar(&so.metrics, "metrics", true, "Serve Prometheus metrics on /metrics")
	flags.StringArrayVar(&so.allowedOrigins, "allow-origin", nil, "Allow browser clients from this origin (repeatable)")
	flags.BoolVar(&so.jsonResponse, "json-response", false, "Answer POST requests with JSON instead of an SSE stream")
	return cmd
}

func (a *app) serve(ctx context.Context, so *serveOptions) error {
	var (
		mgrOpts  mcpmgr.ManagerOptions
		gatherer prometheus.Gatherer
	)
	if so.metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		mgrOpts.Metrics = mcpmgr.NewMetrics(reg)
		gatherer = reg
	}
	mgr, err := a.newManager(mgrOpts)
	if err != nil {
		return err
	}
	defer cleanup(mgr)

	gateway, err := mcpgateway.NewGateway(mgr, &mcpgateway.Options{
		Addr:           so.addr,
		Path:           so.path,
		AutoConnect:    true,
		ExposeMetaTool: so.metaTool,
		AdminAPI:       so.admin,
		Logger:         a.logger,
		AllowedOrigins: so.allowedOrigins,
		Gatherer:       gatherer,
		Streamable:     mcp.StreamableHTTPOptions{JSONResponse: so.jsonResponse},
	})
	if err != nil {
		return err
	}
	if err := gateway.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
