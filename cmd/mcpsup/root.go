package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

// app carries the persistent flags shared by every subcommand.
type app struct {
	configPaths []string
	cwd         string
	verbose     bool

	// transports overrides the default transport factory when set.
	transports mcpmgr.TransportFactory
	logger     *zap.Logger
}

func newRootCmd(transports mcpmgr.TransportFactory) *cobra.Command {
	a := &app{transports: transports}
	root := &cobra.Command{
		Use:   "mcpsup",
		Short: "Supervise MCP servers and call their tools",
		Long: `mcpsup reads server definitions from ~/.config/mcpsup/mcp.json,
.mcpsup/mcp.json and .mcp.json (later files override earlier ones field by
field), connects to every enabled server, and exposes the discovered tools.`,
		Example: `  mcpsup servers                          # Connect and show server status
  mcpsup tools                            # List tools per server
  mcpsup call files read '{"path":"a.txt"}'
  mcpsup serve --addr :8700               # Republish all tools over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(a.verbose)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	root.CompletionOptions.HiddenDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringArrayVarP(&a.configPaths, "config", "c", nil, "Config file to load (repeatable, replaces the default search paths)")
	flags.StringVar(&a.cwd, "cwd", "", "Project directory searched for .mcp.json (defaults to the working directory)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServersCmd(a),
		newToolsCmd(a),
		newCallCmd(a),
		newServeCmd(a),
	)
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func (a *app) searchPaths() ([]string, error) {
	if len(a.configPaths) > 0 {
		for _, path := range a.configPaths {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("config file: %w", err)
			}
		}
		return a.configPaths, nil
	}
	cwd := a.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}
	home, err := os.UserHomeDir()
	if err != nil {
		a.logger.Debug("no home directory, skipping user config", zap.Error(err))
		home = ""
	}
	return mcpconfig.DefaultPaths(home, cwd), nil
}

// newManager loads the configuration and registers every server. The caller
// owns the returned manager and must call Cleanup.
func (a *app) newManager(opts mcpmgr.ManagerOptions) (*mcpmgr.Manager, error) {
	paths, err := a.searchPaths()
	if err != nil {
		return nil, err
	}
	entries, err := mcpconfig.Load(paths, a.logger)
	if err != nil {
		return nil, err
	}
	opts.Logger = a.logger
	if a.transports != nil {
		opts.Transports = a.transports
	}
	mgr := mcpmgr.NewManager(&opts)
	mcpconfig.Register(mgr, entries)
	a.logger.Debug("configuration loaded",
		zap.Strings("paths", paths),
		zap.Int("servers", len(entries)))
	return mgr, nil
}

func cleanup(mgr *mcpmgr.Manager) {
	mgr.Cleanup(context.Background())
}
