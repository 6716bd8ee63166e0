package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcptool"
)

func newCallCmd(a *app) *cobra.Command {
	var timeout int
	cmd := &cobra.Command{
		Use:   "call <server> <tool> [json-arguments]",
		Short: "Call one tool on one server",
		Example: `  mcpsup call files read '{"path":"README.md"}'
  mcpsup call search query '{"q":"golang"}' --timeout 5000`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]any
			if len(args) == 3 {
				if err := json.Unmarshal([]byte(args[2]), &params); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}

			opts := mcpmgr.ManagerOptions{}
			if timeout > 0 {
				opts.CallTimeout = msDuration(timeout)
			}
			mgr, err := a.newManager(opts)
			if err != nil {
				return err
			}
			defer cleanup(mgr)

			// CallTool reports connection failures itself.
			if _, err := mgr.Connect(cmd.Context(), args[0]); err != nil {
				a.logger.Debug("connect failed", zap.String("server", args[0]), zap.Error(err))
			}
			res := mcptool.New(mgr, a.logger).Execute(cmd.Context(), mcptool.Params{
				Action:    mcptool.ActionCall,
				Server:    args[0],
				Tool:      args[1],
				Arguments: params,
			})
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			if !res.Details.Success {
				return errors.New("tool call failed")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Tool call timeout in milliseconds (0 waits indefinitely)")
	return cmd
}
