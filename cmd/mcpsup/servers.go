package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcptool"
)

func newServersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "Connect to every enabled server and show its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.newManager(mcpmgr.ManagerOptions{})
			if err != nil {
				return err
			}
			defer cleanup(mgr)

			results := mgr.ConnectAll(cmd.Context())
			servers := mgr.GetServers()
			printServers(cmd.OutOrStdout(), servers)

			summary := mcptool.Summarize(results, servers)
			for _, notice := range summary.Failures {
				fmt.Fprintln(cmd.ErrOrStderr(), notice)
			}
			if summary.Info != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), summary.Info)
			}
			return nil
		},
	}
}

func printServers(w io.Writer, servers []mcpmgr.ServerInfo) {
	if len(servers) == 0 {
		fmt.Fprintln(w, "No servers configured.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTRANSPORT\tSTATUS\tTOOLS\tDETAIL")
	for _, s := range servers {
		detail := ""
		if failed, ok := s.Status.(mcpmgr.Failed); ok {
			detail = failed.Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Name, s.Transport, s.Status.Kind(), len(s.Tools()), detail)
	}
	_ = tw.Flush()
}

func newToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools [server]",
		Short: "List the tools of every connected server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.newManager(mcpmgr.ManagerOptions{})
			if err != nil {
				return err
			}
			defer cleanup(mgr)

			if len(args) == 1 {
				status, err := mgr.Connect(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if failed, ok := status.(mcpmgr.Failed); ok {
					return fmt.Errorf("%s: %s", args[0], failed.Message)
				}
				for _, st := range mgr.GetAllTools() {
					desc := ""
					if st.Tool.Description != "" {
						desc = " - " + st.Tool.Description
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", st.Tool.Name, desc)
				}
				return nil
			}

			mgr.ConnectAll(cmd.Context())
			res := mcptool.New(mgr, a.logger).Execute(cmd.Context(), mcptool.Params{Action: mcptool.ActionList})
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
}
