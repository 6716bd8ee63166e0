// Command mcpsup loads MCP server definitions from the standard config files,
// supervises the connections, and exposes the tools from the command line or
// through an HTTP gateway.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
