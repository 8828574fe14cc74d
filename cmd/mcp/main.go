// Ringtrace MCP Server - Exposes fraud graph analysis as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/ringtrace/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL: envOrDefault("RINGTRACE_API_URL", "http://localhost:8080"),
		APIKey: os.Getenv("RINGTRACE_API_KEY"),
	}

	// Reads work without a key; mutations (create_graph, add_node, ...)
	// need one unless the API runs in development mode.
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "warning: RINGTRACE_API_KEY not set, mutating tools may be rejected")
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
