package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Ringtrace tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("ringtrace", "1.0.0")
	client := NewRingtraceClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolCreateGraph, h.HandleCreateGraph)
	s.AddTool(ToolAddNode, h.HandleAddNode)
	s.AddTool(ToolAddEdge, h.HandleAddEdge)
	s.AddTool(ToolAnalyzeGraph, h.HandleAnalyzeGraph)
	s.AddTool(ToolDetectRings, h.HandleDetectRings)
	s.AddTool(ToolDetectCommunities, h.HandleDetectCommunities)
	s.AddTool(ToolGetAnalysis, h.HandleGetAnalysis)
	s.AddTool(ToolListGraphs, h.HandleListGraphs)

	return s
}
