package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *RingtraceClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *RingtraceClient) *Handlers {
	return &Handlers{client: client}
}

// HandleCreateGraph creates a new investigation graph.
func (h *Handlers) HandleCreateGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	description := req.GetString("description", "")

	raw, err := h.client.CreateGraph(ctx, name, description)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create graph: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse graph: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Graph created.\n"+
			"ID: %s\n"+
			"Name: %s\n\n"+
			"Use add_node and add_edge with this graph id to build the investigation.",
		getString(m, "id"), getString(m, "name"))), nil
}

// HandleAddNode adds an entity node to a graph.
func (h *Handlers) HandleAddNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if graphID == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}
	nodeType := req.GetString("type", "")
	if nodeType == "" {
		return mcp.NewToolResultError("type is required"), nil
	}
	nodeID := req.GetString("node_id", "")

	var riskScore *float64
	if raw, ok := req.GetArguments()["risk_score"]; ok {
		if f, ok := raw.(float64); ok {
			riskScore = &f
		}
	}

	var properties map[string]any
	if raw := req.GetArguments()["properties"]; raw != nil {
		if m, ok := raw.(map[string]any); ok {
			properties = m
		}
	}

	raw, err := h.client.AddNode(ctx, graphID, nodeID, nodeType, riskScore, properties)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add node: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse node: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Node added to graph %s.\n", graphID)
	fmt.Fprintf(&sb, "ID: %s\n", getString(m, "id"))
	fmt.Fprintf(&sb, "Type: %s\n", getString(m, "type"))
	if score, ok := getFloat(m, "riskScore"); ok {
		fmt.Fprintf(&sb, "Risk score: %.2f\n", score)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleAddEdge adds a relationship edge to a graph.
func (h *Handlers) HandleAddEdge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if graphID == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}
	source := req.GetString("source", "")
	if source == "" {
		return mcp.NewToolResultError("source is required"), nil
	}
	target := req.GetString("target", "")
	if target == "" {
		return mcp.NewToolResultError("target is required"), nil
	}
	edgeType := req.GetString("type", "")
	if edgeType == "" {
		return mcp.NewToolResultError("type is required"), nil
	}

	var weight *float64
	if raw, ok := req.GetArguments()["weight"]; ok {
		if f, ok := raw.(float64); ok {
			weight = &f
		}
	}

	raw, err := h.client.AddEdge(ctx, graphID, source, target, edgeType, weight)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add edge: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse edge: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Edge added to graph %s.\n"+
			"ID: %s\n"+
			"%s -[%s]-> %s\n",
		graphID, getString(m, "id"), source, edgeType, target)), nil
}

// HandleAnalyzeGraph runs a comprehensive analysis and formats the result.
func (h *Handlers) HandleAnalyzeGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if graphID == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}

	raw, err := h.client.AnalyzeGraph(ctx, graphID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}

	text, err := formatAnalysis(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleDetectRings runs ring detection and formats the rings.
func (h *Handlers) HandleDetectRings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if graphID == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}

	raw, err := h.client.DetectRings(ctx, graphID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Ring detection failed: %v", err)), nil
	}

	var resp struct {
		FraudRings []map[string]any `json:"fraudRings"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse rings: %v", err)), nil
	}

	return mcp.NewToolResultText(formatRings(resp.FraudRings)), nil
}

// HandleDetectCommunities runs community detection and formats the partitions.
func (h *Handlers) HandleDetectCommunities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if graphID == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}

	raw, err := h.client.DetectCommunities(ctx, graphID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Community detection failed: %v", err)), nil
	}

	var resp struct {
		Communities []map[string]any `json:"communities"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse communities: %v", err)), nil
	}

	return mcp.NewToolResultText(formatCommunities(resp.Communities)), nil
}

// HandleGetAnalysis fetches a persisted analysis result.
func (h *Handlers) HandleGetAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	analysisID := req.GetString("analysis_id", "")
	if analysisID == "" {
		return mcp.NewToolResultError("analysis_id is required"), nil
	}

	raw, err := h.client.GetAnalysis(ctx, analysisID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get analysis: %v", err)), nil
	}

	text, err := formatAnalysis(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListGraphs lists investigation graphs.
func (h *Handlers) HandleListGraphs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListGraphs(ctx, status, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list graphs: %v", err)), nil
	}

	text, err := formatGraphList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse graphs: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func formatAnalysis(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analysis %s (graph %s)\n\n", getString(m, "id"), getString(m, "graphId"))

	if stats, ok := m["statistics"].(map[string]any); ok {
		nodes, _ := getFloat(stats, "nodeCount")
		edges, _ := getFloat(stats, "edgeCount")
		components, _ := getFloat(stats, "connectedComponents")
		density, _ := getFloat(stats, "density")
		fmt.Fprintf(&sb, "Structure: %.0f nodes, %.0f edges, %.0f component(s), density %.3f\n",
			nodes, edges, components, density)
	}

	if assessment, ok := m["riskAssessment"].(map[string]any); ok {
		combined, _ := getFloat(assessment, "combinedRisk")
		fmt.Fprintf(&sb, "Risk: %.2f (%s)\n", combined, getString(assessment, "riskLevel"))
		if overall, ok := getFloat(assessment, "overallRisk"); ok {
			ringRisk, _ := getFloat(assessment, "fraudRingRisk")
			communityRisk, _ := getFloat(assessment, "communityRisk")
			fmt.Fprintf(&sb, "  Signals: overall %.2f | rings %.2f | communities %.2f\n",
				overall, ringRisk, communityRisk)
		}
	}

	if rings, ok := m["fraudRings"].([]any); ok {
		sb.WriteString("\n")
		sb.WriteString(formatRings(toMaps(rings)))
	}

	if communities, ok := m["communities"].([]any); ok {
		sb.WriteString("\n")
		sb.WriteString(formatCommunities(toMaps(communities)))
	}

	if recs, ok := m["recommendations"].([]any); ok && len(recs) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, r := range recs {
			if s, ok := r.(string); ok {
				fmt.Fprintf(&sb, "- %s\n", s)
			}
		}
	}

	return sb.String(), nil
}

func formatRings(rings []map[string]any) string {
	if len(rings) == 0 {
		return "No fraud rings detected.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Detected %d fraud ring(s):\n", len(rings))
	for i, ring := range rings {
		risk, _ := getFloat(ring, "riskScore")
		confidence, _ := getFloat(ring, "confidence")
		fmt.Fprintf(&sb, "%d. %s (id %s)\n", i+1, getString(ring, "name"), getString(ring, "id"))
		fmt.Fprintf(&sb, "   Risk %.2f | Confidence %.2f | Members: %s\n",
			risk, confidence, joinStrings(ring["nodeIds"]))
	}
	return sb.String()
}

func formatCommunities(communities []map[string]any) string {
	if len(communities) == 0 {
		return "No communities detected.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Detected %d community partition(s):\n", len(communities))
	for i, community := range communities {
		size, _ := getFloat(community, "size")
		risk, _ := getFloat(community, "riskScore")
		flag := ""
		if suspicious, ok := community["isSuspicious"].(bool); ok && suspicious {
			flag = " [SUSPICIOUS]"
		}
		fmt.Fprintf(&sb, "%d. %s: %.0f members, risk %.2f%s\n",
			i+1, getString(community, "name"), size, risk, flag)
	}
	return sb.String()
}

func formatGraphList(raw json.RawMessage) (string, error) {
	var resp struct {
		Graphs []map[string]any `json:"graphs"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected graphs response format")
	}

	if len(resp.Graphs) == 0 {
		return "No graphs found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d graph(s):\n\n", len(resp.Graphs))
	for i, g := range resp.Graphs {
		fmt.Fprintf(&sb, "%d. %s (id %s)\n", i+1, getString(g, "name"), getString(g, "id"))
		fmt.Fprintf(&sb, "   Status: %s", getString(g, "status"))
		if nodes, ok := getFloat(g, "nodeCount"); ok {
			edges, _ := getFloat(g, "edgeCount")
			fmt.Fprintf(&sb, " | %.0f nodes, %.0f edges", nodes, edges)
		}
		sb.WriteString("\n")
		if desc := getString(g, "description"); desc != "" {
			fmt.Fprintf(&sb, "   %s\n", desc)
		}
	}
	return sb.String(), nil
}

func toMaps(items []any) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// joinStrings renders a []any of node ids as a comma-separated list.
func joinStrings(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
