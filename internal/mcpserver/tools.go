package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Ringtrace MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolCreateGraph = mcp.NewTool("create_graph",
	mcp.WithDescription(
		"Create a new fraud investigation graph. "+
			"A graph holds the entities (accounts, merchants, devices, ...) and the "+
			"relationships between them for one investigation. "+
			"Returns the graph id needed by the other tools."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Human-readable name for the investigation (e.g. 'Q3 chargeback ring')")),
	mcp.WithString("description",
		mcp.Description("Optional longer description of what is being investigated")),
)

var ToolAddNode = mcp.NewTool("add_node",
	mcp.WithDescription(
		"Add an entity node to an investigation graph. "+
			"Nodes carry a risk score between 0 and 1; scores above 0.7 mark an entity "+
			"as high risk for ring detection."),
	mcp.WithString("graph_id",
		mcp.Required(),
		mcp.Description("The graph to add the node to")),
	mcp.WithString("type",
		mcp.Required(),
		mcp.Description("Entity type. One of: 'user', 'account', 'transaction', 'device', 'ip', "+
			"'merchant', 'location', 'card', 'bank', 'phone', 'email', 'address', 'company', "+
			"'document', or 'other' for entities that don't fit a named kind.")),
	mcp.WithString("node_id",
		mcp.Description("Optional node id. Generated when omitted. Use your own ids to reference external records.")),
	mcp.WithNumber("risk_score",
		mcp.Description("Risk score between 0.0 and 1.0. Omit to leave the entity unscored.")),
	mcp.WithObject("properties",
		mcp.Description("Arbitrary entity attributes (e.g. {\"country\": \"US\", \"accountAge\": 12})")),
)

var ToolAddEdge = mcp.NewTool("add_edge",
	mcp.WithDescription(
		"Add a relationship edge between two nodes in an investigation graph. "+
			"Edges may reference nodes that have not been added yet; they become "+
			"active once both endpoints exist."),
	mcp.WithString("graph_id",
		mcp.Required(),
		mcp.Description("The graph to add the edge to")),
	mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Source node id")),
	mcp.WithString("target",
		mcp.Required(),
		mcp.Description("Target node id")),
	mcp.WithString("type",
		mcp.Required(),
		mcp.Description("Relationship type. One of: 'transfer', 'login', 'uses', 'owns', 'shares', "+
			"'transacts-with', 'located-at', 'associated-with', 'connected-to', 'belongs-to', "+
			"'calls', 'emails', 'visits', or 'other'.")),
	mcp.WithNumber("weight",
		mcp.Description("Optional edge weight (e.g. transaction amount or connection strength). Defaults to 1.")),
)

var ToolAnalyzeGraph = mcp.NewTool("analyze_graph",
	mcp.WithDescription(
		"Run a comprehensive fraud analysis over a graph: structural statistics, "+
			"fraud ring detection, community detection, and a combined risk assessment "+
			"with recommendations. The result is persisted and can be fetched later "+
			"with get_analysis."),
	mcp.WithString("graph_id",
		mcp.Required(),
		mcp.Description("The graph to analyze")),
)

var ToolDetectRings = mcp.NewTool("detect_rings",
	mcp.WithDescription(
		"Detect fraud rings in a graph: connected clusters of three or more "+
			"high-risk entities (risk score above 0.7). "+
			"Faster than a full analysis when only rings are needed; nothing is persisted."),
	mcp.WithString("graph_id",
		mcp.Required(),
		mcp.Description("The graph to scan for rings")),
)

var ToolDetectCommunities = mcp.NewTool("detect_communities",
	mcp.WithDescription(
		"Partition a graph into communities of densely connected entities. "+
			"Communities whose average risk is elevated are flagged as suspicious. "+
			"Nothing is persisted."),
	mcp.WithString("graph_id",
		mcp.Required(),
		mcp.Description("The graph to partition")),
)

var ToolGetAnalysis = mcp.NewTool("get_analysis",
	mcp.WithDescription(
		"Fetch a previously persisted analysis result by its id "+
			"(returned by analyze_graph)."),
	mcp.WithString("analysis_id",
		mcp.Required(),
		mcp.Description("The analysis result id (e.g. 'analysis-...')")),
)

var ToolListGraphs = mcp.NewTool("list_graphs",
	mcp.WithDescription(
		"List investigation graphs, newest first. "+
			"Use this to find a graph id when you only know the investigation name."),
	mcp.WithString("status",
		mcp.Description("Filter by graph status"),
		mcp.Enum("active", "inactive", "processing", "error")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of graphs to return (default 20)")),
)
