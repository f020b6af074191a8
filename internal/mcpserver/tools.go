package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Rugscan MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeToken = mcp.NewTool("analyze_token",
	mcp.WithDescription(
		"Analyze an ERC-20 token contract for rug-pull risk. "+
			"Inspects bytecode capabilities (mint, pause, blacklist), who controls them, "+
			"liquidity depth, and holder concentration, then returns a 0-100 risk score "+
			"with a tier (low/medium/high/extreme) and human-readable signals. "+
			"Waits for the analysis to finish before returning."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("The token contract address (e.g. '0x1234...')")),
	mcp.WithString("chain",
		mcp.Description("Chain to analyze on: 'ethereum' (default) or 'base'"),
		mcp.Enum("ethereum", "base")),
)

var ToolGetReport = mcp.NewTool("get_report",
	mcp.WithDescription(
		"Fetch the stored risk report for a previously analyzed token, regardless of age. "+
			"Use analyze_token instead if you need fresh data."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("The token contract address (e.g. '0x1234...')")),
	mcp.WithString("chain",
		mcp.Description("Chain the token lives on: 'ethereum' (default) or 'base'"),
		mcp.Enum("ethereum", "base")),
)

var ToolListRecentReports = mcp.NewTool("list_recent_reports",
	mcp.WithDescription(
		"List the most recently analyzed tokens with their risk scores and tiers. "+
			"Useful for browsing what the scanner has seen lately."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of reports to return (default 20)")),
)

var ToolListChains = mcp.NewTool("list_chains",
	mcp.WithDescription(
		"List the chains the scanner supports analyzing tokens on."),
)
