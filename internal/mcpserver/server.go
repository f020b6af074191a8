package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Rugscan tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("rugscan", "1.0.0")
	client := NewRugscanClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolAnalyzeToken, h.HandleAnalyzeToken)
	s.AddTool(ToolGetReport, h.HandleGetReport)
	s.AddTool(ToolListRecentReports, h.HandleListRecentReports)
	s.AddTool(ToolListChains, h.HandleListChains)

	return s
}
