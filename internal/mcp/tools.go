package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names
const (
	ToolRanking      = "wife_ranking"
	ToolTodayRecords = "wife_today_records"
	ToolLedgerStats  = "wife_ledger_stats"
)

// NewServer creates an MCP server exposing the read-only game tools
func NewServer(handler *Handler, version string) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "wife-tools",
		Version: version,
	}, nil)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolRanking,
		Description: "Get the 30-day forced marriage (rbq) ranking of a group: top 10 members with dense ranks and counts.",
	}, handler.Ranking)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolTodayRecords,
		Description: "Get today's random wife pairing records of a group, including forced ones.",
	}, handler.TodayRecords)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolLedgerStats,
		Description: "Get the sizes of the activity ledger, record, cooldown and popularity stores.",
	}, handler.LedgerStats)

	return server
}

// Run serves the MCP server over stdio until ctx is done
func Run(ctx context.Context, server *sdkmcp.Server) error {
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}
