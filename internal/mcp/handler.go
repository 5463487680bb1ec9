package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler serves MCP tool calls through the API client
type Handler struct {
	client *Client
}

// NewHandler creates a new MCP handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// GroupInput names the group a tool works on
type GroupInput struct {
	GroupID string `json:"group_id" jsonschema:"The Feishu chat_id of the group"`
}

// RankingOutput is the result of wife_ranking
type RankingOutput struct {
	GroupID string      `json:"group_id"`
	Ranking []RankEntry `json:"ranking"`
	Note    string      `json:"note,omitempty"`
}

// RecordsOutput is the result of wife_today_records
type RecordsOutput struct {
	GroupID string   `json:"group_id"`
	Records []Record `json:"records"`
	Names   []Member `json:"names,omitempty"`
}

// StatsInput takes no arguments
type StatsInput struct{}

// StatsOutput is the result of wife_ledger_stats
type StatsOutput struct {
	Stats Stats `json:"stats"`
}

// Ranking returns a group's 30-day forced marriage ranking
func (h *Handler) Ranking(ctx context.Context, req *sdkmcp.CallToolRequest, input GroupInput) (*sdkmcp.CallToolResult, RankingOutput, error) {
	if input.GroupID == "" {
		return nil, RankingOutput{}, fmt.Errorf("group_id is required")
	}
	ranking, err := h.client.GetRanking(ctx, input.GroupID)
	if err != nil {
		return nil, RankingOutput{}, err
	}

	out := RankingOutput{GroupID: input.GroupID, Ranking: ranking}
	if len(ranking) == 0 {
		out.Note = "Nobody was force-married in this group in the last 30 days"
	}
	return nil, out, nil
}

// TodayRecords returns today's pairing records of a group, with member names when available
func (h *Handler) TodayRecords(ctx context.Context, req *sdkmcp.CallToolRequest, input GroupInput) (*sdkmcp.CallToolResult, RecordsOutput, error) {
	if input.GroupID == "" {
		return nil, RecordsOutput{}, fmt.Errorf("group_id is required")
	}
	records, err := h.client.GetRecords(ctx, input.GroupID)
	if err != nil {
		return nil, RecordsOutput{}, err
	}

	out := RecordsOutput{GroupID: input.GroupID, Records: records}
	if len(records) > 0 {
		// Names are best effort
		if members, err := h.client.GetMembers(ctx, input.GroupID); err == nil {
			out.Names = members
		}
	}
	return nil, out, nil
}

// LedgerStats returns the bot's store sizes
func (h *Handler) LedgerStats(ctx context.Context, req *sdkmcp.CallToolRequest, input StatsInput) (*sdkmcp.CallToolResult, StatsOutput, error) {
	stats, err := h.client.GetStats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{Stats: *stats}, nil
}
