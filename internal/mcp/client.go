package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the HTTP client for the wifebot admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Member represents a chat member
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RankEntry is one row of the popularity ranking
type RankEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// Record is one pairing record of today
type Record struct {
	ActorID    string    `json:"user_id"`
	TargetID   string    `json:"wife_id"`
	TargetName string    `json:"wife_name"`
	Timestamp  time.Time `json:"timestamp"`
	Forced     bool      `json:"forced"`
}

// Stats are the store sizes reported by the bot
type Stats struct {
	Date           string `json:"date"`
	LedgerGroups   int    `json:"ledger_groups"`
	LedgerEntries  int    `json:"ledger_entries"`
	Records        int    `json:"records"`
	Cooldowns      int    `json:"cooldowns"`
	PopularTargets int    `json:"popular_targets"`
}

// ============ Groups ============

// GetRanking gets a group's popularity ranking
func (c *Client) GetRanking(ctx context.Context, groupID string) ([]RankEntry, error) {
	var result struct {
		Ranking []RankEntry `json:"ranking"`
	}
	if err := c.get(ctx, groupPath(groupID, "ranking"), &result); err != nil {
		return nil, err
	}
	return result.Ranking, nil
}

// GetRecords gets a group's pairing records for today
func (c *Client) GetRecords(ctx context.Context, groupID string) ([]Record, error) {
	var result struct {
		Records []Record `json:"records"`
	}
	if err := c.get(ctx, groupPath(groupID, "records"), &result); err != nil {
		return nil, err
	}
	return result.Records, nil
}

// GetMembers gets a group's current members
func (c *Client) GetMembers(ctx context.Context, groupID string) ([]Member, error) {
	var result struct {
		Members []Member `json:"members"`
	}
	if err := c.get(ctx, groupPath(groupID, "members"), &result); err != nil {
		return nil, err
	}
	return result.Members, nil
}

// ResetCooldown clears a group's forced marriage cooldowns. Returns false if nobody was cooling down.
func (c *Client) ResetCooldown(ctx context.Context, groupID string) (bool, error) {
	var result struct {
		Reset bool `json:"reset"`
	}
	if err := c.post(ctx, groupPath(groupID, "reset-cooldown"), struct{}{}, &result); err != nil {
		return false, err
	}
	return result.Reset, nil
}

// ============ Stats ============

// GetStats gets the store sizes
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ============ HTTP Helpers ============

func groupPath(groupID, action string) string {
	return "/api/groups/" + url.PathEscape(groupID) + "/" + action
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
