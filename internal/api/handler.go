package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
	"github.com/devricklin/feishu-random-wife/internal/biz/usecase"
)

// GameBackend is the part of the game the API exposes
type GameBackend interface {
	Ranking(ctx context.Context, groupID string) []domain.RankEntry
	TodayRecords(groupID string) []domain.PairingRecord
	ResetCooldowns(ctx context.Context, groupID string) bool
	Stats() usecase.Stats
}

// Server provides the local HTTP API used by wife-mcp and operators
type Server struct {
	game        GameBackend
	messageRepo repo.MessageRepo

	server *http.Server
	port   int
}

// Member represents a chat member
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is a pairing record as served by the API
type Record struct {
	ActorID    string    `json:"user_id"`
	TargetID   string    `json:"wife_id"`
	TargetName string    `json:"wife_name"`
	Timestamp  time.Time `json:"timestamp"`
	Forced     bool      `json:"forced"`
}

// NewServer creates a new API server
func NewServer(game GameBackend, messageRepo repo.MessageRepo, port int) *Server {
	return &Server{
		game:        game,
		messageRepo: messageRepo,
		port:        port,
	}
}

// Handler builds the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Per-group reads and admin actions
	mux.HandleFunc("/api/groups/", s.handleGroup)

	// Store sizes
	mux.HandleFunc("/api/stats", s.handleStats)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server on the loopback interface
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// ============ Group Handlers ============

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/groups/{group_id}/{action}
	path := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	groupID := parts[0]
	switch parts[1] {
	case "ranking":
		s.handleRanking(w, r, groupID)
	case "records":
		s.handleRecords(w, r, groupID)
	case "members":
		s.handleMembers(w, r, groupID)
	case "reset-cooldown":
		s.handleResetCooldown(w, r, groupID)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := s.game.Ranking(r.Context(), groupID)
	if entries == nil {
		entries = []domain.RankEntry{}
	}
	s.writeJSON(w, map[string]interface{}{"group_id": groupID, "ranking": entries})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := ConvertRecords(s.game.TodayRecords(groupID))
	s.writeJSON(w, map[string]interface{}{"group_id": groupID, "records": records})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.messageRepo == nil {
		http.Error(w, "member lookup unavailable", http.StatusServiceUnavailable)
		return
	}

	members, err := s.messageRepo.GetChatMembers(r.Context(), groupID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{"members": ConvertMembers(members)})
}

func (s *Server) handleResetCooldown(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reset := s.game.ResetCooldowns(r.Context(), groupID)
	fmt.Printf("[API] Reset cooldowns for %s: %v\n", groupID, reset)
	s.writeJSON(w, map[string]interface{}{"success": true, "reset": reset})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.game.Stats())
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// ConvertMembers converts domain.Member to api.Member
func ConvertMembers(members []domain.Member) []Member {
	result := make([]Member, len(members))
	for i, m := range members {
		result[i] = Member{ID: m.UserID, Name: m.Name}
	}
	return result
}

// ConvertRecords converts pairing records to their API form
func ConvertRecords(records []domain.PairingRecord) []Record {
	result := make([]Record, len(records))
	for i, r := range records {
		result[i] = Record{
			ActorID:    r.ActorID,
			TargetID:   r.TargetID,
			TargetName: r.TargetName,
			Timestamp:  r.Timestamp,
			Forced:     r.Forced,
		}
	}
	return result
}
