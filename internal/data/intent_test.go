package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devricklin/feishu-random-wife/internal/infra/openai"
)

func TestParseIntent(t *testing.T) {
	actions := []string{"draw_wife", "force_marry"}

	tests := []struct {
		resp string
		want string
	}{
		{"draw_wife", "draw_wife"},
		{"  `force_marry`\n", "force_marry"},
		{"NONE", ""},
		{"reset_records", ""},
		{"I think draw_wife", ""},
	}
	for _, tt := range tests {
		if got := parseIntent(tt.resp, actions); got != tt.want {
			t.Errorf("parseIntent(%q) = %q, want %q", tt.resp, got, tt.want)
		}
	}
}

func TestBuildIntentPrompt(t *testing.T) {
	prompt := buildIntentPrompt("WifeBot", []string{"draw_wife", "custom"})

	if !strings.Contains(prompt, "WifeBot") || !strings.Contains(prompt, "- draw_wife:") || !strings.Contains(prompt, "- custom: custom") {
		t.Errorf("Unexpected prompt:\n%s", prompt)
	}
}

func TestIntentRepo_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   "test",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": "rbq_ranking"}, "finish_reason": "stop"}},
		})
	}))
	defer server.Close()

	r := NewIntentRepo(openai.NewClient("key", "test", server.URL+"/v1"), "WifeBot")

	action, err := r.Classify(context.Background(), "看看谁最受欢迎", []string{"draw_wife", "rbq_ranking"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if action != "rbq_ranking" {
		t.Errorf("Expected rbq_ranking, got %q", action)
	}
}

func TestNewIntentRepo_NilClient(t *testing.T) {
	if NewIntentRepo(nil, "x") != nil {
		t.Error("Expected nil repo without a client")
	}
}
