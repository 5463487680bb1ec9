package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/devricklin/feishu-random-wife/internal/mcp"
)

const version = "v1.0.0"

// wife-mcp serves the game's read-only tools over MCP stdio.
// It reads from the admin API of a running wifebot.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	baseURL := os.Getenv("WIFEBOT_API_URL")
	if baseURL == "" {
		port := os.Getenv("API_PORT")
		if port == "" {
			port = "9877"
		}
		baseURL = fmt.Sprintf("http://127.0.0.1:%s", port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.NewHandler(mcp.NewClient(baseURL)), version)

	// stdout carries the protocol, so diagnostics go to stderr
	fmt.Fprintf(os.Stderr, "[wife-mcp] Serving tools for %s\n", baseURL)
	if err := mcp.Run(ctx, server); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
