package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/feishu-random-wife/internal/api"
	"github.com/devricklin/feishu-random-wife/internal/biz/usecase"
	"github.com/devricklin/feishu-random-wife/internal/conf"
	"github.com/devricklin/feishu-random-wife/internal/data"
	"github.com/devricklin/feishu-random-wife/internal/infra/feishu"
	"github.com/devricklin/feishu-random-wife/internal/infra/openai"
	"github.com/devricklin/feishu-random-wife/internal/server"
	"github.com/devricklin/feishu-random-wife/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.DBPath), 0o755); err != nil {
		log.Fatalf("Failed to create state directory: %v", err)
	}

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.APIQPS)

	var moonshotClient *openai.Client
	if cfg.Moonshot.APIKey != "" {
		moonshotClient = openai.NewClient(cfg.Moonshot.APIKey, cfg.Moonshot.Model, cfg.Moonshot.BaseURL)
		fmt.Println("[WifeBot] Intent classification enabled")
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, moonshotClient, cfg.State.DBPath, cfg.Render.Endpoint, cfg.Feishu.BotName)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	fmt.Printf("[WifeBot] State DB: %s\n", cfg.State.DBPath)
	if repos.Render == nil {
		fmt.Println("[WifeBot] RENDER_ENDPOINT not set, ranking and graph fall back to text")
	}

	// Initialize usecase layer
	gameUC := usecase.NewGameUsecase(repos.State, repos.Message, cfg.Game.ToGameConfig(), nil, nil)
	if err := gameUC.Load(context.Background()); err != nil {
		log.Fatalf("Failed to load game state: %v", err)
	}

	// Initialize service layer
	gameSvc := service.NewGameService(gameUC, repos.Message, repos.Render, repos.Intent, cfg.Game.ToServiceConfig())
	scheduler := service.NewMaintenanceScheduler(gameUC, time.Minute, 6*time.Hour)

	// Initialize HTTP API server for wife-mcp
	apiServer := api.NewServer(gameUC, repos.Message, cfg.API.Port)
	go func() {
		if err := apiServer.Start(); err != nil {
			fmt.Printf("[WifeBot] API server stopped: %v\n", err)
		}
	}()

	// Initialize server
	srv := server.NewFeishuServer(feishuClient, gameSvc, scheduler)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		gameSvc.Close()
		srv.Stop()
		apiServer.Stop()
		if err := repos.State.Close(); err != nil {
			fmt.Printf("[WifeBot] Failed to close state DB: %v\n", err)
		}
		os.Exit(0)
	}()

	fmt.Println("Starting Feishu random wife bot...")
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
