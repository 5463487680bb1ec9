package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/feishu-random-wife/internal/mcp"
)

const usage = `Usage: wife-admin <command> [group_id]

Commands:
  stats                     show store sizes
  ranking <group_id>        show the 30-day forced marriage ranking
  records <group_id>        show today's pairing records
  reset-cooldown <group_id> clear the group's forced marriage cooldowns`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	baseURL := os.Getenv("WIFEBOT_API_URL")
	if baseURL == "" {
		port := os.Getenv("API_PORT")
		if port == "" {
			port = "9877"
		}
		baseURL = fmt.Sprintf("http://127.0.0.1:%s", port)
	}

	client := mcp.NewClient(baseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		result interface{}
		err    error
	)
	switch cmd := os.Args[1]; cmd {
	case "stats":
		result, err = client.GetStats(ctx)
	case "ranking", "records", "reset-cooldown":
		if len(os.Args) < 3 {
			fmt.Println(usage)
			os.Exit(1)
		}
		groupID := os.Args[2]
		switch cmd {
		case "ranking":
			result, err = client.GetRanking(ctx, groupID)
		case "records":
			result, err = client.GetRecords(ctx, groupID)
		default:
			var reset bool
			reset, err = client.ResetCooldown(ctx, groupID)
			result = map[string]bool{"reset": reset}
		}
	default:
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}
