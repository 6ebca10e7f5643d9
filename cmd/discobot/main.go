// Command discobot runs the assistant as an interactive console chat.
// Each line of input becomes one turn on a single conversation thread;
// replies are chunked the same way the Discord frontend chunks them.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bpafoshizle/discogs"
	"github.com/bpafoshizle/discogs/frontend/discord"
	"github.com/bpafoshizle/discogs/internal/app"
	"github.com/bpafoshizle/discogs/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("DISCOGS_CONFIG"), "path to TOML config")
		threadID   = flag.String("thread", "console", "conversation thread id")
		userID     = flag.String("user", "console-user", "user id for memory scoping")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, *threadID, *userID, logger); err != nil {
		logger.Error("discobot exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath, threadID, userID string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(configPath)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Init(ctx); err != nil {
		return err
	}

	logger.Info("discobot ready", "providers", a.Assistant.Providers(), "thread", threadID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Print("> ")
	for scanner.Scan() {
		input := scanner.Text()
		if input == "" {
			fmt.Print("> ")
			continue
		}

		reply := a.Assistant.Call(ctx, discogs.CallRequest{
			Input:    input,
			ThreadID: threadID,
			UserID:   userID,
		})
		for _, chunk := range discord.Split(reply) {
			fmt.Println(chunk)
		}
		fmt.Print("> ")

		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}
