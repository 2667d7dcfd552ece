// Command ask sends a single prompt through the completion gateway using the
// server's configuration. Handy for checking credentials and model access.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/RichardoC/simple-chatbot/internal/config"
	"github.com/RichardoC/simple-chatbot/internal/llm"
	"github.com/RichardoC/simple-chatbot/internal/logging"
	"github.com/RichardoC/simple-chatbot/internal/models"
	"github.com/RichardoC/simple-chatbot/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	prompt := strings.Join(os.Args[1:], " ")
	if prompt == "" {
		prompt = "What would be a good company name for a company that makes colorful socks?"
	}

	gateway, err := llm.New(cfg.BaseURL, cfg.APIKey, cfg.Model, llm.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialize completion gateway", zap.Error(err))
	}

	completion, err := gateway.Complete(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: store.SystemPrompt},
		{Role: models.RoleUser, Content: prompt},
	})
	if err != nil {
		logger.Fatal("failed to generate completion", zap.Error(err))
	}
	fmt.Println(completion)
}
