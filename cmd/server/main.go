package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RichardoC/simple-chatbot/internal/api"
	"github.com/RichardoC/simple-chatbot/internal/chat"
	"github.com/RichardoC/simple-chatbot/internal/config"
	"github.com/RichardoC/simple-chatbot/internal/llm"
	"github.com/RichardoC/simple-chatbot/internal/logging"
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

	gateway, err := llm.New(cfg.BaseURL, cfg.APIKey, cfg.Model, llm.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialize completion gateway", zap.Error(err))
	}

	chatService := chat.NewService(store.New(), gateway, logger)
	handler := api.NewHandler(chatService, logger, cfg.TurnTimeout)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down cleanly", zap.Error(err))
		}
	}()

	logger.Info("Starting server",
		zap.String("addr", cfg.Addr),
		zap.String("model", gateway.Model()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	logger.Info("Server stopped")
}
