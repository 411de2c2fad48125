package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/partwise/parts-assistant/internal/adapters/mcp"
	"github.com/partwise/parts-assistant/internal/bootstrap"
	"github.com/partwise/parts-assistant/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "mcp")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Classifier, app.Builder, app.Structured, app.Retriever, app.Logger)
	if err := server.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
