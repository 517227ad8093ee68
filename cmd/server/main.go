package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/logger"
	"github.com/agenthands/canon/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfg, err := config.Resolve("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, lg, "")
	if err != nil {
		lg.Fatal("Failed to build app", "error", err)
	}
	defer app.Close()

	if err := app.Canon.BuildIndices(ctx); err != nil {
		lg.Warn("Failed to build indices", "error", err)
	}

	if err := server.NewServer(app).Serve(ctx, cfg.Server.Port); err != nil {
		lg.Error("Server stopped", "error", err)
	}
}
