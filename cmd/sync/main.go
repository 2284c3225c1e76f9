package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/realonep/dart-openapi/pkg/core/config"
	"github.com/realonep/dart-openapi/pkg/core/dart"
	"github.com/realonep/dart-openapi/pkg/core/extract"
	"github.com/realonep/dart-openapi/pkg/core/llm"
	"github.com/realonep/dart-openapi/pkg/core/store"
	"github.com/realonep/dart-openapi/pkg/core/sync"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	cfg, err := config.Load("config/sync.yaml")
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error: %v", err)
	}

	provider, err := llm.New(cfg.LLMProvider)
	if err != nil {
		log.Fatalf("Error: LLM provider %s: %v", cfg.LLMProvider, err)
	}

	st, err := store.Open(cfg.PersistMode, cfg.DataDir, cfg.DBPath)
	if err != nil {
		log.Fatalf("Error: open store: %v", err)
	}
	defer st.Close()

	orch := sync.New(dart.NewClient(cfg.DartAPIKey), st, extract.NewExtractor(provider, cfg.LLMModel), cfg)
	if err := orch.SyncAll(context.Background()); err != nil {
		log.Printf("[Sync] %v", err)
		os.Exit(1)
	}
}
