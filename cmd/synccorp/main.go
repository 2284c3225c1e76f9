package main

import (
	"context"
	"log"
	"os"
	"regexp"

	"github.com/joho/godotenv"

	"github.com/realonep/dart-openapi/pkg/core/config"
	"github.com/realonep/dart-openapi/pkg/core/dart"
	"github.com/realonep/dart-openapi/pkg/core/extract"
	"github.com/realonep/dart-openapi/pkg/core/llm"
	"github.com/realonep/dart-openapi/pkg/core/store"
	"github.com/realonep/dart-openapi/pkg/core/sync"
)

var corpCodeRe = regexp.MustCompile(`^\d{8}$`)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}
	if len(os.Args) < 2 || !corpCodeRe.MatchString(os.Args[1]) {
		log.Fatalf("Usage: %s <corp_code (8 digits)>", os.Args[0])
	}
	corpCode := os.Args[1]

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
	res, err := orch.SyncCompany(context.Background(), corpCode)
	if err != nil {
		log.Printf("[%s] sync failed: %v", corpCode, err)
		os.Exit(1)
	}
	log.Printf("[%s] %s: %d financial years (%d confirmed), %d guidance, %d treasury",
		res.CorpCode, res.CorpName, res.FinancialYears, res.ConfirmedYears, res.GuidanceCount, res.TreasuryCount)
}
