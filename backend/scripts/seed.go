package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"contextpilot/backend/internal/agent"
	"contextpilot/backend/internal/state"
	"contextpilot/backend/pkg/config"
	"contextpilot/backend/pkg/logger"
	"go.uber.org/zap"
)

// Seeds a fresh assistant with configured knowledge and a demo user, then
// prints what retrieval returns for a query. Useful for checking that the
// embedding provider and knowledge sources are set up before running the
// chat or server.
func main() {
	userID := flag.String("user-id", "demo", "Demo user to onboard")
	file := flag.String("file", "", "Knowledge file (overrides KNOWLEDGE_FILE)")
	url := flag.String("url", "", "Knowledge page (overrides KNOWLEDGE_URL)")
	query := flag.String("query", "How do I approach regression?", "Query to run against the seeded knowledge")
	topK := flag.Int("k", 3, "Number of knowledge snippets to show")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting knowledge seeding...")
	if *file != "" {
		cfg.KnowledgeFile = *file
	}
	if *url != "" {
		cfg.KnowledgeURL = *url
	}

	ctx := context.Background()
	orch, err := agent.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize assistant", zap.Error(err))
	}

	if _, err := orch.EnsureUser(ctx, *userID, state.Profile{
		Name:   "Demo User",
		Role:   "Student",
		Goal:   "Finish the regression assignment",
		Screen: "Assignments",
		Course: "Intro to Machine Learning",
	}); err != nil {
		log.Fatal("Failed to onboard demo user", zap.Error(err))
	}

	results, err := orch.Index().SearchWithScores(ctx, *query, *topK)
	if err != nil {
		log.Fatal("Knowledge search failed", zap.Error(err))
	}

	log.Info("Seeding complete",
		zap.Int("knowledge_entries", orch.Index().Len()),
		zap.Int("dimension", orch.Index().Dimension()),
		zap.Int("graph_nodes", orch.Graph().NodeCount()),
		zap.Int("graph_edges", orch.Graph().EdgeCount()),
	)

	fmt.Printf("\nTop %d snippets for %q:\n", len(results), *query)
	for i, r := range results {
		fmt.Printf("  %d. [%.4f] %s\n", i+1, r.Distance, r.Text)
	}
	if len(results) == 0 {
		fmt.Println("  (none)")
		os.Exit(1)
	}
}
