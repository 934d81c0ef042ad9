package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datapilot/analyst/internal/adapter/llm"
	"github.com/datapilot/analyst/internal/adapter/warehouse"
	"github.com/datapilot/analyst/internal/agent"
	"github.com/datapilot/analyst/internal/config"
	"github.com/datapilot/analyst/internal/repository"
	"github.com/datapilot/analyst/internal/session"
	transport "github.com/datapilot/analyst/internal/transport/http"
	"github.com/datapilot/analyst/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting analyst service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Warehouse URL: %s", cfg.WarehouseURL)
	log.Printf("LLM URL: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)

	// Initialize archive
	archive, err := repository.NewSQLiteArchive(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize archive: %v", err)
	}
	defer archive.Close()

	// Initialize upstream clients
	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	advisor := llm.NewModelAdvisor(llmClient, cfg.LLMModel)
	warehouseClient := warehouse.NewHTTPExecutor(cfg.WarehouseURL, cfg.WarehouseTimeout)

	// Initialize policy engine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize managers
	sessions := session.NewManager(cfg.SessionTimeout)
	agents := agent.NewManager(agent.Deps{
		Advisor:   advisor,
		Warehouse: warehouseClient,
		Policy:    policyEngine,
		Sessions:  sessions,
		Timeouts: agent.StageTimeouts{
			Query:        cfg.QueryTimeout,
			Optimization: cfg.OptimizationTimeout,
			Impact:       cfg.ImpactTimeout,
		},
		Synthesis: agent.SynthesisConfig{
			CostSavingsThresholdPercent: cfg.Synthesis.CostSavingsThresholdPercent,
			ImpactScoreThreshold:        cfg.Synthesis.ImpactScoreThreshold,
			MaxRecommendations:          cfg.Synthesis.MaxRecommendations,
		},
		MaxRows: cfg.MaxResultRows,
	}, archive, cfg.AgentTimeout, cfg.HistoryMaxSize)

	// Background cleanup loops
	go sessions.RunCleanupLoop(ctx, cfg.SessionCleanupInterval)
	go agents.RunCleanupLoop(ctx, cfg.HistoryCleanupInterval, cfg.HistoryMaxAge)

	// Create HTTP server
	server := transport.NewServer(agents, sessions, archive, cfg.EnableOptimization, cfg.EnableImpactAnalysis)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down analyst service...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Analyst service stopped")
}
