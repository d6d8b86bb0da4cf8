package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tuannvm/jira-refiner/internal/bridge"
	"github.com/tuannvm/jira-refiner/internal/config"
	"github.com/tuannvm/jira-refiner/internal/llm"
	log "github.com/tuannvm/jira-refiner/internal/logging"
	"github.com/tuannvm/jira-refiner/internal/retrieval"
	"github.com/tuannvm/jira-refiner/internal/server"
	"github.com/tuannvm/jira-refiner/internal/service"
)

func main() {
	cfg := config.New()
	log.Init(cfg.LogLevel)
	defer log.Sync()

	bridgeClient := bridge.NewClient(cfg)
	defer bridgeClient.Close()

	modelCaller, err := llm.NewClient(cfg, bridgeClient.Tools())
	if err != nil {
		log.Fatalf("Failed to initialize model caller: %v", err)
	}

	var retriever retrieval.Retriever = retrieval.Noop{}
	if cfg.RetrievalEnabled {
		jr, err := retrieval.NewJiraRetriever(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Jira retriever: %v", err)
		}
		retriever = jr
	}

	svc := service.New(cfg, modelCaller, bridgeClient, retriever)
	srv := server.New(cfg, svc, bridgeClient)

	fmt.Println("Starting jira-refiner...")
	fmt.Printf("Webhook endpoint: http://%s/jira/refine\n", cfg.ListenAddr())

	// Create a context that will be canceled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Infof("Shutdown complete")
}
