// Package main is the entry point for the Heimsight server: OTLP ingestion
// over gRPC and HTTP, the native REST API, and the retention control plane
// over a shared columnar store.
package main

import (
	"log"
	"os"

	"github.com/Thomblin/heimsight/internal/app"
	"github.com/Thomblin/heimsight/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Printf("Server exited with error: %v", err)
		os.Exit(1)
	}
}
