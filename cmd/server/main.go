package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/wealthops/engine/internal/api"
	"github.com/wealthops/engine/internal/backend"
	"github.com/wealthops/engine/internal/columns"
	"github.com/wealthops/engine/internal/config"
	"github.com/wealthops/engine/internal/export"
	"github.com/wealthops/engine/internal/middleware"
	"github.com/wealthops/engine/internal/query"
	"github.com/wealthops/engine/internal/refcache"
	"github.com/wealthops/engine/internal/view"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client := backend.NewClient(cfg.BackendBaseURL)
	refBuilder := refcache.NewBuilder(client, cfg.FetchBatchSize, cfg.CacheMaxItems)
	session := view.NewSession(client, refBuilder,
		view.WithBatchSize(cfg.FetchBatchSize),
		view.WithMaxItems(cfg.CacheMaxItems),
	)
	defer session.Close()

	engine := query.NewEngine(columns.DefaultRegistry(), query.WithDefaultPageSize(cfg.DefaultPage))

	exportOpts := []export.Option{export.WithJobTimeout(cfg.ExportTimeout)}
	if cfg.ExportDir != "" {
		exportOpts = append(exportOpts, export.WithExportDirectory(cfg.ExportDir))
	}
	exportService := export.NewService(session, engine, exportOpts...)

	// Initial load in the background; queries answer an empty state until
	// it commits, and /api/status carries any load error.
	go func() {
		if err := session.Load(ctx); err != nil && !errors.Is(err, view.ErrSuperseded) {
			log.Printf("[VIEW] initial load failed: %v", err)
		}
	}()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	withLoaders := middleware.DataLoaderMiddleware(client)
	apiHandler := middleware.LoggingMiddleware(withLoaders(api.NewHTTPHandler(session, engine)))
	exportHandler := middleware.LoggingMiddleware(export.NewHTTPHandler(exportService))

	mux := http.NewServeMux()
	mux.Handle("/api/exports", corsHandler.Handler(exportHandler))
	mux.Handle("/api/exports/", corsHandler.Handler(exportHandler))
	mux.Handle("/api/", corsHandler.Handler(apiHandler))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting query server on %s", cfg.ServerAddr)
		log.Printf("Query endpoint available at http://localhost%s/api/query", cfg.ServerAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
