package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/fracture-api/internal/bitmap"
	"github.com/Brownie44l1/fracture-api/internal/config"
	"github.com/Brownie44l1/fracture-api/internal/handlers"
	"github.com/Brownie44l1/fracture-api/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func createServer(cfg config.Config, handler *handlers.Handler) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{handlers.AnalysisIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	handler.AddRoutes(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func main() {
	var envFile string
	flag.StringVar(&envFile, "env", "", "path to load env from")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slog.Info("loading model", "path", cfg.ModelPath, "fallback", cfg.ModelFallbackPath)

	classifier := model.Load(cfg.ModelOptions())
	defer classifier.Close()

	if !classifier.Loaded() {
		slog.Warn("using mock prediction mode until a model is provided")
	}
	slog.Info("dicom support", "enabled", cfg.DICOMEnabled)

	handler := handlers.NewHandler(classifier, bitmap.NewNormalizer(cfg.DICOMEnabled), cfg.Profile, cfg.MaxUploadBytes)
	server := createServer(cfg, handler)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "profile", cfg.Profile, "provider", classifier.Provider())
	slog.Info("endpoints", "status", "GET /", "health", "GET /health", "analyze", "POST /analyze")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v", cfg.Port, err)
	}

	slog.Info("server stopped")
}
