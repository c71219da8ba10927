package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/api"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/config"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/ingest"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/logging"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/pipeline"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/store"
)

func main() {
	lg, logFile := logging.Init()
	defer logFile.Close()

	cfg, err := config.LoadEnv()
	if err != nil {
		lg.Error("configuration error", "error", err)
		os.Exit(1)
	}

	history, err := store.NewHistory(cfg.DataDir, lg)
	if err != nil {
		lg.Error("history store init failed", "error", err)
		os.Exit(1)
	}
	artifacts, err := store.NewArtifacts(cfg.ModelDir, lg)
	if err != nil {
		lg.Error("artifact store init failed", "error", err)
		os.Exit(1)
	}

	source, err := newSource(cfg, lg)
	if err != nil {
		lg.Error("batch source init failed", "source", cfg.Source, "error", err)
		os.Exit(1)
	}
	defer source.Close()

	pipe := pipeline.New(cfg, lg, source, history, artifacts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// run once on startup so data exists, then poll
	runCycle(ctx, pipe, lg)
	go pollLoop(ctx, pipe, lg, time.Duration(cfg.PollMinutes)*time.Minute)

	router := api.NewRouter(pipe, lg)
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPBind,
		Handler:           handlers.LoggingHandler(logFile, cors(router)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("http server listening", slog.String("bind", cfg.HTTPBind))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown failed", "error", err)
	}
}

// pollLoop triggers one cycle per tick. A tick arriving while a cycle is
// still running is dropped, never run concurrently.
func pollLoop(ctx context.Context, pipe *pipeline.Pipeline, lg *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lg.Info("scheduler started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			lg.Info("scheduler stopped")
			return
		case <-ticker.C:
			runCycle(ctx, pipe, lg)
		}
	}
}

func runCycle(ctx context.Context, pipe *pipeline.Pipeline, lg *slog.Logger) {
	res, err := pipe.RunCycle(ctx)
	switch {
	case errors.Is(err, pipeline.ErrCycleRunning):
		lg.Warn("previous cycle still running; trigger dropped")
	case err != nil:
		lg.Error("cycle failed", "error", err)
	default:
		lg.Info("cycle complete",
			slog.String("cycle", res.CycleID),
			slog.Int("newRows", res.NewRows),
			slog.Int("totalRows", res.TotalRows),
			slog.Bool("anomalyTrained", res.AnomalyTrained),
			slog.Bool("forecastTrained", res.ForecastTrained))
	}
}

func newSource(cfg *config.AppConfig, lg *slog.Logger) (ingest.Source, error) {
	switch cfg.Source {
	case "kafka":
		return ingest.NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, lg), nil
	case "mqtt":
		return ingest.NewMQTTSource(ingest.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, lg)
	default:
		return ingest.NewFileSource(cfg.CSVPath), nil
	}
}
