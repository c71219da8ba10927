// Package pipeline orchestrates one poll cycle: fetch, normalize, merge,
// persist, retrain. It also serves the read paths (analytics, prediction,
// anomaly listing), which consult the persisted snapshot and artifacts and
// never block on a running cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/anomaly"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/config"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/features"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/forecast"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/ingest"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/readings"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/store"
)

// ErrCycleRunning means a trigger fired while the previous cycle was still
// in flight. The trigger is dropped, not queued.
var ErrCycleRunning = errors.New("a pipeline cycle is already running")

// Pipeline wires the collaborators of the consolidation/retrain loop.
type Pipeline struct {
	cfg       *config.AppConfig
	log       *slog.Logger
	source    ingest.Source
	history   *store.History
	artifacts *store.Artifacts

	cycleMu sync.Mutex // held for the duration of one cycle

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts cycle outcomes for the status endpoint.
type Stats struct {
	Cycles      int64     `json:"cycles"`
	Skipped     int64     `json:"skipped"`
	Failed      int64     `json:"failed"`
	NewRows     int64     `json:"newRows"`
	LastCycleAt time.Time `json:"lastCycleAt"`
	LastError   string    `json:"lastError,omitempty"`
}

// CycleResult reports what one cycle did.
type CycleResult struct {
	CycleID         string `json:"cycleId"`
	NewRows         int    `json:"newRows"`
	TotalRows       int    `json:"totalRows"`
	AnomalyTrained  bool   `json:"anomalyTrained"`
	ForecastTrained bool   `json:"forecastTrained"`
}

func New(cfg *config.AppConfig, lg *slog.Logger, src ingest.Source, hist *store.History, art *store.Artifacts) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		log:       lg.With(slog.String("component", "pipeline")),
		source:    src,
		history:   hist,
		artifacts: art,
	}
}

// RunCycle executes one orchestrator pass. It is idempotent with respect to
// already-seen data: replayed batches merge to zero new rows and the cycle
// becomes a no-op. Returns ErrCycleRunning when a cycle is in flight.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	if !p.cycleMu.TryLock() {
		return CycleResult{}, ErrCycleRunning
	}
	defer p.cycleMu.Unlock()

	res := CycleResult{CycleID: uuid.NewString()}
	lg := p.log.With(slog.String("cycle", res.CycleID))

	batch, err := p.source.Fetch(ctx)
	if err != nil {
		return res, p.fail(lg, fmt.Errorf("fetch batch: %w", err))
	}
	if batch.Empty() {
		lg.Warn("fetched batch is empty")
		p.record(res, false)
		return res, nil
	}

	clean, err := readings.Normalize(batch)
	if err != nil {
		return res, p.fail(lg, fmt.Errorf("normalize batch: %w", err))
	}
	if len(clean) == 0 {
		lg.Warn("batch is empty after cleaning")
		p.record(res, false)
		return res, nil
	}

	existing, err := p.history.Load()
	if err != nil {
		return res, p.fail(lg, fmt.Errorf("load history: %w", err))
	}

	merged, newRows := readings.Merge(existing, clean)
	res.NewRows = newRows
	res.TotalRows = len(merged)
	if newRows == 0 {
		lg.Info("no new rows; skipping persist and retrain")
		p.record(res, false)
		return res, nil
	}

	if err := p.history.Replace(merged); err != nil {
		return res, p.fail(lg, fmt.Errorf("persist merged series: %w", err))
	}
	lg.Info("merged new readings", slog.Int("newRows", newRows), slog.Int("totalRows", len(merged)))

	// Each trainer is gated and failed independently; the series replace
	// above is already committed and is never rolled back.
	table := features.Synthesize(merged)
	res.AnomalyTrained = p.trainAnomaly(lg, table)
	res.ForecastTrained = p.trainForecast(lg, table)

	p.record(res, false)
	return res, nil
}

func (p *Pipeline) trainAnomaly(lg *slog.Logger, table *features.Table) bool {
	cols := table.AnomalyColumns()
	X, err := table.AnomalyMatrix(cols)
	if err != nil {
		lg.Error("anomaly feature matrix failed", "error", err)
		return false
	}
	if len(X) < anomaly.MinTrainingRows {
		lg.Info("not enough rows to train anomaly model; keeping previous artifact",
			slog.Int("rows", len(X)), slog.Int("minimum", anomaly.MinTrainingRows))
		return false
	}
	forest, err := anomaly.Train(X, cols, anomaly.Config{
		Trees:         p.cfg.AnomalyTrees,
		Contamination: p.cfg.AnomalyContamination,
		Seed:          p.cfg.ModelSeed,
	})
	if err != nil {
		lg.Error("anomaly training failed", "error", err)
		return false
	}
	blob, err := forest.Marshal()
	if err != nil {
		lg.Error("anomaly artifact encode failed", "error", err)
		return false
	}
	if err := p.artifacts.Save(store.AnomalyModel, blob); err != nil {
		lg.Error("anomaly artifact save failed", "error", err)
		return false
	}
	lg.Info("anomaly model retrained", slog.Int("rows", len(X)), "columns", cols)
	return true
}

func (p *Pipeline) trainForecast(lg *slog.Logger, table *features.Table) bool {
	X, y := table.ForecastSet()
	if len(X) < forecast.MinTrainingRows {
		lg.Info("not enough labeled rows to train forecast model; keeping previous artifact",
			slog.Int("rows", len(X)), slog.Int("minimum", forecast.MinTrainingRows))
		return false
	}
	scaler := forecast.FitScaler(X)
	Xs, err := scaler.TransformAll(X)
	if err != nil {
		lg.Error("forecast scaling failed", "error", err)
		return false
	}
	model, err := forecast.Train(Xs, y, features.ForecastFeatures, forecast.Config{
		Trees: p.cfg.ForecastTrees,
		Seed:  p.cfg.ModelSeed,
	})
	if err != nil {
		lg.Error("forecast training failed", "error", err)
		return false
	}
	modelBlob, err := model.Marshal()
	if err != nil {
		lg.Error("forecast artifact encode failed", "error", err)
		return false
	}
	scalerBlob, err := scaler.Marshal()
	if err != nil {
		lg.Error("scaler artifact encode failed", "error", err)
		return false
	}
	if err := p.artifacts.Save(store.ForecastModel, modelBlob); err != nil {
		lg.Error("forecast artifact save failed", "error", err)
		return false
	}
	if err := p.artifacts.Save(store.ForecastScaler, scalerBlob); err != nil {
		lg.Error("scaler artifact save failed", "error", err)
		return false
	}
	lg.Info("forecast model retrained", slog.Int("rows", len(X)))
	return true
}

func (p *Pipeline) fail(lg *slog.Logger, err error) error {
	lg.Error("cycle aborted", "error", err)
	p.record(CycleResult{}, true)
	p.statsMu.Lock()
	p.stats.LastError = err.Error()
	p.statsMu.Unlock()
	return err
}

func (p *Pipeline) record(res CycleResult, failed bool) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.Cycles++
	p.stats.NewRows += int64(res.NewRows)
	p.stats.LastCycleAt = time.Now().UTC()
	if failed {
		p.stats.Failed++
	} else if res.NewRows == 0 {
		p.stats.Skipped++
	} else {
		p.stats.LastError = ""
	}
}

// Stats returns a copy of the cycle counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}
