// Package store persists the canonical series snapshot and the trained
// model artifacts. Both follow the same discipline: full replace through a
// temp file renamed into place, so a concurrent reader sees either the old
// or the new content, never a torn write.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/readings"
)

var ErrNotFound = errors.New("not found")

const snapshotTimeLayout = time.RFC3339Nano

// History is the single persisted canonical series. The merge path is the
// only writer; read paths load concurrently at any time.
type History struct {
	mu   sync.RWMutex
	path string
	log  *slog.Logger
}

func NewHistory(dir string, log *slog.Logger) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &History{
		path: filepath.Join(dir, "sensor_history.csv"),
		log:  log.With(slog.String("component", "history-store")),
	}, nil
}

// Load returns the persisted series, or an empty series when nothing has
// been persisted yet.
func (h *History) Load() (readings.Series, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return readings.Series{}, nil
		}
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", h.path, err)
	}
	if len(recs) <= 1 {
		return readings.Series{}, nil
	}

	series := make(readings.Series, 0, len(recs)-1)
	for i, rec := range recs[1:] {
		if len(rec) != 5 {
			return nil, fmt.Errorf("snapshot %s row %d: want 5 fields, got %d", h.path, i+2, len(rec))
		}
		ts, err := time.Parse(snapshotTimeLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("snapshot %s row %d: %w", h.path, i+2, err)
		}
		series = append(series, readings.Reading{
			Time:        ts,
			Battery:     parseCell(rec[1]),
			Humidity:    parseCell(rec[2]),
			Motion:      parseCell(rec[3]),
			Temperature: parseCell(rec[4]),
		})
	}
	return series, nil
}

// Replace atomically swaps the persisted series for the given one.
func (h *History) Replace(series readings.Series) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(h.path), "sensor_history-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write([]string{"time", "Battery", "Humidity", "Motion", "Temperature"}); err != nil {
		tmp.Close()
		return err
	}
	for _, r := range series {
		rec := []string{
			r.Time.UTC().Format(snapshotTimeLayout),
			formatCell(r.Battery),
			formatCell(r.Humidity),
			formatCell(r.Motion),
			formatCell(r.Temperature),
		}
		if err := cw.Write(rec); err != nil {
			tmp.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return err
	}
	h.log.Info("snapshot replaced", slog.Int("rows", len(series)))
	return nil
}

func parseCell(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return readings.Float(f)
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
