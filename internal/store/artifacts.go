package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Logical artifact names. Each is persisted as its own JSON blob.
const (
	AnomalyModel   = "anomaly-model"
	ForecastModel  = "forecast-model"
	ForecastScaler = "forecast-scaler"
)

// Artifacts stores trained model blobs keyed by logical name, with the
// same atomic-replace contract as the series snapshot. Trainer and
// predictor may run in different processes; the filesystem is the handoff.
type Artifacts struct {
	dir string
	log *slog.Logger
}

func NewArtifacts(dir string, log *slog.Logger) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Artifacts{dir: dir, log: log.With(slog.String("component", "artifact-store"))}, nil
}

// Load returns the stored blob, or ErrNotFound when the artifact was never
// trained.
func (a *Artifacts) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(a.artifactPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact %s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Save atomically replaces the stored blob for the given name.
func (a *Artifacts) Save(name string, data []byte) error {
	path := a.artifactPath(name)
	tmp, err := os.CreateTemp(a.dir, name+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
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
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	a.log.Info("artifact saved", slog.String("name", name), slog.Int("bytes", len(data)))
	return nil
}

// Exists reports whether an artifact has been trained and persisted.
func (a *Artifacts) Exists(name string) bool {
	_, err := os.Stat(a.artifactPath(name))
	return err == nil
}

func (a *Artifacts) artifactPath(name string) string {
	return filepath.Join(a.dir, name+".json")
}
