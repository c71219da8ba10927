package ingest

import (
	"context"
	"fmt"
	"os"
)

// Source fetches one raw batch of sensor readings per pipeline cycle.
// Any returned error is a transport failure; the caller abandons the cycle.
type Source interface {
	Fetch(ctx context.Context) (RawBatch, error)
	Close() error
}

// FileSource reads the full CSV export from a local path on every fetch.
// It stands in for the object-storage poll of the hosted deployment: the
// upstream bridge rewrites the whole file, and the merge engine dedups.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(ctx context.Context) (RawBatch, error) {
	if err := ctx.Err(); err != nil {
		return RawBatch{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return RawBatch{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()
	return ParseCSV(f)
}

func (s *FileSource) Close() error { return nil }
