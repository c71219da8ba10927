package store

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/readings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadEmptyStoreReturnsEmptySeries(t *testing.T) {
	h, err := NewHistory(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	s, err := h.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("expected empty series, got %d rows", len(s))
	}
}

func TestReplaceThenLoadRoundTrips(t *testing.T) {
	h, err := NewHistory(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	series := readings.Series{
		{
			Time:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Battery:     readings.Float(3.6),
			Humidity:    readings.Float(48.5),
			Temperature: readings.Float(21.25),
			// Motion deliberately nil
		},
		{
			Time:        time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC),
			Battery:     readings.Float(3.59),
			Motion:      readings.Float(1),
			Temperature: readings.Float(21.5),
		},
	}
	if err := h.Replace(series); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := h.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if !got[0].Time.Equal(series[0].Time) {
		t.Fatalf("time mismatch: %v vs %v", got[0].Time, series[0].Time)
	}
	if got[0].Motion != nil {
		t.Fatalf("nil motion must stay nil, got %v", *got[0].Motion)
	}
	if got[0].Temperature == nil || *got[0].Temperature != 21.25 {
		t.Fatalf("temperature did not round-trip: %v", got[0].Temperature)
	}
	if got[1].Battery == nil || *got[1].Battery != 3.59 {
		t.Fatalf("battery did not round-trip: %v", got[1].Battery)
	}
}

func TestReplaceSwapsFullSnapshot(t *testing.T) {
	h, err := NewHistory(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	first := readings.Series{{Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), Temperature: readings.Float(20)}}
	second := readings.Series{
		{Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), Temperature: readings.Float(20)},
		{Time: time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC), Temperature: readings.Float(21)},
	}
	if err := h.Replace(first); err != nil {
		t.Fatalf("replace 1: %v", err)
	}
	if err := h.Replace(second); err != nil {
		t.Fatalf("replace 2: %v", err)
	}
	got, err := h.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the second snapshot, got %d rows", len(got))
	}
}

func TestConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	h, err := NewHistory(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mkSeries := func(n int) readings.Series {
		s := make(readings.Series, n)
		for i := range s {
			s[i] = readings.Reading{Time: base.Add(time.Duration(i) * time.Minute), Temperature: readings.Float(20)}
		}
		return s
	}
	if err := h.Replace(mkSeries(5)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s, err := h.Load()
				if err != nil {
					t.Errorf("load: %v", err)
					return
				}
				// a torn write would show up as a partial row count
				if len(s) != 5 && len(s) != 50 {
					t.Errorf("saw partial snapshot of %d rows", len(s))
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		if err := h.Replace(mkSeries(50)); err != nil {
			t.Fatalf("replace: %v", err)
		}
		if err := h.Replace(mkSeries(5)); err != nil {
			t.Fatalf("replace: %v", err)
		}
	}
	wg.Wait()
}

func TestArtifactsRoundTripAndNotFound(t *testing.T) {
	a, err := NewArtifacts(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("new artifacts: %v", err)
	}
	if _, err := a.Load(AnomalyModel); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if a.Exists(AnomalyModel) {
		t.Fatalf("unsaved artifact must not exist")
	}
	blob := []byte(`{"trees":[]}`)
	if err := a.Save(AnomalyModel, blob); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := a.Load(AnomalyModel)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("artifact mismatch: %s", got)
	}
	if !a.Exists(AnomalyModel) {
		t.Fatalf("saved artifact must exist")
	}
}
