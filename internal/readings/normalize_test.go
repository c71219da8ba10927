package readings

import (
	"testing"
	"time"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/ingest"
)

func batchOf(columns []string, rows ...[]string) ingest.RawBatch {
	return ingest.RawBatch{Columns: columns, Rows: rows}
}

func TestNormalizeInterpolatesAgainstElapsedTime(t *testing.T) {
	// temp gap of [20, _, _, 26] over evenly spaced times -> 22, 24
	batch := batchOf(
		[]string{"Time (Uganda)", "Temperature"},
		[]string{"2024-05-01 10:00:00", "20"},
		[]string{"2024-05-01 10:05:00", ""},
		[]string{"2024-05-01 10:10:00", ""},
		[]string{"2024-05-01 10:15:00", "26"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []float64{20, 22, 24, 26}
	if len(s) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(s))
	}
	for i, w := range want {
		if s[i].Temperature == nil {
			t.Fatalf("row %d: temperature is nil", i)
		}
		if diff := *s[i].Temperature - w; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("row %d: expected %.2f, got %.4f", i, w, *s[i].Temperature)
		}
	}
}

func TestNormalizeInterpolationIsTimeWeightedNotRowWeighted(t *testing.T) {
	// unknown points sit at 5 and 15 minutes into a 20 minute gap
	batch := batchOf(
		[]string{"time", "Temperature"},
		[]string{"2024-05-01 10:00:00", "20"},
		[]string{"2024-05-01 10:05:00", ""},
		[]string{"2024-05-01 10:15:00", ""},
		[]string{"2024-05-01 10:20:00", "26"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := *s[1].Temperature; got < 21.49 || got > 21.51 {
		t.Fatalf("expected 21.5 at +5min, got %.4f", got)
	}
	if got := *s[2].Temperature; got < 24.49 || got > 24.51 {
		t.Fatalf("expected 24.5 at +15min, got %.4f", got)
	}
}

func TestNormalizeExtendsBoundaryValues(t *testing.T) {
	batch := batchOf(
		[]string{"timestamp", "Battery"},
		[]string{"2024-05-01 10:00:00", ""},
		[]string{"2024-05-01 10:05:00", "3.6"},
		[]string{"2024-05-01 10:10:00", ""},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for i := range s {
		if s[i].Battery == nil || *s[i].Battery != 3.6 {
			t.Fatalf("row %d: expected boundary extension to 3.6, got %v", i, s[i].Battery)
		}
	}
}

func TestNormalizeMissingTimeColumnIsSchemaError(t *testing.T) {
	batch := batchOf(
		[]string{"Temperature", "Battery"},
		[]string{"20", "3.6"},
	)
	if _, err := Normalize(batch); err == nil {
		t.Fatalf("expected schema error")
	} else if _, ok := err.(*SchemaError); !ok {
		t.Fatalf("expected *SchemaError, got %T", err)
	}
}

func TestNormalizeTrimsColumnNames(t *testing.T) {
	batch := batchOf(
		[]string{"  Time  ", " Temperature "},
		[]string{"2024-05-01 10:00:00", "21"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(s) != 1 || s[0].Temperature == nil || *s[0].Temperature != 21 {
		t.Fatalf("unexpected series: %+v", s)
	}
}

func TestNormalizeDropsRowsWithUnparseableTime(t *testing.T) {
	batch := batchOf(
		[]string{"time", "Temperature"},
		[]string{"not-a-time", "19"},
		[]string{"2024-05-01 10:00:00", "21"},
		[]string{"", "23"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(s) != 1 {
		t.Fatalf("expected 1 row after dropping noise, got %d", len(s))
	}
}

func TestNormalizeSortsAscendingByTime(t *testing.T) {
	batch := batchOf(
		[]string{"time", "Temperature"},
		[]string{"2024-05-01 10:10:00", "22"},
		[]string{"2024-05-01 10:00:00", "20"},
		[]string{"2024-05-01 10:05:00", "21"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for i := 1; i < len(s); i++ {
		if s[i].Time.Before(s[i-1].Time) {
			t.Fatalf("series not sorted at index %d", i)
		}
	}
}

func TestNormalizeNonNumericCellBecomesMissingThenFilled(t *testing.T) {
	batch := batchOf(
		[]string{"time", "Humidity"},
		[]string{"2024-05-01 10:00:00", "40"},
		[]string{"2024-05-01 10:05:00", "error"},
		[]string{"2024-05-01 10:10:00", "44"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s[1].Humidity == nil || *s[1].Humidity != 42 {
		t.Fatalf("expected interpolated 42, got %v", s[1].Humidity)
	}
}

func TestNormalizeAbsentSensorStaysAbsent(t *testing.T) {
	batch := batchOf(
		[]string{"time", "Temperature"},
		[]string{"2024-05-01 10:00:00", "21"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s[0].Motion != nil || s[0].Battery != nil || s[0].Humidity != nil {
		t.Fatalf("sensors absent from the batch must not be synthesized: %+v", s[0])
	}
}

func TestNormalizeAcceptsRFC3339(t *testing.T) {
	batch := batchOf(
		[]string{"Datetime", "Temperature"},
		[]string{"2024-05-01T10:00:00Z", "21"},
	)
	s, err := Normalize(batch)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !s[0].Time.Equal(want) {
		t.Fatalf("expected %v, got %v", want, s[0].Time)
	}
}
