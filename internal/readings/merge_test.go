package readings

import (
	"testing"
	"time"
)

func at(minute int, temp float64) Reading {
	return Reading{
		Time:        time.Date(2024, 5, 1, 10, minute, 0, 0, time.UTC),
		Temperature: Float(temp),
	}
}

func TestMergeIntoEmptySeries(t *testing.T) {
	incoming := Series{at(0, 20), at(5, 21)}
	merged, n := Merge(Series{}, incoming)
	if n != 2 {
		t.Fatalf("expected 2 new rows, got %d", n)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged rows, got %d", len(merged))
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	batch := Series{at(0, 20), at(5, 21), at(10, 22)}
	merged, n := Merge(Series{}, batch)
	if n != 3 {
		t.Fatalf("first merge: expected 3 new rows, got %d", n)
	}
	again, n := Merge(merged, batch)
	if n != 0 {
		t.Fatalf("second merge: expected 0 new rows, got %d", n)
	}
	if len(again) != len(merged) {
		t.Fatalf("series changed on replay: %d -> %d", len(merged), len(again))
	}
	for i := range again {
		if !again[i].Time.Equal(merged[i].Time) {
			t.Fatalf("row %d changed on replay", i)
		}
	}
}

func TestMergeDedupsByTimeKeepingPersistedValue(t *testing.T) {
	persisted, _ := Merge(Series{}, Series{at(0, 20)})
	conflicting := Series{at(0, 99)}
	merged, n := Merge(persisted, conflicting)
	if n != 0 {
		t.Fatalf("expected duplicate timestamp to be dropped, got %d new rows", n)
	}
	if *merged[0].Temperature != 20 {
		t.Fatalf("persisted value must win, got %.1f", *merged[0].Temperature)
	}
}

func TestMergeDropsRowsAtOrBeforeWatermark(t *testing.T) {
	existing := Series{at(0, 20), at(10, 22)}
	incoming := Series{at(5, 99), at(10, 99), at(15, 23)}
	merged, n := Merge(existing, incoming)
	if n != 1 {
		t.Fatalf("expected only the row past the watermark, got %d", n)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged rows, got %d", len(merged))
	}
	if *merged[2].Temperature != 23 {
		t.Fatalf("expected new row appended, got %.1f", *merged[2].Temperature)
	}
}

func TestMergePreservesMonotonicOrdering(t *testing.T) {
	existing, _ := Merge(Series{}, Series{at(0, 20), at(10, 22)})
	merged, _ := Merge(existing, Series{at(25, 24), at(15, 23)})
	for i := 1; i < len(merged); i++ {
		if merged[i].Time.Before(merged[i-1].Time) {
			t.Fatalf("ordering invariant violated at index %d", i)
		}
	}
}
