package readings

// Merge combines a freshly normalized batch with the persisted series.
// The watermark is the maximum persisted timestamp; only incoming rows
// strictly after it are new. Rows at or before the watermark are dropped
// even if their values differ, so replays and overlapping exports are
// idempotent. Out-of-order corrections to already-persisted history cannot
// be applied through this path.
func Merge(existing, incoming Series) (Series, int) {
	if len(existing) == 0 {
		merged := make(Series, len(incoming))
		copy(merged, incoming)
		merged.sortByTime()
		return merged, len(incoming)
	}

	watermark, _ := existing.LastTime()
	fresh := make(Series, 0, len(incoming))
	for _, r := range incoming {
		if r.Time.After(watermark) {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return existing, 0
	}

	merged := make(Series, 0, len(existing)+len(fresh))
	merged = append(merged, existing...)
	merged = append(merged, fresh...)
	merged.sortByTime()
	return merged, len(fresh)
}
