// Package analytics holds the pure aggregation arithmetic: window parsing
// and time bucketing. The store produces sparse per-bucket rows straight
// from SQL; this package aligns and zero-fills them so every bucket in the
// window appears exactly once, empty or not.
package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hivewatch/honeynet-analytics/internal/models"
)

// DefaultWindow is applied when a caller does not supply one.
const DefaultWindow = 24 * time.Hour

// DefaultBucketWidth is the chart resolution for the default window.
const DefaultBucketWidth = time.Hour

// MinBucketWidth is the finest bucket resolution. Bucketing is whole-second
// epoch arithmetic on both the Go side and the SQL side, so finer widths
// cannot be represented.
const MinBucketWidth = time.Second

// ParseWindow parses a window such as "24h", "90m" or "7d". Day suffixes are
// accepted because consoles ask for them; everything else goes through
// time.ParseDuration. Empty input falls back to DefaultWindow.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultWindow, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid window %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid window %q", s)
	}
	return d, nil
}

// ParseBucket parses a bucket width such as "1h" or "15m". Empty input falls
// back to DefaultBucketWidth; widths under MinBucketWidth are rejected rather
// than rounded, so a caller never gets buckets at a different resolution than
// it asked for.
func ParseBucket(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultBucketWidth, nil
	}
	d, err := ParseWindow(s)
	if err != nil {
		return 0, err
	}
	if d < MinBucketWidth {
		return 0, fmt.Errorf("bucket width %q must be at least 1s", s)
	}
	return d, nil
}

// WidthSeconds converts a bucket width to the whole-second divisor used by
// the bucketing arithmetic, both here and as the SQL grouping parameter.
// Never returns less than 1, so the divisor cannot be zero.
func WidthSeconds(width time.Duration) int64 {
	w := int64(width / time.Second)
	if w < 1 {
		return 1
	}
	return w
}

// Align floors t to the start of its bucket. Alignment is epoch-based, the
// same arithmetic the store's SQL uses, so Go-side fill and SQL grouping
// agree on bucket boundaries.
func Align(t time.Time, width time.Duration) time.Time {
	w := WidthSeconds(width)
	sec := t.Unix()
	sec -= ((sec % w) + w) % w
	return time.Unix(sec, 0).UTC()
}

// Fill expands sparse per-bucket counts into a dense series over [from, to).
// Buckets are left-closed/right-open; buckets with no events appear with
// count 0. Summing the returned counts equals the windowed total.
func Fill(from, to time.Time, width time.Duration, sparse map[time.Time]int64) []models.Bucket {
	var out []models.Bucket
	for start := Align(from, width); start.Before(to); start = start.Add(width) {
		out = append(out, models.Bucket{Time: start, Count: sparse[start]})
	}
	return out
}

// FillScores is Fill for the anomaly trend: each bucket carries its event
// count and mean score. Empty buckets report a zero mean.
func FillScores(from, to time.Time, width time.Duration, sparse map[time.Time]models.ScoreBucket) []models.ScoreBucket {
	var out []models.ScoreBucket
	for start := Align(from, width); start.Before(to); start = start.Add(width) {
		b := sparse[start]
		b.Time = start
		out = append(out, b)
	}
	return out
}
