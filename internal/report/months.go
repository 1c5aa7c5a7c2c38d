package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MonthKey identifies one calendar month of a specific year.
type MonthKey struct {
	Year  int
	Month time.Month
}

// Label returns the human-readable period label, e.g. "May 2025".
func (k MonthKey) Label() string {
	return fmt.Sprintf("%s %d", k.Month.String(), k.Year)
}

// Selector returns the MM-YYYY form used by the report UI, e.g. "05-2025".
func (k MonthKey) Selector() string {
	return fmt.Sprintf("%02d-%d", int(k.Month), k.Year)
}

// FileToken returns the MM_YYYY form used in artifact filenames.
func (k MonthKey) FileToken() string {
	return fmt.Sprintf("%02d_%d", int(k.Month), k.Year)
}

// Before reports whether k is chronologically before other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// ParseMonthSelector parses an MM-YYYY selector into a MonthKey.
func ParseMonthSelector(s string) (MonthKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthSelector, s)
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthSelector, s)
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1000 || year > 9999 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthSelector, s)
	}

	return MonthKey{Year: year, Month: time.Month(month)}, nil
}

// MonthBucket holds the line entries whose parent claim's from-date falls in
// one month, in item creation order.
type MonthBucket struct {
	Key     MonthKey
	Entries []Entry
}

// GroupByMonth partitions entries into ordered per-month buckets keyed by the
// parent claim's from-date. The bucket sequence is strictly chronological
// ascending; within a bucket the original item creation order is preserved.
// Empty input yields no buckets.
func GroupByMonth(entries []Entry) []MonthBucket {
	byKey := make(map[MonthKey][]Entry)
	for _, e := range entries {
		key := MonthKey{Year: e.Claim.FromDate.Year(), Month: e.Claim.FromDate.Month()}
		byKey[key] = append(byKey[key], e)
	}

	keys := make([]MonthKey, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	buckets := make([]MonthBucket, 0, len(keys))
	for _, key := range keys {
		bucket := byKey[key]
		sort.SliceStable(bucket, func(i, j int) bool {
			if !bucket[i].Item.CreatedAt.Equal(bucket[j].Item.CreatedAt) {
				return bucket[i].Item.CreatedAt.Before(bucket[j].Item.CreatedAt)
			}
			return bucket[i].Item.ItemID < bucket[j].Item.ItemID
		})
		buckets = append(buckets, MonthBucket{Key: key, Entries: bucket})
	}

	return buckets
}
