// Package similar identifies transactions that are likely duplicates of
// previously imported ones, using windowed nearest-neighbor comparison.
package similar

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/siftledger/sift/internal/model"
)

// Comparator decides whether two transactions describe the same real-world
// event.
type Comparator interface {
	Similar(entry, source model.Transaction) bool
}

// Pair links a candidate entry to the source entry it duplicates.
type Pair struct {
	Entry  model.Transaction
	Source model.Transaction
}

// DefaultMaxTimeDelta is how far apart two wall-clock timestamps may be
// for the naive comparator to still consider them the same event.
const DefaultMaxTimeDelta = 2 * time.Minute

// txnTimePattern extracts a wall-clock time out of free-text metadata,
// e.g. "2023-04-01 13:30:05" scraped from an export column.
var txnTimePattern = regexp.MustCompile(`.+ (\d+:\d+:\d+).*`)

// NaiveComparator flags duplicates conservatively: same calendar date,
// same flag, matching posting (account and amount) and wall-clock times
// within MaxTimeDelta of each other. Entries from the same source file are
// never compared; same-file duplication is handled upstream.
type NaiveComparator struct {
	// MaxTimeDelta defaults to DefaultMaxTimeDelta when zero.
	MaxTimeDelta time.Duration
}

// Similar implements Comparator.
func (c NaiveComparator) Similar(entry, source model.Transaction) bool {
	if entry.Source != "" && entry.Source == source.Source {
		return false
	}
	if entry.Duplicate {
		return false
	}
	if !sameDay(entry.Date, source.Date) {
		return false
	}
	// "P" marks padding/placeholder entries, never duplicate candidates.
	if entry.Flag != source.Flag || source.Flag == "P" {
		return false
	}

	maxDelta := c.MaxTimeDelta
	if maxDelta == 0 {
		maxDelta = DefaultMaxTimeDelta
	}
	t1, ok1 := clockTime(entry.Metadata)
	t2, ok2 := clockTime(source.Metadata)
	if ok1 != ok2 {
		return false
	}
	if ok1 && absDuration(t1.Sub(t2)) > maxDelta {
		return false
	}

	return entry.AccountID == source.AccountID && entry.Amount == source.Amount
}

// ToleranceComparator matches entries whose amounts on the same account
// agree within a relative tolerance, optionally bounding the date distance.
// It handles entries that are incomplete on one side or have slightly
// different numbers.
type ToleranceComparator struct {
	// Epsilon is the allowed relative amount difference; defaults to 5%.
	Epsilon float64
	// MaxDateDelta bounds the date distance when non-zero.
	MaxDateDelta time.Duration
}

// Similar implements Comparator.
func (c ToleranceComparator) Similar(entry, source model.Transaction) bool {
	if c.MaxDateDelta > 0 {
		if absDuration(entry.Date.Sub(source.Date)) > c.MaxDateDelta {
			return false
		}
	}
	if entry.AccountID != source.AccountID {
		return false
	}
	return amountsClose(entry.Amount, source.Amount, c.epsilon())
}

func (c ToleranceComparator) epsilon() float64 {
	if c.Epsilon > 0 {
		return c.Epsilon
	}
	return 0.05
}

// amountsClose reports whether two amounts agree within the relative
// tolerance. Two zero amounts agree; a zero against a non-zero never does.
func amountsClose(a, b, epsilon float64) bool {
	if a == 0 && b == 0 {
		return true
	}
	var ratio float64
	if b != 0 {
		ratio = math.Abs(a / b)
	} else {
		ratio = math.Abs(b / a)
	}
	if ratio == 0 {
		return false
	}
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio-1 < epsilon
}

// FindSimilar scans each entry against the source entries dated within
// windowDays (inclusive) of it and returns the first duplicate pairing per
// entry. A nil comparator uses the default ToleranceComparator.
func FindSimilar(entries, source []model.Transaction, cmp Comparator, windowDays int) []Pair {
	if cmp == nil {
		cmp = ToleranceComparator{}
	}

	var pairs []Pair
	for _, entry := range entries {
		for _, src := range inWindow(source, entry.Date, windowDays) {
			if cmp.Similar(entry, src) {
				pairs = append(pairs, Pair{Entry: entry, Source: src})
				break
			}
		}
	}
	return pairs
}

// Deduplicate returns the entries with duplicates of source entries
// flagged. Nothing is dropped; downstream consumers decide what a flagged
// duplicate means. A nil comparator uses the default NaiveComparator.
func Deduplicate(entries, source []model.Transaction, cmp Comparator, windowDays int) []model.Transaction {
	if cmp == nil {
		cmp = NaiveComparator{}
	}

	out := make([]model.Transaction, 0, len(entries))
	for _, entry := range entries {
		for _, src := range inWindow(source, entry.Date, windowDays) {
			if cmp.Similar(entry, src) {
				entry.Duplicate = true
				break
			}
		}
		out = append(out, entry)
	}
	return out
}

// inWindow returns the source entries dated in [date-windowDays,
// date+windowDays], sorted by date.
func inWindow(source []model.Transaction, date time.Time, windowDays int) []model.Transaction {
	from := date.AddDate(0, 0, -windowDays)
	to := date.AddDate(0, 0, windowDays+1)

	var out []model.Transaction
	for _, src := range source {
		if !src.Date.Before(from) && src.Date.Before(to) {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// clockTime pulls the first wall-clock time found in the metadata values,
// scanning keys in sorted order.
func clockTime(metadata map[string]string) (time.Time, bool) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		m := txnTimePattern.FindStringSubmatch(metadata[k])
		if m == nil {
			continue
		}
		t, err := time.Parse("15:04:05", m[1])
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
