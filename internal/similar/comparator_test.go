package similar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftledger/sift/internal/model"
)

func txn(date string, amount float64, account string) model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Transaction{
		Date:      d,
		Amount:    amount,
		AccountID: account,
		Flag:      "*",
	}
}

func TestNaiveComparator(t *testing.T) {
	base := txn("2024-03-01", 25.50, "Assets:Checking")

	tests := []struct {
		mutate func(*model.Transaction)
		name   string
		want   bool
	}{
		{
			name:   "identical posting same day",
			mutate: func(*model.Transaction) {},
			want:   true,
		},
		{
			name:   "different amount",
			mutate: func(s *model.Transaction) { s.Amount = 26.00 },
			want:   false,
		},
		{
			name:   "different account",
			mutate: func(s *model.Transaction) { s.AccountID = "Assets:Savings" },
			want:   false,
		},
		{
			name:   "different date",
			mutate: func(s *model.Transaction) { s.Date = s.Date.AddDate(0, 0, 1) },
			want:   false,
		},
		{
			name:   "different flag",
			mutate: func(s *model.Transaction) { s.Flag = "!" },
			want:   false,
		},
		{
			name:   "padding flag never matches",
			mutate: func(s *model.Transaction) { s.Flag = "P" },
			want:   false,
		},
	}

	cmp := NaiveComparator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := base
			source := base
			entry.Source = "alipay.csv"
			source.Source = "wechat.csv"
			tt.mutate(&source)
			if tt.name == "padding flag never matches" {
				entry.Flag = "P"
			}
			assert.Equal(t, tt.want, cmp.Similar(entry, source))
		})
	}
}

func TestNaiveComparator_SameSourceFile(t *testing.T) {
	entry := txn("2024-03-01", 10, "Assets:Checking")
	source := entry
	entry.Source = "export.csv"
	source.Source = "export.csv"

	assert.False(t, NaiveComparator{}.Similar(entry, source))
}

func TestNaiveComparator_AlreadyMarkedDuplicate(t *testing.T) {
	entry := txn("2024-03-01", 10, "Assets:Checking")
	source := entry
	entry.Duplicate = true

	assert.False(t, NaiveComparator{}.Similar(entry, source))
}

func TestNaiveComparator_ClockTimeFromMetadata(t *testing.T) {
	entry := txn("2024-03-01", 10, "Assets:Checking")
	source := entry
	entry.Source = "a.csv"
	source.Source = "b.csv"

	entry.Metadata = map[string]string{"time": "2024-03-01 10:00:00"}
	source.Metadata = map[string]string{"time": "2024-03-01 10:01:30"}
	assert.True(t, NaiveComparator{}.Similar(entry, source))

	source.Metadata = map[string]string{"time": "2024-03-01 10:05:00"}
	assert.False(t, NaiveComparator{}.Similar(entry, source))

	// One timestamped, one not: not comparable, not a duplicate.
	source.Metadata = nil
	assert.False(t, NaiveComparator{}.Similar(entry, source))
}

func TestToleranceComparator(t *testing.T) {
	cmp := ToleranceComparator{}
	base := txn("2024-03-01", 100, "Assets:Checking")

	within := base
	within.Amount = 104
	assert.True(t, cmp.Similar(base, within))

	beyond := base
	beyond.Amount = 106
	assert.False(t, cmp.Similar(base, beyond))

	otherAccount := base
	otherAccount.Amount = 100
	otherAccount.AccountID = "Assets:Savings"
	assert.False(t, cmp.Similar(base, otherAccount))
}

func TestToleranceComparator_MaxDateDelta(t *testing.T) {
	cmp := ToleranceComparator{MaxDateDelta: 48 * time.Hour}

	a := txn("2024-03-01", 100, "Assets:Checking")
	near := txn("2024-03-02", 100, "Assets:Checking")
	far := txn("2024-03-05", 100, "Assets:Checking")

	assert.True(t, cmp.Similar(a, near))
	assert.False(t, cmp.Similar(a, far))
}

func TestToleranceComparator_ZeroAmounts(t *testing.T) {
	cmp := ToleranceComparator{}

	bothZero := txn("2024-03-01", 0, "Assets:Checking")
	assert.True(t, cmp.Similar(bothZero, bothZero))

	nonZero := txn("2024-03-01", 5, "Assets:Checking")
	assert.False(t, cmp.Similar(bothZero, nonZero))
	assert.False(t, cmp.Similar(nonZero, bothZero))
}

func TestFindSimilar_WindowAndFirstMatch(t *testing.T) {
	source := []model.Transaction{
		txn("2024-02-27", 100, "Assets:Checking"),
		txn("2024-02-29", 100, "Assets:Checking"),
		txn("2024-03-01", 100, "Assets:Checking"),
	}
	entries := []model.Transaction{txn("2024-03-01", 100, "Assets:Checking")}

	pairs := FindSimilar(entries, source, nil, 2)

	require.Len(t, pairs, 1)
	// Earliest in-window source entry wins; 02-27 is outside the window.
	assert.Equal(t, source[1].Date, pairs[0].Source.Date)
}

func TestFindSimilar_NoSource(t *testing.T) {
	entries := []model.Transaction{txn("2024-03-01", 100, "Assets:Checking")}
	assert.Empty(t, FindSimilar(entries, nil, nil, 2))
}

func TestDeduplicate_FlagsWithoutDropping(t *testing.T) {
	source := []model.Transaction{txn("2024-03-01", 100, "Assets:Checking")}
	entries := []model.Transaction{
		txn("2024-03-01", 100, "Assets:Checking"),
		txn("2024-03-01", 999, "Assets:Checking"),
	}
	for i := range entries {
		entries[i].Source = "new.csv"
	}
	source[0].Source = "old.csv"

	out := Deduplicate(entries, source, NaiveComparator{}, 1)

	require.Len(t, out, 2)
	assert.True(t, out[0].Duplicate)
	assert.False(t, out[1].Duplicate)
}
