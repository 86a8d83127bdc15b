package storetime

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStoreTimeEpoch(t *testing.T) {
	assert.Equal(t, int64(0), ToStoreTime(Epoch))
	assert.Equal(t, int64(86400), ToStoreTime(Epoch.Add(Day)))
}

func TestToStoreTimeTruncatesSubSecond(t *testing.T) {
	x := Epoch.Add(10*time.Second + 999*time.Millisecond)
	assert.Equal(t, int64(10), ToStoreTime(x))
}

func TestToStoreTimeNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	x := time.Date(2010, 1, 1, 2, 0, 5, 0, loc)
	assert.Equal(t, int64(5), ToStoreTime(x))
}

func TestFromStoreTimeIsUTC(t *testing.T) {
	got := FromStoreTime(3600)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(time.Date(2010, 1, 1, 1, 0, 0, 0, time.UTC)))
}

func TestRoundTrip(t *testing.T) {
	instants := []time.Time{
		Epoch,
		time.Date(2016, 2, 29, 12, 30, 45, 123456789, time.UTC),
		time.Date(2024, 1, 16, 23, 59, 59, 999999999, time.UTC),
		time.Date(2038, 1, 19, 3, 14, 8, 0, time.UTC),
		time.Date(2100, 12, 31, 23, 59, 59, 500000000, time.UTC),
	}

	for _, x := range instants {
		t.Run(x.Format(time.RFC3339Nano), func(t *testing.T) {
			got := FromStoreTime(ToStoreTime(x))
			require.True(t, got.Equal(x.Truncate(time.Second)), "got %v, want %v", got, x.Truncate(time.Second))
		})
	}
}

func TestThresholdScenario(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	threshold := Threshold(now, 7)

	cutoff := time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)
	require.Equal(t, ToStoreTime(cutoff), threshold)
	assert.True(t, FromStoreTime(threshold).Equal(cutoff))

	justBefore := ToStoreTime(time.Date(2024, 1, 16, 23, 59, 59, 0, time.UTC))
	assert.True(t, justBefore < threshold, "record expiring one second before the cutoff must match")
	assert.False(t, ToStoreTime(cutoff) < threshold, "record expiring at the cutoff must not match")
}

func TestThresholdNonPositiveHorizon(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, ToStoreTime(now), Threshold(now, 0))
	assert.Equal(t, ToStoreTime(now)-86400, Threshold(now, -1))
}

func TestToStoreTimeBeforeEpoch(t *testing.T) {
	x := Epoch.Add(-10*time.Second - 500*time.Millisecond)
	assert.Equal(t, int64(-10), ToStoreTime(x))
}

func TestThresholdLargeHorizon(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	far := Threshold(now, 200000)
	assert.Greater(t, far, ToStoreTime(now))
	assert.True(t, FromStoreTime(far).Equal(now.AddDate(0, 0, 200000)))

	past := Threshold(now, -200000)
	assert.Less(t, past, ToStoreTime(now))
	assert.True(t, FromStoreTime(past).Equal(now.AddDate(0, 0, -200000)))
}

func TestThresholdNonUTCClock(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	assert.Equal(t, ToStoreTime(now)+7*86400, Threshold(now, 7))
}

func TestFromStoreTimeSaturates(t *testing.T) {
	assert.True(t, FromStoreTime(math.MaxInt64).Equal(Latest))
	assert.True(t, FromStoreTime(ToStoreTime(Latest)).Equal(Latest))
}
