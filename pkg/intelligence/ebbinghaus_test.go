package intelligence_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
)

var refNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := refNow.Add(-d)
	return &t
}

func TestNewTimeDecay(t *testing.T) {
	assert.Equal(t, 0.2, intelligence.NewTimeDecay(0.2).DecayRate())
	assert.Equal(t, intelligence.DefaultDecayRate, intelligence.NewTimeDecay(0).DecayRate())
	assert.Equal(t, intelligence.DefaultDecayRate, intelligence.NewTimeDecay(-1).DecayRate())
}

func TestDecay(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)

	assert.Equal(t, 1.0, decay.Decay(nil, refNow), "missing timestamp")
	assert.Equal(t, 1.0, decay.Decay(ago(0), refNow), "just now")

	future := refNow.Add(time.Hour)
	assert.Equal(t, 1.0, decay.Decay(&future, refNow), "future timestamp")

	oneDay := decay.Decay(ago(24*time.Hour), refNow)
	assert.InDelta(t, math.Exp(-0.1), oneDay, 1e-12)
}

func TestDecayStrictlyDecreasing(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)

	ages := []time.Duration{
		time.Minute,
		time.Hour,
		24 * time.Hour,
		7 * 24 * time.Hour,
		30 * 24 * time.Hour,
		365 * 24 * time.Hour,
	}
	prev := 1.0
	for _, age := range ages {
		r := decay.Decay(ago(age), refNow)
		assert.Less(t, r, prev, "age %s", age)
		assert.Greater(t, r, 0.0, "age %s", age)
		prev = r
	}
}

func TestDecayNeverZero(t *testing.T) {
	decay := intelligence.NewTimeDecay(5)
	r := decay.Decay(ago(100*365*24*time.Hour), refNow)
	assert.Greater(t, r, 0.0)
}

func TestHalfLife(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)
	half := decay.HalfLife()
	assert.InDelta(t, 0.5, decay.Decay(ago(half), refNow), 1e-6)
}

func TestGetDecayRateForType(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)

	assert.InDelta(t, 0.025, decay.GetDecayRateForType(intelligence.MemoryTypePersonality), 1e-12)
	assert.InDelta(t, 0.05, decay.GetDecayRateForType(intelligence.MemoryTypePreference), 1e-12)
	assert.InDelta(t, 0.1, decay.GetDecayRateForType(intelligence.MemoryTypeFact), 1e-12)
	assert.InDelta(t, 0.2, decay.GetDecayRateForType(intelligence.MemoryTypeThread), 1e-12)
	assert.InDelta(t, 0.1, decay.GetDecayRateForType(""), 1e-12)
}

func TestDecayForItemPrefersLastAccess(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)

	stale := &intelligence.Memory{ID: "a", CreatedAt: refNow.Add(-30 * 24 * time.Hour)}
	touched := &intelligence.Memory{
		ID:             "b",
		CreatedAt:      refNow.Add(-30 * 24 * time.Hour),
		LastAccessedAt: ago(time.Hour),
	}

	assert.Greater(t, decay.DecayForItem(touched, refNow), decay.DecayForItem(stale, refNow))
	assert.Equal(t, 1.0, decay.DecayForItem(&intelligence.Memory{ID: "c"}, refNow))
}

func TestDecayForItemTypeAware(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)
	created := refNow.Add(-10 * 24 * time.Hour)

	preference := &intelligence.Memory{ID: "p", Type: intelligence.MemoryTypePreference, CreatedAt: created}
	task := &intelligence.Memory{ID: "t", Type: intelligence.MemoryTypeTask, CreatedAt: created}

	assert.Greater(t, decay.DecayForItem(preference, refNow), decay.DecayForItem(task, refNow))
}

func TestDecayString(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)

	r, err := decay.DecayString("", refNow)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)

	r, err = decay.DecayString("2026-03-09T09:30:00Z", refNow)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-0.1), r, 1e-12)

	_, err = decay.DecayString("yesterday-ish", refNow)
	assert.ErrorIs(t, err, intelligence.ErrMalformedTimestamp)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2026-03-09T09:30:00Z", want: time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)},
		{in: "2026-03-09T09:30:00.123456789Z", want: time.Date(2026, 3, 9, 9, 30, 0, 123456789, time.UTC)},
		{in: "2026-03-09T09:30:00", want: time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)},
		{in: "2026-03-09 09:30:00", want: time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)},
		{in: "2026-03-09", want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
		{in: " 2026-03-09 ", want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := intelligence.ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := intelligence.ParseTimestamp("09/03/2026")
	assert.ErrorIs(t, err, intelligence.ErrMalformedTimestamp)
}

func TestDecayStaysStrictlyDecreasingForOldMemories(t *testing.T) {
	decay := intelligence.NewTimeDecay(0.1)
	year := 365 * 24 * time.Hour

	thread := func(age time.Duration) float64 {
		m := &intelligence.Memory{Type: intelligence.MemoryTypeThread, CreatedAt: *ago(age)}
		return decay.DecayForItem(m, refNow)
	}
	assert.Greater(t, thread(11*year), thread(15*year))
	assert.Greater(t, decay.Decay(ago(21*year), refNow), decay.Decay(ago(30*year), refNow))

	// Across the hand-over from the exponential to the tail (500 days here).
	day := 24 * time.Hour
	prev := 1.0
	for _, days := range []int{400, 499, 500, 501, 600, 5000, 50000, 100000} {
		r := decay.Decay(ago(time.Duration(days)*day), refNow)
		assert.Less(t, r, prev, "%d days", days)
		assert.Greater(t, r, 0.0, "%d days", days)
		prev = r
	}

	atHandOver := decay.Decay(ago(500*day), refNow)
	justPast := decay.Decay(ago(500*day+time.Minute), refNow)
	assert.InEpsilon(t, atHandOver, justPast, 1e-4, "the curve is continuous")
}
