package intelligence

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultDecayRate is the daily decay rate used when none is configured.
const DefaultDecayRate = 0.1

// tailExponent is where the exponential curve hands over to a hyperbolic
// tail. Past it e^-x would underflow to 0 within a few hundred more units and
// equal ages would no longer be told apart.
const tailExponent = 50.0

// minRetention keeps the curve strictly positive.
const minRetention = math.SmallestNonzeroFloat64

// TimeDecay converts the age of a memory into a recency factor using the
// Ebbinghaus forgetting curve.
//
// The formula used is: R = e^(-x) with x = rate * hours_elapsed / 24.
// Beyond x = 50 the curve continues as e^(-50) * 51 / (1 + x), which keeps
// it continuous and strictly decreasing for any age a time.Duration holds.
//
// Different memory types forget at different speeds: a stated preference or a
// personality trait stays relevant much longer than a one-off task.
//
// Example usage:
//
//	decay := NewTimeDecay(0.1)
//	r := decay.DecayForItem(memory, time.Now())
type TimeDecay struct {
	// decayRate is the base rate per day. Higher values mean faster decay.
	decayRate float64

	// typeMultipliers scale decayRate per memory type.
	typeMultipliers map[MemoryType]float64
}

// NewTimeDecay creates a decay curve with the given daily rate.
//
// A non-positive rate falls back to DefaultDecayRate.
func NewTimeDecay(decayRate float64) *TimeDecay {
	if decayRate <= 0 {
		decayRate = DefaultDecayRate
	}
	return &TimeDecay{
		decayRate: decayRate,
		typeMultipliers: map[MemoryType]float64{
			MemoryTypePersonality: 0.25,
			MemoryTypePreference:  0.5,
			MemoryTypeProcedure:   0.5,
			MemoryTypeFact:        1.0,
			MemoryTypeEmotion:     1.0,
			MemoryTypeTask:        1.5,
			MemoryTypeThread:      2.0,
		},
	}
}

// DecayRate returns the base daily decay rate.
func (d *TimeDecay) DecayRate() float64 {
	return d.decayRate
}

// HalfLife returns the age at which the base curve reaches 0.5.
func (d *TimeDecay) HalfLife() time.Duration {
	days := math.Ln2 / d.decayRate
	return time.Duration(days * 24 * float64(time.Hour))
}

// GetDecayRateForType returns the decay rate for a specific memory type.
//
// Unknown or empty types use the base rate.
func (d *TimeDecay) GetDecayRateForType(memoryType MemoryType) float64 {
	if m, ok := d.typeMultipliers[memoryType]; ok {
		return d.decayRate * m
	}
	return d.decayRate
}

// Decay returns the recency factor for a reference instant.
//
// Parameters:
//   - ref: When the memory was last touched (nil if unknown)
//   - now: The instant the query is evaluated at
//
// Returns a value in (0, 1]:
//   - 1.0 when ref is nil or not in the past
//   - strictly decreasing with age, never exactly 0
func (d *TimeDecay) Decay(ref *time.Time, now time.Time) float64 {
	return retention(d.decayRate, ref, now)
}

// DecayString is Decay for string-encoded timestamps.
//
// An empty string means no timestamp and yields 1. A string that cannot be
// parsed returns ErrMalformedTimestamp.
func (d *TimeDecay) DecayString(ref string, now time.Time) (float64, error) {
	if strings.TrimSpace(ref) == "" {
		return 1, nil
	}
	t, err := ParseTimestamp(ref)
	if err != nil {
		return 0, err
	}
	return d.Decay(&t, now), nil
}

// DecayForItem computes recency for a memory, preferring LastAccessedAt and
// falling back to CreatedAt. The rate is adjusted for the memory type.
func (d *TimeDecay) DecayForItem(m *Memory, now time.Time) float64 {
	return retention(d.GetDecayRateForType(m.Type), ReferenceTime(m), now)
}

// ReferenceTime returns the instant recency is measured from, or nil.
func ReferenceTime(m *Memory) *time.Time {
	if m.LastAccessedAt != nil && !m.LastAccessedAt.IsZero() {
		return m.LastAccessedAt
	}
	if !m.CreatedAt.IsZero() {
		t := m.CreatedAt
		return &t
	}
	return nil
}

func retention(rate float64, ref *time.Time, now time.Time) float64 {
	if ref == nil {
		return 1.0
	}
	hoursElapsed := now.Sub(*ref).Hours()
	if hoursElapsed <= 0 {
		return 1.0
	}

	x := rate * hoursElapsed / 24.0
	var r float64
	if x <= tailExponent {
		r = math.Exp(-x)
	} else {
		r = math.Exp(-tailExponent) * (1 + tailExponent) / (1 + x)
	}
	if r < minRetention {
		return minRetention
	}
	if r > 1.0 {
		return 1.0
	}
	return r
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp encodings stores and callers produce.
//
// Accepted layouts are RFC 3339 (with or without fractional seconds), the
// SQL "2006-01-02 15:04:05" form and a plain date. Layouts without a zone are
// read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}
