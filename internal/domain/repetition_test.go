package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRepetition(t *testing.T, d time.Duration, typ RepetitionType) Repetition {
	t.Helper()
	r, err := NewRepetition(d, typ)
	require.NoError(t, err)
	return r
}

func TestRepetitionZeroDurationNeverRecurs(t *testing.T) {
	prev := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, typ := range []RepetitionType{Relative, Absolute} {
		r := mustRepetition(t, 0, typ)
		assert.True(t, r.NextDate(prev).IsAbsent(), "type %s", typ)
		assert.True(t, r.Next(FixedClock(prev), time.Time{}).IsAbsent(), "type %s with zero previous", typ)
	}
	assert.True(t, None.NextDate(prev).IsAbsent())
}

func TestRepetitionAbsoluteAddsToPrevious(t *testing.T) {
	r := mustRepetition(t, 10*time.Minute, Absolute)
	prev := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := FixedClock(time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC))

	next, ok := r.Next(clock, prev).Get()
	require.True(t, ok)
	assert.True(t, next.Equal(time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC)), "got %s", next)
}

func TestRepetitionRelativeCountsFromNow(t *testing.T) {
	r := mustRepetition(t, 10*time.Minute, Relative)
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	for _, prev := range []time.Time{
		{},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		now.Add(48 * time.Hour),
	} {
		next, ok := r.Next(FixedClock(now), prev).Get()
		require.True(t, ok)
		assert.True(t, next.Equal(now.Add(10*time.Minute)), "previous %s gave %s", prev, next)
	}
}

func TestRepetitionRelativeOnSystemClock(t *testing.T) {
	r := mustRepetition(t, time.Hour, Relative)
	before := time.Now()
	next, ok := r.NextDate(time.Time{}).Get()
	after := time.Now()
	require.True(t, ok)
	assert.False(t, next.Before(before.Add(time.Hour)))
	assert.False(t, next.After(after.Add(time.Hour)))
}

func TestRepetitionAbsoluteWithoutPreviousPanics(t *testing.T) {
	r := mustRepetition(t, time.Minute, Absolute)
	assert.Panics(t, func() { r.NextDate(time.Time{}) })
}

func TestRepetitionEquality(t *testing.T) {
	a := mustRepetition(t, 5*time.Minute, Relative)
	b := mustRepetition(t, 5*time.Minute, Relative)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a, b)

	seen := map[Repetition]int{a: 1}
	assert.Equal(t, 1, seen[b], "equal repetitions must key the same map slot")

	assert.False(t, a.Equal(mustRepetition(t, 6*time.Minute, Relative)))
	assert.False(t, a.Equal(mustRepetition(t, 5*time.Minute, Absolute)))
	_, found := seen[mustRepetition(t, 5*time.Minute, Absolute)]
	assert.False(t, found)
}

func TestNoneIsZeroAbsolute(t *testing.T) {
	assert.Equal(t, time.Duration(0), None.Duration())
	assert.Equal(t, Absolute, None.Type())
	assert.False(t, None.Recurs())
	assert.Equal(t, None, mustRepetition(t, 0, Absolute))
}

func TestNewRepetitionRejectsBadInput(t *testing.T) {
	_, err := NewRepetition(-time.Second, Absolute)
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = NewRepetition(time.Second, RepetitionType("WEEKLY"))
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestParseRepetitionType(t *testing.T) {
	got, err := ParseRepetitionType("RELATIVE")
	require.NoError(t, err)
	assert.Equal(t, Relative, got)

	got, err = ParseRepetitionType("ABSOLUTE")
	require.NoError(t, err)
	assert.Equal(t, Absolute, got)

	for _, bad := range []string{"", "relative", "Absolute", "NONE"} {
		_, err := ParseRepetitionType(bad)
		assert.ErrorIs(t, err, ErrInvalidModel, "input %q", bad)
	}
}
