package domain

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// RepetitionType selects what a Repetition measures its wait from.
type RepetitionType string

const (
	// Relative waits from the moment the next date is computed.
	Relative RepetitionType = "RELATIVE"
	// Absolute waits from the previous recorded execution.
	Absolute RepetitionType = "ABSOLUTE"
)

func (t RepetitionType) Valid() bool { return t == Relative || t == Absolute }

// ParseRepetitionType accepts exactly "RELATIVE" or "ABSOLUTE".
func ParseRepetitionType(s string) (RepetitionType, error) {
	t := RepetitionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown repetition type %q", ErrInvalidModel, s)
	}
	return t, nil
}

// Repetition is an immutable recurrence policy. It is comparable, so == is
// equality and the value can key a map.
type Repetition struct {
	duration time.Duration
	typ      RepetitionType
}

// None never recurs.
var None = Repetition{duration: 0, typ: Absolute}

func NewRepetition(d time.Duration, t RepetitionType) (Repetition, error) {
	if d < 0 {
		return Repetition{}, fmt.Errorf("%w: repetition duration %s is negative", ErrInvalidModel, d)
	}
	if !t.Valid() {
		return Repetition{}, fmt.Errorf("%w: unknown repetition type %q", ErrInvalidModel, string(t))
	}
	return Repetition{duration: d, typ: t}, nil
}

func (r Repetition) Duration() time.Duration { return r.duration }
func (r Repetition) Type() RepetitionType    { return r.typ }

// Recurs reports whether the repetition ever produces a next date.
func (r Repetition) Recurs() bool { return r.duration != 0 }

func (r Repetition) Equal(o Repetition) bool { return r == o }

func (r Repetition) String() string {
	if !r.Recurs() {
		return "none"
	}
	return fmt.Sprintf("%s every %s", r.typ, r.duration)
}

// NextDate is Next on the system clock.
func (r Repetition) NextDate(previous time.Time) mo.Option[time.Time] {
	return r.Next(SystemClock, previous)
}

// Next returns the instant of the next execution, or None when the
// repetition has a zero duration.
//
// Relative repetitions ignore previous and count from clock.Now(). Absolute
// repetitions count from previous, which must not be the zero time.
func (r Repetition) Next(clock Clock, previous time.Time) mo.Option[time.Time] {
	if r.duration == 0 {
		return mo.None[time.Time]()
	}
	base := previous
	if r.typ == Relative {
		base = clock.Now()
	} else if previous.IsZero() {
		panic("domain: absolute repetition needs a previous execution time")
	}
	return mo.Some(base.Add(r.duration))
}
