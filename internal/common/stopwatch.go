// Package common provides shared timing helpers.
package common

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Lap is one named interval recorded by a Stopwatch.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch records consecutive named intervals. It is not safe for
// concurrent use.
type Stopwatch struct {
	start time.Time
	last  time.Time
	laps  []Lap
	now   func() time.Time
}

// NewStopwatch starts a stopwatch at the current time.
func NewStopwatch() *Stopwatch {
	return newStopwatch(time.Now)
}

func newStopwatch(now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{start: t, last: t, now: now}
}

// Lap closes the current interval under name and returns its length.
func (s *Stopwatch) Lap(name string) time.Duration {
	t := s.now()
	d := t.Sub(s.last)
	s.last = t
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns a copy of the recorded intervals in order.
func (s *Stopwatch) Laps() []Lap {
	out := make([]Lap, len(s.laps))
	copy(out, s.laps)
	return out
}

// Total returns the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return s.now().Sub(s.start)
}

// MarshalLogObject lets a stopwatch be logged with zap.Object.
func (s *Stopwatch) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for _, l := range s.laps {
		enc.AddDuration(l.Name, l.Duration)
	}
	enc.AddDuration("total", s.last.Sub(s.start))
	return nil
}

// Field returns the laps as a single zap field. A nil stopwatch is skipped.
func (s *Stopwatch) Field() zap.Field {
	if s == nil {
		return zap.Skip()
	}
	return zap.Object("timings", s)
}

// String renders the laps as "name=duration" pairs.
func (s *Stopwatch) String() string {
	parts := make([]string, 0, len(s.laps))
	for _, l := range s.laps {
		parts = append(parts, fmt.Sprintf("%s=%v", l.Name, l.Duration))
	}
	return strings.Join(parts, " ")
}
