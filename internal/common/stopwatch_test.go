package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeClock advances by the queued steps on every call.
func fakeClock(base time.Time, steps ...time.Duration) func() time.Time {
	t := base
	i := 0
	return func() time.Time {
		if i < len(steps) {
			t = t.Add(steps[i])
			i++
		}
		return t
	}
}

func TestStopwatch_Laps(t *testing.T) {
	base := time.Date(2023, 9, 29, 6, 9, 10, 0, time.UTC)
	sw := newStopwatch(fakeClock(base, 0, 10*time.Millisecond, 25*time.Millisecond))

	assert.Equal(t, 10*time.Millisecond, sw.Lap("detect"))
	assert.Equal(t, 25*time.Millisecond, sw.Lap("assemble"))
	assert.Equal(t, []Lap{{"detect", 10 * time.Millisecond}, {"assemble", 25 * time.Millisecond}}, sw.Laps())
	assert.Equal(t, 35*time.Millisecond, sw.Total())
	assert.Equal(t, "detect=10ms assemble=25ms", sw.String())
}

func TestStopwatch_LapsIsACopy(t *testing.T) {
	sw := NewStopwatch()
	sw.Lap("a")
	laps := sw.Laps()
	laps[0].Name = "changed"
	assert.Equal(t, "a", sw.Laps()[0].Name)
}

func TestStopwatch_ZapField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := time.Date(2023, 9, 29, 6, 9, 10, 0, time.UTC)
	sw := newStopwatch(fakeClock(base, 0, time.Second))
	sw.Lap("detect")

	zap.New(core).Info("done", sw.Field())
	require.Equal(t, 1, logs.Len())
	timings, ok := logs.All()[0].ContextMap()["timings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, time.Second, timings["detect"])
	assert.Equal(t, time.Second, timings["total"])
}

func TestStopwatch_NilField(t *testing.T) {
	var sw *Stopwatch
	assert.Equal(t, zap.Skip(), sw.Field())
}
