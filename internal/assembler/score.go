package assembler

import (
	"bytes"
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Score is a confidence that may be undefined. An undefined score means no
// character was recognized; it is never coerced to zero.
type Score struct {
	Value float64
	Valid bool
}

// Undefined is the score of a region with nothing recognized.
var Undefined = Score{}

// Defined wraps a known confidence value.
func Defined(v float64) Score { return Score{Value: v, Valid: true} }

// MeanScore averages per-character scores. An empty set is Undefined.
func MeanScore(scores []float64) Score {
	if len(scores) == 0 {
		return Undefined
	}
	return Defined(stat.Mean(scores, nil))
}

// Less orders scores with every defined value above Undefined.
func (s Score) Less(o Score) bool {
	switch {
	case !s.Valid:
		return o.Valid
	case !o.Valid:
		return false
	default:
		return s.Value < o.Value
	}
}

// MarshalJSON writes null for an undefined score.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON reads a number or null.
func (s *Score) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Defined(v)
	return nil
}
