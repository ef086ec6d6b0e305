package pipeline

import (
	"encoding/json"
	"sort"

	"github.com/MeKo-Tech/codespot/internal/assembler"
)

// CodeEntry is one accepted code as persisted.
type CodeEntry struct {
	Code  string          `json:"code"`
	Score assembler.Score `json:"score"`
	// BBox is [x_min, y_min, x_max, y_max] of the merged region.
	BBox [4]float64 `json:"bbox"`
}

// ResultRecord is the per-frame artifact written to disk.
type ResultRecord struct {
	Result []CodeEntry `json:"result"`
}

// NewResultRecord converts accepted codes, keeping their order. The result
// list is never nil so an empty frame persists as {"result": []}.
func NewResultRecord(codes []assembler.CandidateCode) ResultRecord {
	entries := make([]CodeEntry, len(codes))
	for i, c := range codes {
		entries[i] = CodeEntry{Code: c.Text, Score: c.Score, BBox: c.Box.Coords()}
	}
	return ResultRecord{Result: entries}
}

// ToJSON serializes the record with four-space indentation.
func (r ResultRecord) ToJSON() ([]byte, error) {
	if r.Result == nil {
		r.Result = []CodeEntry{}
	}
	return json.MarshalIndent(r, "", "    ")
}

// SelectPrimary picks the code sent to the search index: the highest defined
// score wins, then the smallest x_min, then the smallest y_min, then the
// earliest in processing order. It reports false for an empty list.
func SelectPrimary(codes []assembler.CandidateCode) (assembler.CandidateCode, bool) {
	if len(codes) == 0 {
		return assembler.CandidateCode{}, false
	}
	idx := make([]int, len(codes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ca, cb := codes[idx[a]], codes[idx[b]]
		if cb.Score.Less(ca.Score) {
			return true
		}
		if ca.Score.Less(cb.Score) {
			return false
		}
		if ca.Box.MinX != cb.Box.MinX {
			return ca.Box.MinX < cb.Box.MinX
		}
		return ca.Box.MinY < cb.Box.MinY
	})
	return codes[idx[0]], true
}
