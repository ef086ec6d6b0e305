// Package index writes the primary code of a frame into the search index
// documents of its event. Updates are retried with backoff; the ones that
// still fail are kept as dead letters for manual replay.
package index

import (
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/codespot/internal/utils"
)

// Registration is the fragment stored under the document's registration field.
type Registration struct {
	Text          string `json:"text"`
	ImagePosition string `json:"image_position"`
}

// NewRegistration builds the registration of code located at box.
func NewRegistration(code string, box utils.Box) Registration {
	return Registration{Text: code, ImagePosition: FormatImagePosition(box)}
}

// FormatImagePosition renders "BBOX (x_min,y_min,x_max,y_max)". Whole numbers
// keep one decimal ("1870.0"); others use the shortest exact form.
func FormatImagePosition(box utils.Box) string {
	var sb strings.Builder
	sb.WriteString("BBOX (")
	for i, v := range box.Coords() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(formatCoord(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

func formatCoord(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e16 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// updateByQuery is the _update_by_query request body.
type updateByQuery struct {
	Query  query  `json:"query"`
	Script script `json:"script"`
}

type query struct {
	Bool struct {
		Filter struct {
			Terms map[string][]string `json:"terms"`
		} `json:"filter"`
	} `json:"bool"`
}

type script struct {
	Source string                  `json:"source"`
	Lang   string                  `json:"lang"`
	Params map[string]Registration `json:"params"`
}

const registrationScript = "ctx._source.registration = params.new_field"

func newUpdateByQuery(objectID string, reg Registration) updateByQuery {
	var q updateByQuery
	q.Query.Bool.Filter.Terms = map[string][]string{"object_id.keyword": {objectID}}
	q.Script = script{
		Source: registrationScript,
		Lang:   "painless",
		Params: map[string]Registration{"new_field": reg},
	}
	return q
}
