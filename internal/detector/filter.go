package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/codespot/internal/utils"
)

// ErrDegeneratePolygon marks a capability response that cannot describe a region.
var ErrDegeneratePolygon = errors.New("degenerate polygon")

// FilterPolygons keeps the polygons whose score is at least threshold.
// Input order is preserved. NaN scores never pass.
func FilterPolygons(dets []Detection, threshold float64) []Polygon {
	out := make([]Polygon, 0, len(dets))
	for _, d := range dets {
		if d.Score >= threshold {
			out = append(out, d.Polygon)
		}
	}
	return out
}

// PolygonToBox returns the axis-aligned envelope of p.
// A single point yields a zero-area box.
func PolygonToBox(p Polygon) utils.Box {
	return utils.BoundingBox(p)
}

// PolygonsToBoxes converts every polygon to its envelope, preserving order.
func PolygonsToBoxes(polys []Polygon) []utils.Box {
	boxes := make([]utils.Box, len(polys))
	for i, p := range polys {
		boxes[i] = PolygonToBox(p)
	}
	return boxes
}

// PolygonFromFlat builds a polygon from interleaved coordinates
// [x0, y0, x1, y1, ...]. At least three points are required.
func PolygonFromFlat(coords []float64) (Polygon, error) {
	if len(coords)%2 != 0 {
		return nil, fmt.Errorf("%w: odd coordinate count %d", ErrDegeneratePolygon, len(coords))
	}
	if len(coords) < 6 {
		return nil, fmt.Errorf("%w: %d points", ErrDegeneratePolygon, len(coords)/2)
	}
	poly := make(Polygon, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		poly = append(poly, utils.Point{X: coords[i], Y: coords[i+1]})
	}
	return poly, nil
}
