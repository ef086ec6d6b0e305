package detector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/codespot/internal/utils"
)

func square(x, y, size float64) Polygon {
	return Polygon{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}}
}

func TestFilterPolygons(t *testing.T) {
	a, b, c, d := square(0, 0, 1), square(10, 0, 1), square(20, 0, 1), square(30, 0, 1)
	dets := []Detection{
		{Polygon: a, Score: 0.95},
		{Polygon: b, Score: 0.79},
		{Polygon: c, Score: 0.8},
		{Polygon: d, Score: math.NaN()},
	}

	tests := []struct {
		name      string
		threshold float64
		want      []Polygon
	}{
		{"default threshold keeps boundary", 0.8, []Polygon{a, c}},
		{"zero keeps all finite", 0, []Polygon{a, b, c}},
		{"above every score", 0.99, []Polygon{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterPolygons(dets, tt.threshold))
		})
	}
}

func TestFilterPolygonsEmpty(t *testing.T) {
	out := FilterPolygons(nil, 0.8)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestPolygonToBox(t *testing.T) {
	p := Polygon{{X: 1870, Y: 3}, {X: 1920, Y: 0}, {X: 1915, Y: 26}, {X: 1872, Y: 24}}
	assert.Equal(t, utils.Box{MinX: 1870, MinY: 0, MaxX: 1920, MaxY: 26}, PolygonToBox(p))

	point := PolygonToBox(Polygon{{X: 5, Y: 5}})
	assert.Equal(t, utils.Box{MinX: 5, MinY: 5, MaxX: 5, MaxY: 5}, point)

	boxes := PolygonsToBoxes([]Polygon{square(0, 0, 2), square(4, 4, 1)})
	require.Len(t, boxes, 2)
	assert.Equal(t, utils.Box{MinX: 4, MinY: 4, MaxX: 5, MaxY: 5}, boxes[1])
}

func TestPolygonFromFlat(t *testing.T) {
	poly, err := PolygonFromFlat([]float64{0, 0, 10, 0, 10, 5, 0, 5})
	require.NoError(t, err)
	require.Len(t, poly, 4)
	assert.Equal(t, utils.Point{X: 10, Y: 5}, poly[2])

	_, err = PolygonFromFlat([]float64{0, 0, 1})
	require.ErrorIs(t, err, ErrDegeneratePolygon)

	_, err = PolygonFromFlat([]float64{0, 0, 1, 1})
	require.ErrorIs(t, err, ErrDegeneratePolygon)
}
