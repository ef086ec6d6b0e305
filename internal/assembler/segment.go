package assembler

import (
	"container/list"
	"image"

	"github.com/MeKo-Tech/codespot/internal/mempool"
	"github.com/disintegration/imaging"
)

// Segmenter finds the bounding rectangles of character blobs in a crop.
// Rectangles are in the crop's coordinate space and unordered.
type Segmenter interface {
	Segment(img image.Image) []image.Rectangle
}

// SegmenterFunc adapts a function to Segmenter.
type SegmenterFunc func(img image.Image) []image.Rectangle

// Segment calls f(img).
func (f SegmenterFunc) Segment(img image.Image) []image.Rectangle { return f(img) }

// ComponentSegmenter is a pure-Go segmenter: the crop is converted to
// grayscale, pixels at or below Threshold become foreground (dark text on a
// light plate), and each 8-connected foreground component yields one
// rectangle. Components nested inside another component's rectangle are
// dropped so that only outermost blobs remain.
type ComponentSegmenter struct {
	Threshold uint8
}

// compStats is the bounding extent of one connected component.
type compStats struct {
	minX, minY, maxX, maxY int
}

func (c compStats) rect() image.Rectangle {
	return image.Rect(c.minX, c.minY, c.maxX+1, c.maxY+1)
}

// Segment implements Segmenter.
func (s ComponentSegmenter) Segment(img image.Image) []image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	mask := binarizeInverse(img, s.Threshold)
	defer mempool.PutMask(mask)
	comps := connectedComponents(mask, w, h)
	outer := dropNested(comps)

	rects := make([]image.Rectangle, len(outer))
	for i, c := range outer {
		rects[i] = c.rect().Add(b.Min)
	}
	return rects
}

// binarizeInverse marks pixels whose gray level is at most t.
func binarizeInverse(img image.Image, t uint8) []bool {
	gray := imaging.Grayscale(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	mask := mempool.GetMask(w * h)
	for y := range h {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w*4]
		for x := range w {
			if row[x*4] <= t {
				mask[y*w+x] = true
			}
		}
	}
	return mask
}

// connectedComponents labels 8-connected foreground regions in scanline order.
func connectedComponents(mask []bool, w, h int) []compStats {
	visited := mempool.GetMask(w * h)
	defer mempool.PutMask(visited)
	var comps []compStats
	for y := range h {
		for x := range w {
			idx := y*w + x
			if mask[idx] && !visited[idx] {
				comps = append(comps, performComponentBFS(mask, visited, w, h, x, y))
			}
		}
	}
	return comps
}

var neighbourDirs = [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

// performComponentBFS grows one component from a seed pixel.
func performComponentBFS(mask, visited []bool, w, h, startX, startY int) compStats {
	st := compStats{minX: startX, minY: startY, maxX: startX, maxY: startY}
	q := list.New()
	q.PushBack(startY*w + startX)
	visited[startY*w+startX] = true

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		cx, cy := ci%w, ci/w
		st.include(cx, cy)
		for _, d := range neighbourDirs {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if mask[ni] && !visited[ni] {
				visited[ni] = true
				q.PushBack(ni)
			}
		}
	}
	return st
}

func (c *compStats) include(x, y int) {
	if x < c.minX {
		c.minX = x
	}
	if y < c.minY {
		c.minY = y
	}
	if x > c.maxX {
		c.maxX = x
	}
	if y > c.maxY {
		c.maxY = y
	}
}

// dropNested removes components whose rectangle lies inside another's.
func dropNested(comps []compStats) []compStats {
	out := make([]compStats, 0, len(comps))
	for i, c := range comps {
		nested := false
		for j, o := range comps {
			if i == j {
				continue
			}
			if c.rect().In(o.rect()) && c.rect() != o.rect() {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, c)
		}
	}
	return out
}
