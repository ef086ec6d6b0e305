// Package orientation decides whether a merged text region holds a
// horizontal or a vertical code, from its aspect ratio and absolute size.
package orientation

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/codespot/internal/utils"
)

// Orientation is the layout of a code's characters inside a region.
type Orientation int

const (
	// Rejected regions produce no candidate code.
	Rejected Orientation = iota
	Horizontal
	Vertical
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return "rejected"
	}
}

// MarshalText renders the orientation name in JSON and logs.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Mode restricts which orientations may be produced.
type Mode string

const (
	ModeHorizontal Mode = "horizontal"
	ModeVertical   Mode = "vertical"
	ModeBoth       Mode = "both"
)

// ParseMode parses a configured mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeHorizontal, ModeVertical, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("invalid orientation mode %q (must be one of: horizontal, vertical, both)", s)
	}
}

func (m Mode) allowsVertical() bool   { return m == ModeVertical || m == ModeBoth }
func (m Mode) allowsHorizontal() bool { return m == ModeHorizontal || m == ModeBoth }

// Config holds the decision thresholds. All comparisons are strict.
type Config struct {
	Mode Mode
	// A region is vertical when width/height is below VerticalMaxAspect
	// and its width is below VerticalMaxWidth.
	VerticalMaxAspect float64
	VerticalMaxWidth  float64
	// A region is horizontal when width/height is above HorizontalMinAspect,
	// its height is below HorizontalMaxHeight and its width below HorizontalMaxWidth.
	HorizontalMinAspect float64
	HorizontalMaxHeight float64
	HorizontalMaxWidth  float64
}

// DefaultConfig returns the thresholds tuned for the gate cameras.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeBoth,
		VerticalMaxAspect:   0.4,
		VerticalMaxWidth:    80,
		HorizontalMinAspect: 2.5,
		HorizontalMaxHeight: 80,
		HorizontalMaxWidth:  250,
	}
}

// Validate checks that the thresholds describe a usable decision table.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.VerticalMaxAspect <= 0 || c.HorizontalMinAspect <= 0 {
		return fmt.Errorf("aspect thresholds must be positive (vertical %.3f, horizontal %.3f)",
			c.VerticalMaxAspect, c.HorizontalMinAspect)
	}
	if c.VerticalMaxAspect > c.HorizontalMinAspect {
		return fmt.Errorf("vertical max aspect %.3f exceeds horizontal min aspect %.3f",
			c.VerticalMaxAspect, c.HorizontalMinAspect)
	}
	if c.VerticalMaxWidth <= 0 || c.HorizontalMaxHeight <= 0 || c.HorizontalMaxWidth <= 0 {
		return fmt.Errorf("size gates must be positive")
	}
	return nil
}

// Resolver classifies merged regions.
type Resolver struct {
	cfg Config
}

// NewResolver validates cfg and returns a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg}, nil
}

// Config returns the resolver's thresholds.
func (r *Resolver) Config() Config { return r.cfg }

// Resolve applies the decision table; the first matching row wins.
// Boxes with no height are rejected.
func (r *Resolver) Resolve(box utils.Box) Orientation {
	w, h := box.Width(), box.Height()
	if !(h > 0) {
		return Rejected
	}
	aspect := w / h

	switch {
	case aspect < r.cfg.VerticalMaxAspect && r.cfg.Mode.allowsVertical():
		if w < r.cfg.VerticalMaxWidth {
			return Vertical
		}
		return Rejected
	case aspect > r.cfg.HorizontalMinAspect && r.cfg.Mode.allowsHorizontal():
		if h < r.cfg.HorizontalMaxHeight && w < r.cfg.HorizontalMaxWidth {
			return Horizontal
		}
		return Rejected
	default:
		return Rejected
	}
}
