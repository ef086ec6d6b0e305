package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FrameConfig describes a synthetic camera frame with one code plate.
type FrameConfig struct {
	Width, Height int
	// Plate is the painted rectangle the code sits on.
	Plate image.Rectangle
	Text  string
	// Vertical stacks the characters top to bottom.
	Vertical   bool
	Background color.Color
	PlateColor color.Color
	Ink        color.Color
}

// DefaultFrameConfig returns a 640x360 frame with a horizontal plate.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Width:      640,
		Height:     360,
		Plate:      image.Rect(100, 50, 185, 70),
		Text:       "12345",
		Background: color.Gray{Y: 90},
		PlateColor: color.White,
		Ink:        color.Black,
	}
}

// GenerateFrame renders cfg with the basic 7x13 bitmap font.
func GenerateFrame(cfg FrameConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: cfg.Background}, image.Point{}, draw.Src)
	draw.Draw(img, cfg.Plate, &image.Uniform{C: cfg.PlateColor}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{C: cfg.Ink}, Face: face}
	ascent := face.Metrics().Ascent.Ceil()

	if cfg.Vertical {
		lineHeight := face.Metrics().Height.Ceil() + 2
		x := cfg.Plate.Min.X + (cfg.Plate.Dx()-face.Advance)/2
		for i, r := range cfg.Text {
			drawer.Dot = fixed.P(x, cfg.Plate.Min.Y+2+i*lineHeight+ascent)
			drawer.DrawString(string(r))
		}
		return img
	}

	w := font.MeasureString(face, cfg.Text).Ceil()
	x := cfg.Plate.Min.X + (cfg.Plate.Dx()-w)/2
	y := cfg.Plate.Min.Y + (cfg.Plate.Dy()+ascent)/2
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(cfg.Text)
	return img
}

// SaveImage writes img to path; the format follows the extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, imaging.Save(img, path))
}

// CreateTestImage creates a uniformly coloured image.
func CreateTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}
