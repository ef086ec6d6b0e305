package tesseract

import "errors"

// ErrNoBackend is returned by New when the binary was built without Tesseract.
var ErrNoBackend = errors.New("tesseract: no backend linked; build with -tags=tesseract")

// Options configures the Tesseract client.
type Options struct {
	Language string
	// Whitelist restricts the characters Tesseract may emit. Empty means no restriction.
	Whitelist string
	// PageSegMode is a Tesseract PSM value; 7 treats the crop as a single text line.
	PageSegMode int
	// TessdataDir holds the <lang>.traineddata files; see models.GetTessdataDir.
	TessdataDir string
}

// DefaultOptions suits container and plate codes.
func DefaultOptions() Options {
	return Options{
		Language:    "eng",
		Whitelist:   "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-",
		PageSegMode: 7,
	}
}
