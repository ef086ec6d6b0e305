// Package models locates the Tesseract language data used by the tesseract
// recognition backend.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTessdataDir is looked up below the project root.
const DefaultTessdataDir = "tessdata"

// EnvTessdataPrefix is Tesseract's own override for the data directory.
const EnvTessdataPrefix = "TESSDATA_PREFIX"

// TrainedDataExt is the extension of a Tesseract language file.
const TrainedDataExt = ".traineddata"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetTessdataDir returns the language data directory.
// Priority: 1. explicit dir, 2. TESSDATA_PREFIX, 3. <project root>/tessdata
// when it exists. An empty result leaves the choice to Tesseract's built-in
// default.
func GetTessdataDir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv(EnvTessdataPrefix); env != "" {
		return env
	}
	if root, err := findProjectRoot(); err == nil {
		p := filepath.Join(root, DefaultTessdataDir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p
		}
	}
	return ""
}

// SplitLanguages splits a Tesseract language list such as "eng+deu".
func SplitLanguages(list string) []string {
	var langs []string
	for l := range strings.SplitSeq(list, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// TrainedDataPath returns the language file path for lang below dir.
func TrainedDataPath(dir, lang string) string {
	return filepath.Join(dir, lang+TrainedDataExt)
}

// ValidateLanguages checks that every language in list has a trained data
// file in dir. An empty dir is not checked.
func ValidateLanguages(dir, list string) error {
	langs := SplitLanguages(list)
	if len(langs) == 0 {
		return errors.New("no tesseract language given")
	}
	if dir == "" {
		return nil
	}
	var missing []string
	for _, l := range langs {
		if _, err := os.Stat(TrainedDataPath(dir, l)); err != nil {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tesseract language data in %s: %s", dir, strings.Join(missing, ", "))
	}
	return nil
}
