// Package testutil holds helpers shared by package tests: synthetic gate
// frames and a scratch layout of the camera archive.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// GetProjectRoot walks up from the working directory to the directory holding go.mod.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Archive is a scratch video root and output directory for one test.
type Archive struct {
	VideoRoot string
	Output    string
}

// NewArchive creates an empty video root and output directory under t.TempDir().
func NewArchive(t *testing.T) Archive {
	t.Helper()
	root := t.TempDir()
	a := Archive{
		VideoRoot: filepath.Join(root, "video"),
		Output:    filepath.Join(root, "output"),
	}
	require.NoError(t, os.MkdirAll(a.VideoRoot, 0o750))
	require.NoError(t, os.MkdirAll(a.Output, 0o750))
	return a
}

// Place writes a JPEG frame at rel below the video root, creating parents.
func (a Archive) Place(t *testing.T, rel string, cfg FrameConfig) string {
	t.Helper()
	path := filepath.Join(a.VideoRoot, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	SaveImage(t, GenerateFrame(cfg), path)
	return path
}
