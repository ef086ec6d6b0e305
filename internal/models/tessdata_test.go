package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTessdataDir(t *testing.T) {
	tests := []struct {
		name           string
		explicitDir    string
		envVar         string
		expectedResult string
	}{
		{
			name:           "explicit directory takes precedence",
			explicitDir:    "/explicit/path",
			envVar:         "/env/path",
			expectedResult: "/explicit/path",
		},
		{
			name:           "environment variable used when no explicit dir",
			envVar:         "/env/path",
			expectedResult: "/env/path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvTessdataPrefix, tt.envVar)
			assert.Equal(t, tt.expectedResult, GetTessdataDir(tt.explicitDir))
		})
	}
}

func TestGetTessdataDir_ProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o600))
	sub := filepath.Join(root, "cmd", "x")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)
	t.Setenv(EnvTessdataPrefix, "")

	assert.Empty(t, GetTessdataDir(""), "no tessdata directory yet")

	require.NoError(t, os.Mkdir(filepath.Join(root, DefaultTessdataDir), 0o750))
	got := GetTessdataDir("")
	want, err := filepath.EvalSymlinks(filepath.Join(root, DefaultTessdataDir))
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, want, gotResolved)
}

func TestSplitLanguages(t *testing.T) {
	assert.Equal(t, []string{"eng"}, SplitLanguages("eng"))
	assert.Equal(t, []string{"eng", "deu"}, SplitLanguages(" eng + deu "))
	assert.Empty(t, SplitLanguages("+"))
}

func TestValidateLanguages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(TrainedDataPath(dir, "eng"), []byte("x"), 0o600))

	require.NoError(t, ValidateLanguages(dir, "eng"))
	require.NoError(t, ValidateLanguages("", "eng+deu"), "unknown directory is left to tesseract")
	require.ErrorContains(t, ValidateLanguages(dir, "eng+deu"), "deu")
	require.Error(t, ValidateLanguages(dir, ""))
}
