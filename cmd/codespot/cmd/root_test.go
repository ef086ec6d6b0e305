package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command in an isolated working directory so no
// stray codespot.yaml or .env is picked up.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfgFile = ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "codespot", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"listen", "image", "replay", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandHelp(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "gate alarm events")
	assert.Contains(t, out, "Available Commands:")
}

func TestFlagKeysBindToDefinedFlags(t *testing.T) {
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		for flag := range flagKeys {
			if f := c.Flags().Lookup(flag); f != nil {
				assert.NotEmpty(t, f.Usage, "%s --%s", c.Name(), flag)
			}
		}
	}
	for _, flag := range []string{"video-root", "output", "ingress", "ingress-url", "index-url", "metrics-addr"} {
		assert.NotNil(t, listenCmd.Flags().Lookup(flag), flag)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codespot.yaml")

	out, err := execute(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = execute(t, "", "config", "init", path)
	require.Error(t, err, "existing file is kept without --force")

	t.Setenv("CODESPOT_INDEX_PASSWORD", "hunter2")
	out, err = execute(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from "+path)
	assert.Contains(t, out, "video_root: /data/video")
	assert.NotContains(t, out, "hunter2")
}

func TestImageCommand_UnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	out, err := execute(t, "", "image", path)
	require.ErrorContains(t, err, "1 of 1 images failed")

	var res imageResult
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(out, "\n", 2)[0]), &res))
	assert.Equal(t, path, res.File)
	assert.Equal(t, "unsupported image format", res.Error)
	assert.NotNil(t, res.Result)
	assert.Empty(t, res.Result)
}

func TestReplayCommand_MissingFrame(t *testing.T) {
	videoRoot := t.TempDir()
	output := t.TempDir()
	event := `{"object_id":"obj-42","event_time":"2023-09-29T06:09:10.500000","camera_uuid":"cam1"}`

	out, err := execute(t, event, "replay", "--video-root", videoRoot, "--output", output, "-")
	require.Error(t, err)

	var rep replayReport
	require.NoError(t, json.Unmarshal([]byte(out[:strings.LastIndex(out, "}")+1]), &rep))
	assert.Equal(t, "obj-42", rep.ObjectID)
	assert.Equal(t, "image_located", rep.Stage)
	assert.False(t, rep.Indexed)
	assert.NotEmpty(t, rep.Error)

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplayCommand_DeadLettersNeedIndex(t *testing.T) {
	_, err := execute(t, "", "replay", "--dead-letters")
	require.ErrorContains(t, err, "index url is not configured")
}
