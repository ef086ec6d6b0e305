package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_CopyFrame(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg bytes"), 0o600))

	fs, err := NewFileStore(filepath.Join(dir, "out", "nested"))
	require.NoError(t, err)

	dst, err := fs.CopyFrame(src, "20230929T060910")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "nested", "20230929T060910.jpg"), dst)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestFileStore_CopyFrameMissing(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = fs.CopyFrame(filepath.Join(t.TempDir(), "nope.jpg"), "x")
	require.ErrorIs(t, err, os.ErrNotExist)

	entries, err := os.ReadDir(fs.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_WriteResultOverwrites(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	first := pipeline.NewResultRecord([]assembler.CandidateCode{
		{Text: "12345", Score: assembler.Defined(0.95), Box: utils.Box{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}},
	})
	path, err := fs.WriteResult("stem", first)
	require.NoError(t, err)

	path2, err := fs.WriteResult("stem", pipeline.NewResultRecord(nil))
	require.NoError(t, err)
	assert.Equal(t, path, path2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result": []}`, string(data))

	entries, err := os.ReadDir(fs.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestRecorder_SaveWithoutMirror(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	r := NewRecorder(fs, nil, nil)

	codes := []assembler.CandidateCode{{Text: "AB-1234", Score: assembler.Undefined, Box: utils.Box{MaxX: 10, MaxY: 5}}}
	path, err := r.Save(context.Background(), FrameMeta{ObjectID: "obj"}, "20230929T060910", codes)
	require.NoError(t, err)

	var rec pipeline.ResultRecord
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Len(t, rec.Result, 1)
	assert.Equal(t, "AB-1234", rec.Result[0].Code)
	assert.False(t, rec.Result[0].Score.Valid)
}
