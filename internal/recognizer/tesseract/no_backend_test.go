//go:build !tesseract

package tesseract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutBackend(t *testing.T) {
	r, err := New(DefaultOptions())
	require.ErrorIs(t, err, ErrNoBackend)
	assert.Nil(t, r)

	var zero Recognizer
	_, ok, err := zero.Recognize(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoBackend)
	assert.False(t, ok)
	assert.NoError(t, zero.Close())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "eng", opts.Language)
	assert.Equal(t, 7, opts.PageSegMode)
	assert.Contains(t, opts.Whitelist, "Z")
}
