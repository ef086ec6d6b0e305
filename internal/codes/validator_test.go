package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		text    string
		want    []string
		ok      bool
	}{
		{"anchored accept", `^[A-Z]{2}-\d{4}$`, "AB-1234", []string{"AB-1234"}, true},
		{"anchored lowercase reject", `^[A-Z]{2}-\d{4}$`, "ab1234", nil, false},
		{"empty text", `^[A-Z]{2}-\d{4}$`, "", nil, false},
		{"search not full match", `\d{5}`, "ID 12345 X", []string{"12345"}, true},
		{"multiple matches", `\d{3}`, "123-456", []string{"123", "456"}, true},
		{"default pattern", DefaultPattern, "MSCU1234567", []string{"MSCU1234567"}, true},
		{"default pattern too short", DefaultPattern, "AB1", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewValidator(tt.pattern)
			require.NoError(t, err)
			got, ok := v.Validate(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_EmptyTextMatchesNothingEvenForEmptyPattern(t *testing.T) {
	// `x*` matches the empty string; empty text must still be rejected
	v := MustValidator(`x*`)
	_, ok := v.Validate("")
	assert.False(t, ok)
}

func TestNewValidator_Errors(t *testing.T) {
	_, err := NewValidator("")
	require.ErrorIs(t, err, ErrEmptyPattern)

	_, err = NewValidator("[unclosed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")

	assert.Panics(t, func() { MustValidator("(") })
	assert.Equal(t, `\d+`, MustValidator(`\d+`).Pattern())
}
