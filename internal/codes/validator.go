// Package codes gates assembled text against the configured code pattern.
package codes

import (
	"errors"
	"fmt"
	"regexp"
)

// DefaultPattern matches the container and plate identifiers seen at the gates.
const DefaultPattern = `[A-Z0-9]{4,}`

// ErrEmptyPattern is returned when no pattern is configured.
var ErrEmptyPattern = errors.New("code pattern must not be empty")

// Validator accepts text that contains at least one match of its pattern.
// The pattern is searched, not anchored, unless it carries its own anchors.
type Validator struct {
	re *regexp.Regexp
}

// NewValidator compiles pattern.
func NewValidator(pattern string) (*Validator, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile code pattern %q: %w", pattern, err)
	}
	return &Validator{re: re}, nil
}

// MustValidator is like NewValidator but panics on an invalid pattern.
func MustValidator(pattern string) *Validator {
	v, err := NewValidator(pattern)
	if err != nil {
		panic(err)
	}
	return v
}

// Pattern returns the source pattern.
func (v *Validator) Pattern() string { return v.re.String() }

// Validate returns every match of the pattern in text and whether there was
// at least one. Empty text is rejected without touching the regex.
func (v *Validator) Validate(text string) ([]string, bool) {
	if text == "" {
		return nil, false
	}
	matches := v.re.FindAllString(text, -1)
	return matches, len(matches) > 0
}
