// Package clipboard watches the system clipboard for URLs worth downloading.
package clipboard

import (
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
)

var clipboardReadAll = clipboard.ReadAll

const maxClipboardLen = 4096

// Validator decides whether clipboard text contains a downloadable URL.
type Validator struct {
	allowedSchemes map[string]bool
}

func NewValidator() *Validator {
	return &Validator{
		allowedSchemes: map[string]bool{"http": true, "https": true},
	}
}

// ExtractURL returns the first valid http(s) URL found in text, or "" when
// there is none. Oversized clipboard content is rejected outright.
func (v *Validator) ExtractURL(text string) string {
	if len(text) > maxClipboardLen {
		return ""
	}
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
			continue
		}
		parsed, err := url.Parse(field)
		if err != nil || parsed.Host == "" || !v.allowedSchemes[parsed.Scheme] {
			continue
		}
		return parsed.String()
	}
	return ""
}

// ReadURL reads the system clipboard and returns a downloadable URL from its
// content, or "" when there is none.
func ReadURL() string {
	text, err := clipboardReadAll()
	if err != nil {
		return ""
	}
	validator := NewValidator()
	return validator.ExtractURL(text)
}
