package download

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tubeload/tubeload/internal/session"
)

// assignDest resolves the destination path for a request: the preferred
// filename, or the URL path base, placed in req.Dir and made unique against
// the filesystem and against dests already claimed by other items.
func assignDest(req Request, taken func(string) bool) string {
	name := req.Filename
	if name == "" {
		name = filenameFromURL(req.URL)
	}
	return uniqueFilePath(filepath.Join(req.Dir, name), taken)
}

func filenameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := filepath.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return "download"
}

// uniqueFilePath returns a unique file path by appending (1), (2), etc. when
// the path is occupied, either on disk (final or staging name) or by another
// live item.
func uniqueFilePath(path string, taken func(string) bool) string {
	if pathFree(path, taken) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)

	// Continue an existing counter like "file (1)" instead of nesting one.
	base := name
	counter := 1
	cleanName := strings.TrimSpace(name)
	if len(cleanName) > 3 && cleanName[len(cleanName)-1] == ')' {
		if openParen := strings.LastIndexByte(cleanName, '('); openParen != -1 {
			numStr := cleanName[openParen+1 : len(cleanName)-1]
			if num, err := strconv.Atoi(numStr); err == nil && num > 0 {
				base = cleanName[:openParen]
				counter = num + 1
			}
		}
	}

	for i := 0; i < 100; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, counter+i, ext))
		if pathFree(candidate, taken) {
			return candidate
		}
	}
	return path
}

func pathFree(path string, taken func(string) bool) bool {
	if taken != nil && taken(path) {
		return false
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return false
	}
	if _, err := os.Stat(path + session.PartSuffix); !os.IsNotExist(err) {
		return false
	}
	return true
}
