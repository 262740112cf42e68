package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tubeload/tubeload/internal/session"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUniqueFilePathFreePath(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "file.txt")
	got := uniqueFilePath(want, nil)
	if got != want {
		t.Errorf("uniqueFilePath() = %q, want %q", got, want)
	}
}

func TestUniqueFilePathCounts(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "file.txt")

	touch(t, input)
	got := uniqueFilePath(input, nil)
	want := filepath.Join(dir, "file(1).txt")
	if got != want {
		t.Errorf("uniqueFilePath() = %q, want %q", got, want)
	}

	touch(t, want)
	got = uniqueFilePath(input, nil)
	want = filepath.Join(dir, "file(2).txt")
	if got != want {
		t.Errorf("uniqueFilePath() = %q, want %q", got, want)
	}
}

func TestUniqueFilePathContinuesExistingCounter(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "file(1).txt")
	touch(t, input)

	got := uniqueFilePath(input, nil)
	want := filepath.Join(dir, "file(2).txt")
	if got != want {
		t.Errorf("uniqueFilePath() = %q, want %q", got, want)
	}
}

func TestUniqueFilePathAvoidsStagingFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "file.txt")
	touch(t, input+session.PartSuffix)

	got := uniqueFilePath(input, nil)
	want := filepath.Join(dir, "file(1).txt")
	if got != want {
		t.Errorf("uniqueFilePath() = %q, want %q", got, want)
	}
}

func TestUniqueFilePathAvoidsClaimedDests(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "file.txt")
	claimed := map[string]bool{input: true}

	got := uniqueFilePath(input, func(p string) bool { return claimed[p] })
	want := filepath.Join(dir, "file(1).txt")
	if got != want {
		t.Errorf("uniqueFilePath() = %q, want %q", got, want)
	}
}

func TestAssignDestFromURL(t *testing.T) {
	dir := t.TempDir()

	got := assignDest(Request{URL: "http://example.com/videos/clip.mp4", Dir: dir}, nil)
	want := filepath.Join(dir, "clip.mp4")
	if got != want {
		t.Errorf("assignDest() = %q, want %q", got, want)
	}

	got = assignDest(Request{URL: "http://example.com/", Dir: dir}, nil)
	want = filepath.Join(dir, "download")
	if got != want {
		t.Errorf("assignDest() = %q, want %q", got, want)
	}

	got = assignDest(Request{URL: "http://example.com/x", Filename: "named.webm", Dir: dir}, nil)
	want = filepath.Join(dir, "named.webm")
	if got != want {
		t.Errorf("assignDest() = %q, want %q", got, want)
	}
}
