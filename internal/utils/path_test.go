package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:      "relative path",
			input:     "./test",
			wantError: false,
		},
		{
			name:      "absolute path",
			input:     "/tmp/test",
			wantError: false,
		},
		{
			name:      "home prefix",
			input:     "~/davsync",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ResolvePath(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if !tt.wantError && !filepath.IsAbs(result) {
				t.Errorf("ResolvePath(%q) = %q, want absolute", tt.input, result)
			}
		})
	}
}

func TestNormPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a/b/c.txt", "a/b/c.txt"},
		{"/a/b/", "a/b"},
		{".", ""},
	}
	for _, tt := range tests {
		if got := NormPath(tt.input); got != tt.want {
			t.Errorf("NormPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEnsureDirAndExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if !DirExists(dir) {
		t.Fatalf("expected %s to exist", dir)
	}
	if FileExists(dir) {
		t.Fatalf("FileExists should be false for a directory")
	}

	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(file) {
		t.Fatalf("expected file %s to exist", file)
	}
}
