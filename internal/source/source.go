// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source loads LaTeX drafts and plain-text input from disk.
package source

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported is returned for files that are not LaTeX sources.
var ErrUnsupported = errors.New("unsupported file type")

// MaxSize is the largest file Load accepts.
const MaxSize = 8 << 20

// SupportedExtensions lists the LaTeX source extensions Load accepts.
var SupportedExtensions = []string{".tex", ".latex", ".ltx"}

// SupportedMimeTypes lists the MIME types Load accepts when the extension is
// not one of SupportedExtensions.
var SupportedMimeTypes = []string{"application/x-tex", "text/x-tex", "application/x-latex"}

// IsSupported reports whether path names a LaTeX source.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if slices.Contains(SupportedExtensions, ext) {
		return true
	}
	if t := mime.TypeByExtension(ext); t != "" {
		mt, _, _ := mime.ParseMediaType(t)
		return slices.Contains(SupportedMimeTypes, mt)
	}
	return false
}

// Load reads a LaTeX source file. Files with other types return an error
// wrapping ErrUnsupported.
func Load(path string) (string, error) {
	if !IsSupported(path) {
		return "", fmt.Errorf("loading %s: %w", filepath.Base(path), ErrUnsupported)
	}
	return readText(path)
}

// LoadText reads any UTF-8 text file, for plain-text input to the transformer.
// A path of "-" reads r instead.
func LoadText(path string, r io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return checkText("stdin", data)
	}
	return readText(path)
}

func readText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("reading %s: is a directory", path)
	}
	if info.Size() > MaxSize {
		return "", fmt.Errorf("reading %s: file exceeds %d bytes", path, MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return checkText(filepath.Base(path), data)
}

func checkText(name string, data []byte) (string, error) {
	if len(data) > MaxSize {
		return "", fmt.Errorf("reading %s: input exceeds %d bytes", name, MaxSize)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("reading %s: not valid UTF-8 text", name)
	}
	return string(data), nil
}
