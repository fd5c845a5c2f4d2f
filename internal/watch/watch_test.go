// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.tex")
	other := filepath.Join(dir, "other.tex")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan error, 1)
	go func() {
		done <- File(ctx, path, func(text string) {
			mu.Lock()
			seen = append(seen, text)
			mu.Unlock()
		})
	}()

	// The watcher starts asynchronously, so keep rewriting until a change lands.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(other, []byte("ignored"), 0o644)
		_ = os.WriteFile(path, []byte("v1"), 0o644)
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	for _, text := range seen {
		assert.Contains(t, []string{"", "v1"}, text, "only the watched file is reported")
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("File did not return after cancel")
	}
}

func TestFile_MissingDirectory(t *testing.T) {
	err := File(context.Background(), filepath.Join(t.TempDir(), "missing", "doc.tex"), func(string) {})
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	target := "/work/doc.tex"
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write", fsnotify.Event{Name: target, Op: fsnotify.Write}, true},
		{"create", fsnotify.Event{Name: target, Op: fsnotify.Create}, true},
		{"unclean name", fsnotify.Event{Name: "/work/./doc.tex", Op: fsnotify.Write}, true},
		{"remove", fsnotify.Event{Name: target, Op: fsnotify.Remove}, false},
		{"chmod", fsnotify.Event{Name: target, Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: "/work/other.tex", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.ev, target))
		})
	}
}
