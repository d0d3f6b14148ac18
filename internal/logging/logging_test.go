package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesFileAndTap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.log")
	logger := New(Options{File: path, MaxSizeMB: 1})
	defer logger.Close()

	lines := make(chan string, 4)
	unlisten := logger.Tap.Listen(lines)
	defer unlisten()

	logger.Printf("Link: connected")

	select {
	case line := <-lines:
		assert.Contains(t, line, "Link: connected")
		assert.NotContains(t, line, "\n")
	case <-time.After(time.Second):
		t.Fatal("tap did not receive the line")
	}

	require.NoError(t, logger.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Link: connected\n")
}

func TestTap_SplitsMultilineWrites(t *testing.T) {
	tap := NewTap()
	lines := make(chan string, 4)
	tap.Listen(lines)

	n, err := tap.Write([]byte("PANIC: boom\ngoroutine 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 24, n)
	assert.Equal(t, "PANIC: boom", <-lines)
	assert.Equal(t, "goroutine 1", <-lines)
}

func TestLogger_WithoutFile(t *testing.T) {
	logger := New(Options{})
	logger.Printf("Session: started")
	assert.NoError(t, logger.Close())
}
