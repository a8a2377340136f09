package playlist

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScanFindsMediaFiles verifies that Scan picks up supported
// video and image extensions and sorts them alphabetically.
func TestScanFindsMediaFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/playlist"

	for _, f := range []string{
		"charlie.mp4",
		"alpha.mkv",
		"bravo.avi",
		"notes.txt",
		"readme.md",
		"delta.hevc",
		"echo.webm",
		"foxtrot.jpg",
		"golf.png",
	} {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, f), []byte("test"), 0o644))
	}

	got, err := Scan(fs, dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "alpha.mkv"),
		filepath.Join(dir, "bravo.avi"),
		filepath.Join(dir, "charlie.mp4"),
		filepath.Join(dir, "delta.hevc"),
		filepath.Join(dir, "echo.webm"),
		filepath.Join(dir, "foxtrot.jpg"),
		filepath.Join(dir, "golf.png"),
	}, got)
}

func TestScanIgnoresDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/playlist/subdir.mp4", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/playlist/video.mp4", []byte("test"), 0o644))

	got, err := Scan(fs, "/playlist")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("/playlist", "video.mp4")}, got)
}

func TestScanMissingDir(t *testing.T) {
	_, err := Scan(afero.NewMemMapFs(), "/nowhere")
	assert.Error(t, err)
}

func TestNewWatcherInitialScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0o644))

	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4")}, w.Files())
}

// TestWatcherDetectsNewFile verifies the onChange callback fires
// when a new media file is added to the watched directory.
func TestWatcherDetectsNewFile(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var lastFiles []string
	changed := make(chan struct{}, 1)

	w, err := NewWatcher(dir, func(files []string) {
		mu.Lock()
		lastFiles = files
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	go w.Start()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new_video.mp4"), []byte("data"), 0o644))

	select {
	case <-changed:
		mu.Lock()
		defer mu.Unlock()
		assert.Len(t, lastFiles, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for onChange callback")
	}
}

// TestWatcherDetectsRemoval verifies the callback fires when a file is removed.
func TestWatcherDetectsRemoval(t *testing.T) {
	dir := t.TempDir()

	testFile := filepath.Join(dir, "existing.mp4")
	require.NoError(t, os.WriteFile(testFile, []byte("data"), 0o644))

	changed := make(chan []string, 2)

	w, err := NewWatcher(dir, func(files []string) {
		changed <- files
	})
	require.NoError(t, err)
	require.Len(t, w.Files(), 1)

	go w.Start()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Remove(testFile))

	select {
	case files := <-changed:
		assert.Empty(t, files)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for removal callback")
	}
}

// TestWatcherIgnoresUnsupportedFiles checks that non-media files do not
// trigger a playlist change.
func TestWatcherIgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()

	changed := make(chan []string, 1)
	w, err := NewWatcher(dir, func(files []string) {
		changed <- files
	})
	require.NoError(t, err)

	go w.Start()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case files := <-changed:
		t.Fatalf("unexpected change: %v", files)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
