// Package playlist holds the play-list model the controller walks and the
// folder watcher that keeps a zone's list in sync with a media directory.
package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gapless-player/internal/logging"
	"gapless-player/internal/media"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// OnChangeFunc is a callback invoked when the playlist changes.
// It receives the updated sorted list of absolute file paths.
type OnChangeFunc func(files []string)

// Scan lists the playable media files directly inside dir, sorted by name.
func Scan(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read playlist dir: %w", err)
	}

	files := lo.FilterMap(entries, func(e os.FileInfo, _ int) (string, bool) {
		if e.IsDir() || !media.IsSupported(e.Name()) {
			return "", false
		}
		return filepath.Join(dir, e.Name()), true
	})
	sort.Strings(files)
	return files, nil
}

// Watcher monitors a directory for file system events and maintains
// a sorted list of playable media files (videos and images).
type Watcher struct {
	mu       sync.RWMutex
	fs       afero.Fs
	dir      string
	files    []string
	watcher  *fsnotify.Watcher
	onChange OnChangeFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	log      logrus.FieldLogger
}

// NewWatcher creates a new Watcher for the given directory.
// The onChange callback fires whenever the file list changes.
func NewWatcher(dir string, onChange OnChangeFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       afero.NewOsFs(),
		dir:      dir,
		watcher:  fw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		log:      logging.For("watcher").WithField("dir", dir),
	}

	// Initial scan before the watch loop starts.
	w.scan()

	return w, nil
}

func (w *Watcher) scan() {
	files, err := Scan(w.fs, w.dir)
	if err != nil {
		w.log.Warnf("scan error: %v", err)
		return
	}

	w.mu.Lock()
	w.files = files
	w.mu.Unlock()

	w.log.Debugf("scanned %d media files", len(files))
}

// Files returns the current sorted list of media file paths.
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	dst := make([]string, len(w.files))
	copy(dst, w.files)
	return dst
}

// Start begins watching the directory for changes. It blocks until
// Stop() is called or the watcher encounters a fatal error.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	w.log.Info("monitoring")

	for {
		select {
		case <-w.stopCh:
			w.log.Info("stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isRelevantEvent(event) {
				continue
			}
			before := w.Files()
			w.log.Debugf("event: %s %s", event.Op, event.Name)
			w.scan()
			after := w.Files()
			if w.onChange != nil && !lo.ElementsMatch(before, after) {
				w.onChange(after)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("error: %v", err)
		}
	}
}

// Stop halts the watcher loop and releases the fsnotify resources.
// It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

// isRelevantEvent filters for file create, remove, and rename events
// that would change the playlist contents.
func isRelevantEvent(e fsnotify.Event) bool {
	return e.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
