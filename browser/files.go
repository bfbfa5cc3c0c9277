package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Watermark snapshots the names already present in a download directory so a
// later AwaitNewFile only sees files produced after it was taken.
type Watermark struct {
	dir   string
	known map[string]struct{}
	taken time.Time
}

// TakeWatermark records the current contents of dir.
func TakeWatermark(dir string) (*Watermark, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read download dir %s: %w", dir, err)
	}
	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		known[e.Name()] = struct{}{}
	}
	return &Watermark{dir: dir, known: known, taken: time.Now()}, nil
}

// AwaitNewFile polls dir for a file that appeared after the watermark, has
// one of the given extensions, and has stopped growing. It skips the
// browser's in-flight artifacts (.crdownload, .tmp) and returns
// ErrDownloadTimeout when the ceiling elapses first.
func (w *Watermark) AwaitNewFile(exts []string, settle, ceiling time.Duration) (string, error) {
	deadline := time.Now().Add(ceiling)
	var candidate string
	var lastSize int64 = -1
	var stableSince time.Time

	for time.Now().Before(deadline) {
		if candidate == "" {
			name, err := w.findNew(exts)
			if err != nil {
				return "", err
			}
			if name != "" {
				candidate = name
				lastSize = -1
			}
		}
		if candidate != "" {
			path := filepath.Join(w.dir, candidate)
			info, err := os.Stat(path)
			if err != nil {
				// The browser may rename on completion; rescan.
				candidate = ""
				continue
			}
			if info.Size() == lastSize && info.Size() > 0 {
				if stableSince.IsZero() {
					stableSince = time.Now()
				} else if time.Since(stableSince) >= settle {
					return path, nil
				}
			} else {
				lastSize = info.Size()
				stableSince = time.Time{}
			}
		}
		time.Sleep(pollInterval)
	}
	return "", fmt.Errorf("%w: no new file in %s after %s", ErrDownloadTimeout, w.dir, ceiling)
}

func (w *Watermark) findNew(exts []string) (string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", fmt.Errorf("failed to read download dir %s: %w", w.dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if _, seen := w.known[name]; seen {
			continue
		}
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".crdownload") || strings.HasSuffix(lower, ".tmp") {
			continue
		}
		if !matchesExt(lower, exts) {
			continue
		}
		return name, nil
	}
	return "", nil
}

func matchesExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// DownloadLock serializes downloads into a shared directory across sessions.
// Two concurrent exports into the same directory would race the watermark.
type DownloadLock struct {
	fl *flock.Flock
}

// NewDownloadLock creates a lock file alongside the download directory.
func NewDownloadLock(dir string) *DownloadLock {
	return &DownloadLock{fl: flock.New(filepath.Join(dir, ".download.lock"))}
}

// Acquire blocks until the lock is held or the timeout elapses.
func (l *DownloadLock) Acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire download lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("download lock busy after %s", timeout)
		}
		time.Sleep(pollInterval)
	}
}

// Release drops the lock. Safe to call when not held.
func (l *DownloadLock) Release() error {
	return l.fl.Unlock()
}
