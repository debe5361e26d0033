package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a set of files and reloads a value when their content
// changes. A reload that fails keeps the previous value.
type Watcher[T any] struct {
	paths    []string
	load     func() (T, error)
	interval time.Duration
	onChange func(old, new T)

	mu       sync.Mutex
	current  T
	done     chan struct{}
	stopOnce sync.Once

	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*watcherOptions)

type watcherOptions struct {
	interval time.Duration
}

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(o *watcherOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// NewWatcher loads the initial value with load and starts polling paths.
// onChange runs on the polling goroutine after every successful reload of
// changed content.
func NewWatcher[T any](paths []string, load func() (T, error), onChange func(old, new T), opts ...WatcherOption) (*Watcher[T], error) {
	o := watcherOptions{interval: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	w := &Watcher[T]{
		paths:    paths,
		load:     load,
		interval: o.interval,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	hash, mtime, err := w.fingerprint()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial read: %w", err)
	}
	v, err := load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.lastHash, w.lastMtime = v, hash, mtime

	go w.poll()
	return w, nil
}

// WatchConfig watches a config file.
func WatchConfig(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher[*Config], error) {
	return NewWatcher([]string{path}, func() (*Config, error) { return Load(path) }, onChange, opts...)
}

// Current returns the most recently loaded value.
func (w *Watcher[T]) Current() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops polling.
func (w *Watcher[T]) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher[T]) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher[T]) check() {
	mtime, err := w.newestMtime()
	if err != nil {
		slog.Warn("watcher: cannot stat files", "paths", w.paths, "err", err)
		return
	}
	w.mu.Lock()
	unchanged := mtime.Equal(w.lastMtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	hash, mtime, err := w.fingerprint()
	if err != nil {
		slog.Warn("watcher: cannot read files", "paths", w.paths, "err", err)
		return
	}
	w.mu.Lock()
	if hash == w.lastHash {
		// Touched, content identical.
		w.lastMtime = mtime
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	v, err := w.load()
	if err != nil {
		slog.Warn("watcher: reload failed, keeping previous version", "paths", w.paths, "err", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current, w.lastHash, w.lastMtime = v, hash, mtime
	w.mu.Unlock()

	slog.Info("watcher: reloaded", "paths", w.paths)
	if w.onChange != nil {
		w.onChange(old, v)
	}
}

func (w *Watcher[T]) newestMtime() (time.Time, error) {
	var newest time.Time
	for _, p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}, err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, nil
}

// fingerprint hashes every path's name and content.
func (w *Watcher[T]) fingerprint() ([sha256.Size]byte, time.Time, error) {
	var buf bytes.Buffer
	for _, p := range w.paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return [sha256.Size]byte{}, time.Time{}, err
		}
		fmt.Fprintf(&buf, "%s\x00%d\x00", p, len(data))
		buf.Write(data)
	}
	mtime, err := w.newestMtime()
	if err != nil {
		return [sha256.Size]byte{}, time.Time{}, err
	}
	return sha256.Sum256(buf.Bytes()), mtime, nil
}
