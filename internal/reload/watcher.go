// Package reload re-ingests the knowledge directory when its files change.
// Changes are detected by polling, so it works on network and container
// mounts where inotify events are unreliable.
package reload

import (
	"context"
	"hash/fnv"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 30 * time.Second

// WatcherConfig configures the directory watcher.
type WatcherConfig struct {
	// Dir is the directory to watch. Only its direct entries are considered.
	Dir string

	// PollInterval is how often to scan Dir. Defaults to 30 seconds if zero.
	PollInterval time.Duration
}

func (c WatcherConfig) pollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// Event reports that the directory listing changed since the previous scan.
type Event struct {
	Dir string
}

// Watcher polls a directory and emits an Event when any entry is added,
// removed, resized or touched.
type Watcher struct {
	cfg     WatcherConfig
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a new directory watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call starts the goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Events returns the change notifications. Changes that arrive while an
// event is pending are coalesced into it.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher and waits for the poll loop to exit. Safe to call
// multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.pollIntervalOrDefault())
	defer ticker.Stop()

	last, _ := fingerprint(w.cfg.Dir)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current, ok := fingerprint(w.cfg.Dir)
			if !ok || current == last {
				continue
			}
			last = current
			select {
			case w.events <- Event{Dir: w.cfg.Dir}:
			default:
			}
		}
	}
}

// fingerprint hashes the name, size and modification time of every entry
// in dir. ok is false when dir cannot be read.
func fingerprint(dir string) (sum uint64, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, false
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		lines = append(lines, e.Name()+"\x00"+
			strconv.FormatInt(info.Size(), 10)+"\x00"+
			strconv.FormatInt(info.ModTime().UnixNano(), 10))
	}
	slices.Sort(lines)

	h := fnv.New64a()
	for _, l := range lines {
		_, _ = h.Write([]byte(l))
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64(), true
}
