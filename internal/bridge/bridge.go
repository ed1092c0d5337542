// Package bridge polls the status file on a fixed interval and
// republishes changed records through a callback. An fsnotify watch on
// the status file's directory nudges an immediate poll between ticks;
// the interval tick stays the ground truth because the external writer
// replaces the file without atomic renames.
package bridge

import (
	"path/filepath"
	"sync"
	"time"

	"facemirror/internal/logging"
	"facemirror/internal/metrics"
	"facemirror/internal/profile"
	"facemirror/internal/status"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the poll interval used when none is given.
	DefaultInterval = time.Second

	nudgeDebounce = 100 * time.Millisecond
)

// UpdateFunc receives each changed status record together with the
// resolved display image path. Records are passed by value; callees never
// share state with the bridge.
type UpdateFunc func(rec status.Record, imagePath string)

// Bridge drives the poll loop.
type Bridge struct {
	mu       sync.Mutex
	store    *status.Store
	profiles *profile.Library
	onUpdate UpdateFunc

	interval time.Duration
	cancel   chan struct{}
	loopDone chan struct{}
	running  bool

	// startMu serializes Start's stop-wait-respawn sequence so two
	// concurrent restarts cannot both spawn a loop.
	startMu sync.Mutex

	fsWatcher *fsnotify.Watcher
	nudge     chan struct{}
	closed    chan struct{}
}

// New creates a bridge over the store. The fsnotify watch is best-effort:
// if it cannot be established the bridge still works on the timer alone.
func New(store *status.Store, profiles *profile.Library, onUpdate UpdateFunc) *Bridge {
	b := &Bridge{
		store:    store,
		profiles: profiles,
		onUpdate: onUpdate,
		interval: DefaultInterval,
		nudge:    make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("fsnotify unavailable, polling on timer only", zap.Error(err))
		return b
	}
	if err := fsW.Add(filepath.Dir(store.Path())); err != nil {
		logging.Warn("cannot watch status directory, polling on timer only",
			zap.String("dir", filepath.Dir(store.Path())), zap.Error(err))
		fsW.Close()
		return b
	}

	b.fsWatcher = fsW
	go b.watchLoop(fsW)
	return b
}

// Start begins polling at the given interval (DefaultInterval when
// non-positive). Calling Start while running restarts the timer with the
// new interval, waiting for the previous loop to exit so polls never
// overlap across the restart.
func (b *Bridge) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	b.startMu.Lock()
	defer b.startMu.Unlock()

	b.mu.Lock()
	oldCancel, oldDone := b.cancel, b.loopDone
	wasRunning := b.running
	b.running = false
	b.mu.Unlock()

	if wasRunning {
		close(oldCancel)
	}
	if oldDone != nil {
		<-oldDone
	}

	b.mu.Lock()
	b.interval = interval
	b.cancel = make(chan struct{})
	b.loopDone = make(chan struct{})
	b.running = true
	cancel, done := b.cancel, b.loopDone
	b.mu.Unlock()

	logging.Info("recognition polling started", zap.Duration("interval", interval))
	go b.loop(interval, cancel, done)
}

// Stop cancels the poll timer. Safe to call when not running.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	close(b.cancel)
	b.running = false
	logging.Info("recognition polling stopped")
}

// Running reports whether the poll loop is active.
func (b *Bridge) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Interval returns the current poll interval.
func (b *Bridge) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// Current returns the last known record and its resolved image path.
func (b *Bridge) Current() (status.Record, string, bool) {
	rec, ok := b.store.Last()
	if !ok {
		return status.Record{}, b.profiles.Placeholder(), false
	}
	return rec, b.resolveImage(rec), true
}

// Close stops polling and releases the fsnotify watcher.
func (b *Bridge) Close() {
	b.Stop()
	close(b.closed)
	if b.fsWatcher != nil {
		b.fsWatcher.Close()
	}
}

// loop is the poll timer. Each tick performs a synchronous poll, so no
// two polls are ever in flight at once.
func (b *Bridge) loop(interval time.Duration, cancel chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Immediate first poll so a restart doesn't wait a full interval.
	b.pollOnce()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			b.pollOnce()
		case <-b.nudge:
			b.pollOnce()
		}
	}
}

// watchLoop turns fsnotify events on the status file into debounced poll
// nudges, in case the writer outruns the poll interval.
func (b *Bridge) watchLoop(fsW *fsnotify.Watcher) {
	var timer *time.Timer
	path := b.store.Path()

	for {
		select {
		case <-b.closed:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fsW.Events:
			if !ok {
				return
			}
			if event.Name != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(nudgeDebounce, func() {
				select {
				case b.nudge <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fsW.Errors:
			if !ok {
				return
			}
			logging.Warn("status watch error", zap.Error(err))
		}
	}
}

func (b *Bridge) pollOnce() {
	start := time.Now()
	rec, changed := b.store.Poll()
	metrics.RecordPoll(changed, time.Since(start))

	if !changed {
		return
	}

	metrics.RecordStatusUpdate()
	if b.onUpdate != nil {
		b.onUpdate(rec, b.resolveImage(rec))
	}
}

func (b *Bridge) resolveImage(rec status.Record) string {
	if rec.IsKnown {
		return b.profiles.ResolveImage(rec.UserName())
	}
	return b.profiles.Placeholder()
}
