// Package watch audits email files as they appear in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/emailauditor/auditkit/internal/timing"
)

// Watcher debounces write bursts per file, hands settled files to Audit one
// at a time, and throttles OnAudited so bursts of audits collapse into one
// refresh per UsageInterval.
type Watcher struct {
	Dir string
	// Extensions selects files by extension, including the dot. Empty means
	// ".eml".
	Extensions []string
	// Settle is the quiet period before a changed file is audited.
	Settle time.Duration
	// UsageInterval is the throttle cooldown for OnAudited.
	UsageInterval time.Duration
	// Existing queues files already in Dir when Run starts.
	Existing bool

	Audit     func(ctx context.Context, path string)
	OnAudited func(ctx context.Context)

	Logger *logging.Logger
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.Audit == nil {
		return errors.New("watcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(w.Dir)
	if err != nil {
		return fmt.Errorf("stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close() // nolint:errcheck // best-effort cleanup

	if err := fsw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	return w.serve(ctx, fsw.Events, fsw.Errors)
}

// serve dispatches events until ctx is cancelled or either channel closes.
func (w *Watcher) serve(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	ctx, cancel := context.WithCancel(ctx)

	ready := make(chan string, 64)
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		w.work(ctx, ready)
	}()

	pending := newPendingSet(w.settle(), func(path string) {
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
	defer func() {
		pending.cancelAll()
		cancel()
		workers.Wait()
	}()

	if w.Existing {
		if err := w.queueExisting(pending); err != nil {
			w.warn("Failed to scan existing files", zap.Error(err))
		}
	}

	w.debug("Watching directory", zap.String("dir", w.Dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			w.handle(event, pending)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, pending *pendingSet) {
	if !w.matches(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pending.cancel(event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		pending.touch(event.Name)
	}
}

func (w *Watcher) work(ctx context.Context, ready <-chan string) {
	var refresh *timing.Throttler[context.Context]
	if w.OnAudited != nil {
		refresh = timing.NewThrottler(w.usageInterval(), w.OnAudited)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case path := <-ready:
			if _, err := os.Stat(path); err != nil {
				w.debug("File vanished before audit", zap.String("path", path))
				continue
			}
			w.Audit(ctx, path)
			if refresh != nil {
				refresh.Call(ctx)
			}
		}
	}
}

func (w *Watcher) queueExisting(pending *pendingSet) error {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.Dir, entry.Name())
		if w.matches(path) {
			pending.touch(path)
		}
	}
	return nil
}

func (w *Watcher) matches(path string) bool {
	exts := w.Extensions
	if len(exts) == 0 {
		exts = []string{".eml"}
	}
	ext := filepath.Ext(path)
	for _, allowed := range exts {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (w *Watcher) settle() time.Duration {
	if w.Settle > 0 {
		return w.Settle
	}
	return 500 * time.Millisecond
}

func (w *Watcher) usageInterval() time.Duration {
	if w.UsageInterval > 0 {
		return w.UsageInterval
	}
	return 10 * time.Second
}

func (w *Watcher) debug(msg string, fields ...zap.Field) {
	if w.Logger != nil {
		w.Logger.Debug(msg, fields...)
	}
}

func (w *Watcher) warn(msg string, fields ...zap.Field) {
	if w.Logger != nil {
		w.Logger.Warn(msg, fields...)
	}
}

// pendingSet holds one debouncer per file path.
type pendingSet struct {
	settle time.Duration
	fire   func(path string)

	mu    sync.Mutex
	files map[string]*timing.Debouncer[string]
}

func newPendingSet(settle time.Duration, fire func(path string)) *pendingSet {
	return &pendingSet{
		settle: settle,
		fire:   fire,
		files:  make(map[string]*timing.Debouncer[string]),
	}
}

func (p *pendingSet) touch(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Armed under p.mu so settled cannot drop d between lookup and Call.
	d, ok := p.files[path]
	if !ok {
		d = timing.NewDebouncer(p.settle, p.settled)
		p.files[path] = d
	}
	d.Call(path)
}

func (p *pendingSet) settled(path string) {
	p.mu.Lock()
	// A write may have landed after the timer fired and re-armed it.
	if d, ok := p.files[path]; ok && !d.Pending() {
		delete(p.files, path)
	}
	p.mu.Unlock()

	p.fire(path)
}

func (p *pendingSet) cancel(path string) {
	p.mu.Lock()
	d, ok := p.files[path]
	delete(p.files, path)
	p.mu.Unlock()

	if ok {
		d.Cancel()
	}
}

func (p *pendingSet) cancelAll() {
	p.mu.Lock()
	files := p.files
	p.files = make(map[string]*timing.Debouncer[string])
	p.mu.Unlock()

	for _, d := range files {
		d.Cancel()
	}
}
