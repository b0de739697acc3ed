// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// batcher collects changed paths and hands them to flush once no new path
// has arrived for the quiet period. Flushes never overlap: a batch that
// becomes due while flush is still running waits for another quiet period.
type batcher struct {
	quiet  time.Duration
	flush  func(changed []string)
	logger *log.Logger

	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	flushing bool
	stopped  bool
}

func newBatcher(quiet time.Duration, flush func([]string), logger *log.Logger) *batcher {
	return &batcher{
		quiet:   quiet,
		flush:   flush,
		logger:  logger,
		pending: make(map[string]struct{}),
	}
}

// add records path and restarts the quiet period.
func (b *batcher) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.pending[path] = struct{}{}
	b.rearm()
}

// stop cancels the pending timer. Paths not yet flushed are dropped.
func (b *batcher) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}

// rearm must be called with mu held.
func (b *batcher) rearm() {
	if b.timer == nil {
		b.timer = time.AfterFunc(b.quiet, b.fire)
		return
	}
	b.timer.Reset(b.quiet)
}

func (b *batcher) fire() {
	b.mu.Lock()
	if b.stopped || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	if b.flushing {
		b.logger.Debug("previous run still in progress, postponing")
		b.rearm()
		b.mu.Unlock()
		return
	}
	changed := slices.Sorted(maps.Keys(b.pending))
	clear(b.pending)
	b.flushing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.flushing = false
		b.mu.Unlock()
	}()
	b.flush(changed)
}
