package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// FlushFunc performs the durable write for the latest payload scheduled
// under a key. It must be safe to call from the persister's timer goroutines.
type FlushFunc func(ctx context.Context, key string, payload any) error

type pendingWrite struct {
	timer   *time.Timer
	payload any
}

// DebouncedPersister coalesces rapid repeated writes to the same key into a
// single durable write per flush window. Payloads are absolute-set, so
// discarding superseded intermediates is lossless. Timers are per key; a
// steady stream of updates to one key still flushes on a fixed cadence
// because Schedule never resets a running timer.
type DebouncedPersister struct {
	mu      sync.Mutex
	pending map[string]*pendingWrite
	writing map[string]chan struct{}

	window     time.Duration
	retryDelay time.Duration
	flush      FlushFunc
	logger     *slog.Logger
}

func NewDebouncedPersister(window, retryDelay time.Duration, flush FlushFunc, logger *slog.Logger) *DebouncedPersister {
	return &DebouncedPersister{
		pending:    make(map[string]*pendingWrite),
		writing:    make(map[string]chan struct{}),
		window:     window,
		retryDelay: retryDelay,
		flush:      flush,
		logger:     logger,
	}
}

// Schedule registers payload for a debounced write under key. If a timer is
// already pending for the key, only the payload is replaced; the timer keeps
// its original deadline so a continuous update stream cannot postpone the
// flush indefinitely.
func (p *DebouncedPersister) Schedule(key string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pw, ok := p.pending[key]; ok {
		pw.payload = payload
		return
	}

	pw := &pendingWrite{payload: payload}
	pw.timer = time.AfterFunc(p.window, func() {
		p.fire(key)
	})
	p.pending[key] = pw
}

func (p *DebouncedPersister) fire(key string) {
	p.mu.Lock()
	pw, ok := p.pending[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	if _, busy := p.writing[key]; busy {
		// Previous write for this key still in flight; writes within one key
		// are strictly sequential, so push the flush back a little.
		pw.timer.Reset(p.retryDelay)
		p.mu.Unlock()
		return
	}
	delete(p.pending, key)
	done := make(chan struct{})
	p.writing[key] = done
	payload := pw.payload
	p.mu.Unlock()

	p.write(key, payload)

	p.mu.Lock()
	delete(p.writing, key)
	p.mu.Unlock()
	close(done)
}

// write attempts the durable write, retrying once after a short backoff. A
// repeated failure is logged and dropped; the next scheduled update for the
// key will try again with fresher data.
func (p *DebouncedPersister) write(key string, payload any) {
	ctx := context.Background()
	err := p.flush(ctx, key, payload)
	if err == nil {
		return
	}

	p.logger.Warn("debounced write failed, retrying", slog.String("key", key), slog.Any("error", err))
	time.Sleep(p.retryDelay)

	if err = p.flush(ctx, key, payload); err != nil {
		p.logger.Error("debounced write failed after retry", slog.String("key", key), slog.Any("error", err))
	}
}

// Drain cancels the pending timer for key, if any, and performs its write
// synchronously. A timer-fired write already in flight for the key is waited
// out first, so writes within one key stay strictly sequential and the key
// is durably settled when Drain returns. Returns the write error without
// retry; callers draining on match end decide what a failure means.
func (p *DebouncedPersister) Drain(ctx context.Context, key string) error {
	for {
		p.mu.Lock()
		if done, busy := p.writing[key]; busy {
			p.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		pw, ok := p.pending[key]
		if !ok {
			p.mu.Unlock()
			return nil
		}
		pw.timer.Stop()
		delete(p.pending, key)
		done := make(chan struct{})
		p.writing[key] = done
		payload := pw.payload
		p.mu.Unlock()

		err := p.flush(ctx, key, payload)

		p.mu.Lock()
		delete(p.writing, key)
		p.mu.Unlock()
		close(done)
		return err
	}
}

// DrainAll flushes every pending key concurrently and returns the first
// error, used on match end and process shutdown so in-flight updates are
// not lost.
func (p *DebouncedPersister) DrainAll(ctx context.Context) error {
	keys := p.outstandingKeys(func(string) bool { return true })

	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return p.Drain(ctx, key)
		})
	}
	return g.Wait()
}

// DrainMatch flushes every pending key that belongs to the given key prefix
// (one match), leaving other matches' timers running.
func (p *DebouncedPersister) DrainMatch(ctx context.Context, prefix string) error {
	keys := p.outstandingKeys(func(key string) bool {
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	})

	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return p.Drain(ctx, key)
		})
	}
	return g.Wait()
}

// outstandingKeys lists every key matching the filter that still has work in
// progress: a pending timer, an in-flight write, or both. Keys that are only
// in flight still need a Drain so callers observe the write completing.
func (p *DebouncedPersister) outstandingKeys(match func(string) bool) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(p.pending)+len(p.writing))
	keys := make([]string, 0, len(p.pending)+len(p.writing))
	for key := range p.pending {
		if match(key) && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for key := range p.writing {
		if match(key) && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// PendingCount is a test hook reporting how many keys have a timer armed.
func (p *DebouncedPersister) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
