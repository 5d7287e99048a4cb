// Package indexsync keeps the search index eventually consistent with the
// dictionary store. Writes commit to the store first and are pushed to the
// index by background workers; a periodic reconciliation pass re-enqueues
// anything the volatile queue lost.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/capstone/vsl/internal/apperr"
	"github.com/capstone/vsl/internal/dictionary"
	"github.com/capstone/vsl/internal/search"
)

// Task asks a worker to push one entry to the index.
type Task struct {
	EntryID    int64
	Attempt    int
	EnqueuedAt time.Time
}

// Stats is a point-in-time view of the queue and the sync counters.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Synced        uint64 `json:"synced"`
	Dropped       uint64 `json:"dropped"`
	Exhausted     uint64 `json:"exhausted"`
}

// Synchronizer pushes dictionary writes to the search index and serves
// searches with a store fallback.
type Synchronizer struct {
	repo    dictionary.Repository
	index   search.Index
	opts    Options
	queue   chan Task
	limiter *rate.Limiter

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	timers  map[*time.Timer]struct{}

	synced    atomic.Uint64
	dropped   atomic.Uint64
	exhausted atomic.Uint64
}

// New creates a Synchronizer. Call Start to run its workers.
func New(repo dictionary.Repository, index search.Index, opts Options) *Synchronizer {
	opts = opts.withDefaults()
	return &Synchronizer{
		repo:    repo,
		index:   index,
		opts:    opts,
		queue:   make(chan Task, opts.QueueCapacity),
		limiter: rate.NewLimiter(rate.Limit(opts.ReconcileRate), 1),
		timers:  make(map[*time.Timer]struct{}),
	}
}

// Write commits entry to the store, marking it unsynced, and schedules it for
// indexing. Only a store failure is returned; when the queue is full the
// entry is left for reconciliation.
func (s *Synchronizer) Write(ctx context.Context, entry *dictionary.Entry) error {
	if err := s.repo.Save(ctx, entry); err != nil {
		return fmt.Errorf("repo.Save > %w", err)
	}
	s.tryEnqueue(Task{EntryID: entry.ID})
	return nil
}

// Start launches the workers and the reconciliation loop. The loop runs one
// pass immediately so entries left unsynced by a previous process are picked up.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("synchronizer already started")
	}
	if s.stopped {
		return errors.New("synchronizer stopped")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	for i := range s.opts.Workers {
		s.group.Go(func() error {
			s.work(ctx, i)
			return nil
		})
	}
	s.group.Go(func() error {
		s.reconcileLoop(ctx)
		return nil
	})

	slog.Default().Info("index synchronizer started",
		"workers", s.opts.Workers,
		"queue_capacity", s.opts.QueueCapacity,
		"reconcile_interval", s.opts.ReconcileInterval)
	return nil
}

// Stop cancels pending retries and waits for the workers to exit.
// Tasks still queued are abandoned; their entries stay unsynced in the store.
func (s *Synchronizer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
	group, cancel := s.group, s.cancel
	s.mu.Unlock()

	if group == nil {
		return nil
	}
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()
	select {
	case err := <-done:
		slog.Default().Info("index synchronizer stopped", "pending", len(s.queue))
		return err
	case <-ctx.Done():
		return fmt.Errorf("stop synchronizer: %w", ctx.Err())
	}
}

// Stats reports queue depth and counters. It is safe to call concurrently.
func (s *Synchronizer) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.queue),
		QueueCapacity: cap(s.queue),
		Synced:        s.synced.Load(),
		Dropped:       s.dropped.Load(),
		Exhausted:     s.exhausted.Load(),
	}
}

// tryEnqueue never blocks. It reports false when the task was dropped
// because the queue is full or the synchronizer is stopped.
func (s *Synchronizer) tryEnqueue(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	task.EnqueuedAt = time.Now()
	select {
	case s.queue <- task:
		return true
	default:
		s.dropped.Add(1)
		slog.Default().Debug("sync queue full, task dropped", "entry_id", task.EntryID, "attempt", task.Attempt)
		return false
	}
}

func (s *Synchronizer) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.queue:
			s.process(ctx, worker, task)
		}
	}
}

func (s *Synchronizer) process(ctx context.Context, worker int, task Task) {
	logger := slog.Default().With("worker", worker, "entry_id", task.EntryID, "attempt", task.Attempt)

	res, err := s.syncEntry(ctx, task.EntryID)
	if err == nil {
		logger.Debug("sync task done", "result", res, "waited", time.Since(task.EnqueuedAt))
		return
	}
	if ctx.Err() != nil {
		return
	}

	task.Attempt++
	if task.Attempt >= s.opts.MaxAttempts {
		s.exhausted.Add(1)
		logger.Error("sync task exhausted, leaving entry for reconciliation",
			"error", apperr.New(apperr.SyncExhausted, fmt.Sprintf("entry %d after %d attempts", task.EntryID, task.Attempt), err))
		return
	}
	delay := s.opts.backoff(task.Attempt)
	logger.Warn("sync task failed, retrying", "error", err, "delay", delay)
	s.retryAfter(task, delay)
}

// retryAfter re-enqueues task once delay has passed without holding a worker.
func (s *Synchronizer) retryAfter(task Task, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		s.tryEnqueue(task)
	})
	s.timers[timer] = struct{}{}
}

type syncResult string

const (
	resultSynced        syncResult = "synced"
	resultAlreadySynced syncResult = "already_synced"
	resultSuperseded    syncResult = "superseded"
	resultStale         syncResult = "stale"
	resultMissing       syncResult = "missing"
)

// syncEntry pushes the current version of an entry to the index and flips
// its flag if the entry was not edited in the meantime.
func (s *Synchronizer) syncEntry(ctx context.Context, id int64) (syncResult, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("repo.FindByID > %w", err)
	}
	if entry == nil {
		return resultMissing, nil
	}
	if entry.IndexSynced {
		return resultAlreadySynced, nil
	}

	err = s.index.Upsert(ctx, search.Document{
		ID:         entry.ID,
		Word:       entry.Word,
		Definition: entry.Definition,
		MediaRef:   entry.MediaRef,
		Version:    entry.Version,
	})
	if errors.Is(err, search.ErrSuperseded) {
		return resultSuperseded, nil
	}
	if err != nil {
		return "", fmt.Errorf("index.Upsert > %w", err)
	}

	ok, err := s.repo.MarkSynced(ctx, entry.ID, entry.Version)
	if err != nil {
		return "", fmt.Errorf("repo.MarkSynced > %w", err)
	}
	if !ok {
		return resultStale, nil
	}
	s.synced.Add(1)
	return resultSynced, nil
}

func (s *Synchronizer) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		n, err := s.Reconcile(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			slog.Default().Error("reconciliation failed", "error", err)
		case n > 0:
			slog.Default().Info("reconciliation enqueued unsynced entries", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Reconcile enqueues up to ReconcileBatch unsynced entries, paced by
// ReconcileRate. The pass ends early when the queue fills up; the rest is
// picked up by the next pass.
func (s *Synchronizer) Reconcile(ctx context.Context) (int, error) {
	entries, err := s.repo.FindUnsynced(ctx, s.opts.ReconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("repo.FindUnsynced > %w", err)
	}

	enqueued := 0
	for _, entry := range entries {
		if err := s.limiter.Wait(ctx); err != nil {
			return enqueued, err
		}
		if !s.tryEnqueue(Task{EntryID: entry.ID}) {
			break
		}
		enqueued++
	}
	return enqueued, nil
}

// SyncReport summarises a SyncPending run.
type SyncReport struct {
	Synced int
	// AlreadySynced counts entries flipped by someone else after they were listed.
	AlreadySynced int
	Superseded    int
	Stale      int
	Missing    int
	Failed     []int64
}

// SyncPending pushes every unsynced entry to the index once, in the calling
// goroutine and without the queue. Entries that fail are reported and left
// unsynced.
func (s *Synchronizer) SyncPending(ctx context.Context) (SyncReport, error) {
	var report SyncReport
	seen := make(map[int64]struct{})
	for {
		entries, err := s.repo.FindUnsynced(ctx, s.opts.ReconcileBatch)
		if err != nil {
			return report, fmt.Errorf("repo.FindUnsynced > %w", err)
		}

		progressed := false
		for _, entry := range entries {
			if _, ok := seen[entry.ID]; ok {
				continue
			}
			seen[entry.ID] = struct{}{}
			progressed = true

			res, err := s.syncEntry(ctx, entry.ID)
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				slog.Default().Warn("sync failed", "entry_id", entry.ID, "error", err)
				report.Failed = append(report.Failed, entry.ID)
				continue
			}
			switch res {
			case resultSynced:
				report.Synced++
			case resultAlreadySynced:
				report.AlreadySynced++
			case resultSuperseded:
				report.Superseded++
			case resultStale:
				report.Stale++
			case resultMissing:
				report.Missing++
			}
		}
		if !progressed || len(entries) < s.opts.ReconcileBatch {
			return report, nil
		}
	}
}

// Search answers from the index and hydrates hits from the store in
// relevance order. Any index failure falls back to a containment match
// against the store, so callers never see IndexUnavailable.
func (s *Synchronizer) Search(ctx context.Context, query string) ([]dictionary.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.New(apperr.InvalidInput, "search query is required", nil)
	}

	hits, err := s.index.Search(ctx, query, s.opts.SearchLimit)
	if err != nil {
		slog.Default().Warn("search index failed, falling back to store", "query", query, "error", err)
		entries, err := s.repo.SearchContains(ctx, query, s.opts.SearchLimit)
		if err != nil {
			return nil, fmt.Errorf("repo.SearchContains > %w", err)
		}
		return entries, nil
	}
	if len(hits) == 0 {
		return []dictionary.Entry{}, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("repo.FindByIDs > %w", err)
	}
	byID := make(map[int64]dictionary.Entry, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}

	entries := make([]dictionary.Entry, 0, len(hits))
	for _, h := range hits {
		if e, ok := byID[h.ID]; ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
