// Package syncer mirrors local store changes to the remote record and blob
// stores and feeds the results back to the store as acknowledgment actions.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jaekwang-park/todo-sync/internal/model"
	"github.com/jaekwang-park/todo-sync/internal/repository"
	"github.com/jaekwang-park/todo-sync/internal/storage"
	"github.com/jaekwang-park/todo-sync/internal/store"
)

// Store is the part of store.Store the synchronizer depends on.
type Store interface {
	Items() []model.Item
	Dispatch(action store.Action)
	Subscribe(l store.Listener) (unsubscribe func())
}

type Options struct {
	// OpTimeout bounds a single remote operation.
	OpTimeout time.Duration
	// MaxAttempts is how many consecutive failures are retried on a timer.
	// Past that an item is only retried on the next store change.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// Concurrency caps remote operations in flight.
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		OpTimeout:   15 * time.Second,
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Minute,
		Concurrency: 4,
	}
}

type Synchronizer struct {
	store   Store
	records repository.RecordRepository
	blobs   storage.Client
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	trigger chan struct{}
	sem     chan struct{}
	wg      sync.WaitGroup
	// passMu keeps passes, which add to wg, apart from waits on wg.
	passMu  sync.Mutex

	// mu orders passes against acknowledgments: an item is claimed and
	// released, and its acknowledgment dispatched, only while mu is held.
	mu       sync.Mutex
	inflight map[string]Op
	failures map[string]*Failure
	timers   map[string]*time.Timer
}

func New(st Store, records repository.RecordRepository, blobs storage.Client, opts Options, logger *slog.Logger) *Synchronizer {
	def := DefaultOptions()
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = def.OpTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = def.BaseBackoff
	}
	if opts.MaxBackoff < opts.BaseBackoff {
		opts.MaxBackoff = opts.BaseBackoff
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}

	return &Synchronizer{
		store:    st,
		records:  records,
		blobs:    blobs,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		sem:      make(chan struct{}, opts.Concurrency),
		inflight: make(map[string]Op),
		failures: make(map[string]*Failure),
		timers:   make(map[string]*time.Timer),
	}
}

// Run subscribes to the store and runs a pass after every change until ctx
// is done. It waits for operations in flight before returning.
func (s *Synchronizer) Run(ctx context.Context) error {
	unsubscribe := s.store.Subscribe(func([]model.Item) { s.Trigger() })
	defer unsubscribe()

	s.logger.Info("synchronizer started")
	s.Trigger()

	for {
		select {
		case <-ctx.Done():
			s.stopTimers()
			s.passMu.Lock()
			s.wg.Wait()
			s.passMu.Unlock()
			s.logger.Info("synchronizer stopped")
			return nil
		case <-s.trigger:
			s.passMu.Lock()
			s.pass(ctx)
			s.passMu.Unlock()
		}
	}
}

// Trigger requests a pass. Requests made while one is pending coalesce.
func (s *Synchronizer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Flush runs one pass and waits for every operation in flight to finish.
// Passes requested by Run meanwhile are held until it returns.
func (s *Synchronizer) Flush(ctx context.Context) {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	s.pass(ctx)
	s.wg.Wait()
}

type job struct {
	op   Op
	item model.Item
}

// pass claims every item whose state calls for a remote operation and
// starts the operations. All decisions use one snapshot of the store.
func (s *Synchronizer) pass(ctx context.Context) {
	s.mu.Lock()
	items := s.store.Items()
	if len(items) == 0 {
		s.mu.Unlock()
		return
	}

	s.pruneFailures(items)

	now := s.now()
	var jobs []job
	for _, it := range items {
		key := it.Key()
		if _, busy := s.inflight[key]; busy {
			continue
		}
		if f, ok := s.failures[key]; ok && now.Before(f.NextAttempt) {
			continue
		}

		op, ok := opFor(it)
		if !ok {
			continue
		}
		s.inflight[key] = op
		jobs = append(jobs, job{op: op, item: it})
	}
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.execute(ctx, j)
	}
}

func opFor(it model.Item) (Op, bool) {
	switch it.State.Kind {
	case model.SyncPendingDelete:
		if it.ID == "" {
			return OpDiscard, true
		}
		return OpDelete, true
	case model.SyncPendingCreate:
		return OpCreate, true
	case model.SyncPendingUpdate:
		if it.ID == "" {
			return "", false
		}
		return OpUpdate, true
	default:
		return "", false
	}
}

func (s *Synchronizer) execute(ctx context.Context, j job) {
	defer s.wg.Done()
	key := j.item.Key()

	var ack store.Action
	var err error
	select {
	case s.sem <- struct{}{}:
		opCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		ack, err = s.perform(opCtx, j)
		cancel()
		<-s.sem
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)

	if err != nil {
		s.recordFailure(ctx, key, j, err)
		return
	}

	if f, ok := s.failures[key]; ok {
		s.logger.Info("remote operation recovered", "item", j.item.Ref(), "op", j.op, "attempts", f.Attempts)
		delete(s.failures, key)
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	s.store.Dispatch(ack)
}

// perform issues the remote calls for j and returns the acknowledgment to
// dispatch on success.
func (s *Synchronizer) perform(ctx context.Context, j job) (store.Action, error) {
	it := j.item
	s.logger.Debug("remote operation", "item", it.Ref(), "op", j.op, "revision", it.Revision)

	switch j.op {
	case OpCreate:
		id, err := s.records.Create(ctx, it.Record())
		if err != nil {
			return nil, err
		}
		return store.AddedToDB{LocalID: it.LocalID, ID: id, Revision: it.Revision}, nil

	case OpUpdate:
		changes := model.ChangesFor(it, it.State.Fields)
		if err := s.records.Update(ctx, it.ID, changes); err != nil {
			return nil, err
		}
		return store.UpdatedInDB{Ref: it.ID, Revision: it.Revision}, nil

	case OpDelete:
		if err := s.deleteRemote(ctx, it.ID); err != nil {
			return nil, err
		}
		return store.DeletedFromDB{Ref: it.ID}, nil

	case OpDiscard:
		return store.DeletedFromDB{Ref: it.LocalID}, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", j.op)
	}
}

// deleteRemote removes the record first and then every blob under its
// namespace. A record already gone counts as deleted so that an
// interrupted delete can resume at blob cleanup.
func (s *Synchronizer) deleteRemote(ctx context.Context, id string) error {
	if err := s.records.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	objects, err := s.blobs.List(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list attachments: %w", err)
	}
	for _, obj := range objects {
		if err := s.blobs.Delete(ctx, obj); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete attachment %s: %w", obj.Name, err)
		}
	}
	return nil
}

// pruneFailures forgets failures of items that are gone or no longer
// pending. Must be called with s.mu held.
func (s *Synchronizer) pruneFailures(items []model.Item) {
	if len(s.failures) == 0 {
		return
	}
	pending := make(map[string]bool, len(items))
	for _, it := range items {
		if it.State.Pending() {
			pending[it.Key()] = true
		}
	}
	for key := range s.failures {
		if pending[key] {
			continue
		}
		delete(s.failures, key)
		if t, ok := s.timers[key]; ok {
			t.Stop()
			delete(s.timers, key)
		}
	}
}

func (s *Synchronizer) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
