// Package board keeps a project's lists and tasks in sync with the
// backend. Drags update the local Store immediately; the resulting writes
// are persisted in the background and reconciled on failure.
package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/models"
)

// Backend is the part of the REST API the synchronizer needs.
// *api.Client satisfies it.
type Backend interface {
	ListLists(ctx context.Context, projectID int64) ([]models.BoardList, error)
	CreateList(ctx context.Context, projectID int64, name string) (*models.BoardList, error)
	UpdateList(ctx context.Context, id int64, name string, position int) (*models.BoardList, error)
	DeleteList(ctx context.Context, id int64) error
	CreateTask(ctx context.Context, listID int64, t api.NewTask) (*models.Task, error)
	UpdateTask(ctx context.Context, u api.TaskUpdate) (*models.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	AddDependency(ctx context.Context, taskID, dependsOnID int64) (*models.Dependency, error)
	RemoveDependency(ctx context.Context, taskID, dependsOnID int64) error
}

// Journal records writes that could not be persisted. *db.DB satisfies it.
type Journal interface {
	RecordSyncFailure(e db.JournalEntry) error
}

// EventKind classifies a synchronizer Event.
type EventKind int

const (
	// EventSyncFailed: a write exhausted its retries; Key and Err are set.
	EventSyncFailed EventKind = iota + 1
	// EventRefreshed: the board was refetched.
	EventRefreshed
	// EventRefreshFailed: a refetch failed; Err is set.
	EventRefreshFailed
)

// Event reports background activity the UI should surface.
type Event struct {
	Kind EventKind
	Key  Key
	Err  error
}

// Options configures a Synchronizer.
type Options struct {
	Retry   RetryPolicy
	Journal Journal
}

// Synchronizer applies board gestures and commands for one project.
type Synchronizer struct {
	store   *Store
	backend Backend
	journal Journal
	policy  RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	events chan Event

	mu      sync.Mutex
	gens    map[Key]uint64
	dirty   map[Key]error
	pending int
}

// NewSynchronizer binds store to backend. Call Close when done.
func NewSynchronizer(store *Store, backend Backend, opts Options) *Synchronizer {
	policy := opts.Retry
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		store:   store,
		backend: backend,
		journal: opts.Journal,
		policy:  policy,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan Event, 32),
		gens:    map[Key]uint64{},
		dirty:   map[Key]error{},
	}
}

// Store returns the store being synchronized.
func (s *Synchronizer) Store() *Store { return s.store }

// Events delivers background notifications. Events are dropped rather
// than blocking the synchronizer when nobody reads them.
func (s *Synchronizer) Events() <-chan Event { return s.events }

// Pending returns the number of writes not yet settled.
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Dirty returns the keys whose last write could not be persisted and that
// have not been refreshed since.
func (s *Synchronizer) Dirty() map[Key]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Key]error, len(s.dirty))
	for k, v := range s.dirty {
		out[k] = v
	}
	return out
}

// Wait blocks until every background write and refetch has settled.
func (s *Synchronizer) Wait() { s.wg.Wait() }

// Close cancels pending retries and waits for background work to stop.
// Responses arriving after Close are discarded.
func (s *Synchronizer) Close() {
	s.cancel()
	s.wg.Wait()
}

// Refresh refetches the whole board into the store.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	lists, err := s.backend.ListLists(ctx, s.store.ProjectID())
	if err != nil {
		s.store.Invalidate()
		s.emit(Event{Kind: EventRefreshFailed, Err: err})
		return fmt.Errorf("board.Refresh: %w", err)
	}
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	s.store.Replace(lists)

	s.mu.Lock()
	s.dirty = map[Key]error{}
	s.mu.Unlock()

	s.emit(Event{Kind: EventRefreshed})
	return nil
}

// HandleDragEnd applies ev to the store and persists the affected
// entities in the background. It reports whether anything changed.
func (s *Synchronizer) HandleDragEnd(ev DragEnd) bool {
	if s.ctx.Err() != nil {
		return false
	}
	plan, ok := s.store.ApplyDrag(ev)
	if !ok {
		log.Debug().Str("active", ev.Active.String()).Str("over", ev.Over.String()).Msg("board.HandleDragEnd: no-op")
		return false
	}

	writes := make(map[Key]write, len(plan.ListWrites)+len(plan.TaskWrites))
	for _, lw := range plan.ListWrites {
		writes[ListKey(lw.ID)] = func(ctx context.Context) error {
			_, err := s.backend.UpdateList(ctx, lw.ID, lw.Name, lw.Position)
			return err
		}
	}
	for _, t := range plan.TaskWrites {
		u := api.TaskUpdateFrom(t)
		writes[TaskKey(t.ID)] = func(ctx context.Context) error {
			_, err := s.backend.UpdateTask(ctx, u)
			return err
		}
	}

	log.Debug().
		Str("active", ev.Active.String()).
		Str("over", ev.Over.String()).
		Int("writes", len(writes)).
		Msg("board.HandleDragEnd: applied")

	s.dispatch(writes)
	return true
}

// dispatch runs every write on its own goroutine and refetches the board
// once after all of them settle.
func (s *Synchronizer) dispatch(writes map[Key]write) {
	var batch sync.WaitGroup
	s.mu.Lock()
	s.pending += len(writes)
	s.mu.Unlock()

	for key, w := range writes {
		gen := s.claim(key)
		batch.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer batch.Done()
			s.run(key, gen, w)
			s.settle()
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		batch.Wait()
		// a later batch still in flight will refetch when it settles
		if s.ctx.Err() != nil || s.Pending() > 0 {
			return
		}
		if err := s.Refresh(s.ctx); err != nil {
			log.Warn().Err(err).Int64("project_id", s.store.ProjectID()).Msg("board.dispatch: refetch after drag failed")
		}
	}()
}

func (s *Synchronizer) run(key Key, gen uint64, w write) {
	result, tries, err := s.reconcile(s.ctx, key, gen, w)
	switch result {
	case outcomeSuperseded:
		log.Debug().Str("key", key.String()).Msg("board.run: superseded by a newer write")
		return
	case outcomeDone, outcomeCanceled:
		return
	}

	log.Error().
		Str("key", key.String()).
		Int("tries", tries).
		Err(err).
		Msg("board.run: write exhausted retries")

	s.mu.Lock()
	s.dirty[key] = err
	s.mu.Unlock()

	// the batch refetch that follows replaces the diverged local state
	s.store.Invalidate()

	if s.journal != nil {
		entry := db.JournalEntry{
			ProjectID:  s.store.ProjectID(),
			EntityKind: key.Kind.String(),
			EntityID:   key.ID,
			Attempts:   tries,
			LastError:  err.Error(),
		}
		if jerr := s.journal.RecordSyncFailure(entry); jerr != nil {
			log.Warn().Err(jerr).Msg("board.run: journaling failure")
		}
	}
	s.emit(Event{Kind: EventSyncFailed, Key: key, Err: err})
}

func (s *Synchronizer) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
}

func (s *Synchronizer) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Warn().Int("kind", int(ev.Kind)).Msg("board.emit: event dropped, no reader")
	}
}
