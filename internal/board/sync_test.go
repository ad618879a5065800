package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/testutil/fakeapi"
)

var errUnavailable = errors.New("503 service unavailable")

// fakeBackend records writes and fails keys on demand.
type fakeBackend struct {
	mu         sync.Mutex
	server     []models.BoardList
	listWrites []ListWrite
	taskWrites []api.TaskUpdate
	calls      map[Key]int
	failFirst  map[Key]int
	failAll    map[Key]bool
	fetches    int
}

func newFakeBackend(server []models.BoardList) *fakeBackend {
	return &fakeBackend{
		server:    server,
		calls:     map[Key]int{},
		failFirst: map[Key]int{},
		failAll:   map[Key]bool{},
	}
}

func (f *fakeBackend) hit(k Key) error {
	f.calls[k]++
	if f.failAll[k] {
		return errUnavailable
	}
	if f.failFirst[k] > 0 {
		f.failFirst[k]--
		return errUnavailable
	}
	return nil
}

func (f *fakeBackend) callCount(k Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[k]
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) ListLists(context.Context, int64) ([]models.BoardList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return cloneLists(f.server), nil
}

func (f *fakeBackend) UpdateList(_ context.Context, id int64, name string, position int) (*models.BoardList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(ListKey(id)); err != nil {
		return nil, err
	}
	f.listWrites = append(f.listWrites, ListWrite{ID: id, Name: name, Position: position})
	return &models.BoardList{ID: id, Name: name, Position: position}, nil
}

func (f *fakeBackend) UpdateTask(_ context.Context, u api.TaskUpdate) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(TaskKey(u.ID)); err != nil {
		return nil, err
	}
	f.taskWrites = append(f.taskWrites, u)
	return &models.Task{ID: u.ID, Name: u.Name, ListID: u.ListID, Position: u.Position}, nil
}

func (f *fakeBackend) CreateList(context.Context, int64, string) (*models.BoardList, error) {
	return nil, errors.New("not used")
}
func (f *fakeBackend) DeleteList(context.Context, int64) error { return errors.New("not used") }
func (f *fakeBackend) CreateTask(context.Context, int64, api.NewTask) (*models.Task, error) {
	return nil, errors.New("not used")
}
func (f *fakeBackend) DeleteTask(context.Context, int64) error { return errors.New("not used") }
func (f *fakeBackend) AddDependency(context.Context, int64, int64) (*models.Dependency, error) {
	return nil, errors.New("not used")
}
func (f *fakeBackend) RemoveDependency(context.Context, int64, int64) error {
	return errors.New("not used")
}

type memJournal struct {
	mu      sync.Mutex
	entries []db.JournalEntry
}

func (j *memJournal) RecordSyncFailure(e db.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) all() []db.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]db.JournalEntry(nil), j.entries...)
}

var fastRetry = RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}

func newSync(t *testing.T, backend Backend, opts Options) *Synchronizer {
	t.Helper()
	store := NewStore(1)
	store.Replace(sampleBoard())
	s := NewSynchronizer(store, backend, opts)
	t.Cleanup(s.Close)
	return s
}

func drain(s *Synchronizer) []Event {
	var out []Event
	for {
		select {
		case ev := <-s.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{Attempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
	assert.Equal(t, time.Second, p.Delay(5))
	assert.Equal(t, time.Second, p.Delay(40))
	assert.Zero(t, p.Delay(0))
}

func TestHandleDragEndListReorder(t *testing.T) {
	backend := newFakeBackend(sampleBoard())
	s := newSync(t, backend, Options{Retry: fastRetry})

	require.True(t, s.HandleDragEnd(DragEnd{Active: ListKey(1), Over: ListKey(3)}))
	// optimistic state is visible before any write settles
	assert.Equal(t, []int64{2, 3, 1}, listIDs(s.Store().Lists()))

	s.Wait()
	assert.ElementsMatch(t, []ListWrite{
		{ID: 2, Name: "B", Position: 0},
		{ID: 3, Name: "C", Position: 1},
		{ID: 1, Name: "A", Position: 2},
	}, backend.listWrites)
	assert.Equal(t, 1, backend.fetchCount(), "one refetch per settled batch")
	assert.Zero(t, s.Pending())
}

func TestHandleDragEndCrossListWritesBothLists(t *testing.T) {
	backend := newFakeBackend(sampleBoard())
	s := newSync(t, backend, Options{Retry: fastRetry})

	require.True(t, s.HandleDragEnd(DragEnd{Active: TaskKey(11), Over: TaskKey(13)}))
	s.Wait()

	written := map[int64]api.TaskUpdate{}
	for _, u := range backend.taskWrites {
		written[u.ID] = u
	}
	require.Len(t, written, 3)
	assert.Equal(t, api.TaskUpdate{ID: 11, Name: "t", ListID: 2, Position: 0}, written[11])
	assert.Equal(t, 1, written[13].Position)
	assert.Equal(t, 0, written[12].Position)
	assert.EqualValues(t, 1, written[12].ListID)
}

func TestHandleDragEndInvalidIsSilent(t *testing.T) {
	backend := newFakeBackend(sampleBoard())
	s := newSync(t, backend, Options{Retry: fastRetry})
	before := s.Store().Lists()

	assert.False(t, s.HandleDragEnd(DragEnd{Active: TaskKey(11), Over: TaskKey(404)}))
	assert.False(t, s.HandleDragEnd(DragEnd{Active: ListKey(2), Over: ListKey(2)}))
	s.Wait()

	assert.Equal(t, before, s.Store().Lists())
	assert.Empty(t, backend.listWrites)
	assert.Empty(t, backend.taskWrites)
	assert.Zero(t, backend.fetchCount())
}

func TestFailedWriteIsRetried(t *testing.T) {
	backend := newFakeBackend(sampleBoard())
	backend.failFirst[ListKey(2)] = 2
	journal := &memJournal{}
	s := newSync(t, backend, Options{Retry: fastRetry, Journal: journal})

	require.True(t, s.HandleDragEnd(DragEnd{Active: ListKey(1), Over: ListKey(2)}))
	s.Wait()

	assert.Equal(t, 3, backend.callCount(ListKey(2)))
	assert.Equal(t, 1, backend.callCount(ListKey(1)), "siblings are not held back")
	assert.Len(t, backend.listWrites, 3)
	assert.Empty(t, journal.all())
	for _, ev := range drain(s) {
		assert.NotEqual(t, EventSyncFailed, ev.Kind)
	}
}

func TestNewerWriteSupersedesRetry(t *testing.T) {
	backend := newFakeBackend(sampleBoard())
	backend.failFirst[TaskKey(11)] = 1
	journal := &memJournal{}
	s := newSync(t, backend, Options{
		Retry:   RetryPolicy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second},
		Journal: journal,
	})

	require.True(t, s.HandleDragEnd(DragEnd{Active: TaskKey(12), Over: TaskKey(11)}))
	require.Eventually(t, func() bool { return backend.callCount(TaskKey(11)) == 1 }, time.Second, time.Millisecond)

	// second gesture rewrites task 11 while the first write waits to retry
	require.True(t, s.HandleDragEnd(DragEnd{Active: TaskKey(11), Over: ListKey(3)}))
	s.Wait()

	assert.Equal(t, 2, backend.callCount(TaskKey(11)), "the stale retry is dropped")
	last := backend.taskWrites[len(backend.taskWrites)-1]
	for _, u := range backend.taskWrites {
		if u.ID == 11 {
			last = u
		}
	}
	assert.EqualValues(t, 3, last.ListID, "latest write wins")
	assert.Empty(t, journal.all())
}

func TestExhaustedWriteJournalsAndRefetchesOnce(t *testing.T) {
	server := sampleBoard()
	backend := newFakeBackend(server)
	backend.failAll[TaskKey(13)] = true
	journal := &memJournal{}
	s := newSync(t, backend, Options{Retry: fastRetry, Journal: journal})

	require.True(t, s.HandleDragEnd(DragEnd{Active: TaskKey(11), Over: TaskKey(13)}))
	s.Wait()

	assert.Equal(t, 1+fastRetry.Attempts, backend.callCount(TaskKey(13)))

	entries := journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "task", entries[0].EntityKind)
	assert.EqualValues(t, 13, entries[0].EntityID)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Contains(t, entries[0].LastError, "503")

	assert.Equal(t, 1, backend.fetchCount(), "exactly one forced refetch")
	assert.Equal(t, server, s.Store().Lists(), "server state replaces the diverged board")
	assert.Empty(t, s.Dirty(), "refetch clears dirty marks")

	var failed []Event
	for _, ev := range drain(s) {
		if ev.Kind == EventSyncFailed {
			failed = append(failed, ev)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, TaskKey(13), failed[0].Key)
}

func TestCloseCancelsPendingRetries(t *testing.T) {
	backend := newFakeBackend(sampleBoard())
	backend.failAll[ListKey(1)] = true
	journal := &memJournal{}
	store := NewStore(1)
	store.Replace(sampleBoard())
	s := NewSynchronizer(store, backend, Options{
		Retry:   RetryPolicy{Attempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour},
		Journal: journal,
	})

	require.True(t, s.HandleDragEnd(DragEnd{Active: ListKey(1), Over: ListKey(2)}))
	require.Eventually(t, func() bool { return backend.callCount(ListKey(1)) == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the pending retry")
	}

	assert.Empty(t, journal.all())
	assert.Zero(t, backend.fetchCount())
	assert.False(t, s.HandleDragEnd(DragEnd{Active: ListKey(2), Over: ListKey(1)}))
}

func TestCommandsValidateNames(t *testing.T) {
	backend := newFakeBackend(sampleBoard())
	s := newSync(t, backend, Options{Retry: fastRetry})
	ctx := context.Background()

	_, err := s.CreateList(ctx, "   ")
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = s.CreateTask(ctx, 1, TaskFields{Name: "\t"})
	assert.ErrorIs(t, err, ErrNameRequired)
	assert.ErrorIs(t, s.RenameList(ctx, 1, ""), ErrNameRequired)
	assert.ErrorIs(t, s.EditTask(ctx, 11, TaskFields{}), ErrNameRequired)
	assert.ErrorIs(t, s.AddDependency(ctx, 11, 11), ErrSelfDependency)
	assert.ErrorIs(t, s.RenameList(ctx, 404, "x"), ErrUnknownList)
	assert.ErrorIs(t, s.EditTask(ctx, 404, TaskFields{Name: "x"}), ErrUnknownTask)

	assert.Empty(t, backend.listWrites)
	assert.Empty(t, backend.taskWrites)
}

// The remaining tests run against the HTTP client and the fake REST backend.

func newLiveSync(t *testing.T) (*Synchronizer, *fakeapi.Server, int64) {
	t.Helper()
	srv := fakeapi.New(t)
	client, err := api.New(api.Options{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second, Tokens: api.StaticToken(srv.Token("alice"))})
	require.NoError(t, err)

	project := srv.AddProject("Launch")
	s := NewSynchronizer(NewStore(project), client, Options{Retry: fastRetry})
	t.Cleanup(s.Close)
	require.NoError(t, s.Refresh(context.Background()))
	return s, srv, project
}

func TestLiveCommandsConfirmThenRefetch(t *testing.T) {
	s, srv, _ := newLiveSync(t)
	ctx := context.Background()

	todo, err := s.CreateList(ctx, "  Todo ")
	require.NoError(t, err)
	assert.Equal(t, "Todo", todo.Name)
	done, err := s.CreateList(ctx, "Done")
	require.NoError(t, err)

	a, err := s.CreateTask(ctx, todo.ID, TaskFields{Name: "design"})
	require.NoError(t, err)
	b, err := s.CreateTask(ctx, todo.ID, TaskFields{Name: "build"})
	require.NoError(t, err)

	require.NoError(t, s.AddDependency(ctx, b.ID, a.ID))
	tk, ok := s.Store().Task(b.ID)
	require.True(t, ok)
	assert.Equal(t, []int64{a.ID}, tk.DependencyIDs, "refetch picks up server-side edges")

	err = s.AddDependency(ctx, a.ID, b.ID)
	require.Error(t, err)
	assert.Contains(t, api.ErrorMessage(err, ""), "circular")

	require.NoError(t, s.RenameList(ctx, done.ID, "Shipped"))
	l, _ := srv.List(done.ID)
	assert.Equal(t, "Shipped", l.Name)
	assert.Equal(t, 1, l.Position)

	due, _ := models.ParseDate("2025-12-24")
	require.NoError(t, s.EditTask(ctx, a.ID, TaskFields{Name: "design v2", DueDate: &due}))
	got, _ := srv.Task(a.ID)
	assert.Equal(t, "design v2", got.Name)
	assert.Equal(t, "2025-12-24", got.DueDate.String())

	require.NoError(t, s.DeleteTask(ctx, a.ID))
	_, ok = s.Store().Task(a.ID)
	assert.False(t, ok)
	tk, _ = s.Store().Task(b.ID)
	assert.Empty(t, tk.DependencyIDs)

	require.NoError(t, s.DeleteList(ctx, done.ID))
	assert.Len(t, s.Store().Lists(), 1)
}

func TestLiveDragConverges(t *testing.T) {
	s, srv, project := newLiveSync(t)
	l1 := srv.AddList(project, "L1")
	l2 := srv.AddList(project, "L2")
	t1 := srv.AddTask(l1, "t1")
	t2 := srv.AddTask(l1, "t2")
	t3 := srv.AddTask(l2, "t3")
	require.NoError(t, s.Refresh(context.Background()))
	srv.ResetRequests()

	require.True(t, s.HandleDragEnd(DragEnd{Active: TaskKey(t1), Over: TaskKey(t3)}))
	s.Wait()

	assert.Equal(t, 3, srv.CountRequests("PUT", "/tasks/"))
	assert.Equal(t, 1, srv.CountRequests("GET", "/lists/project/"))

	for id, want := range map[int64]struct {
		list int64
		pos  int
	}{t1: {l2, 0}, t3: {l2, 1}, t2: {l1, 0}} {
		got, ok := srv.Task(id)
		require.True(t, ok)
		assert.Equal(t, want.list, got.ListID, "task %d list", id)
		assert.Equal(t, want.pos, got.Position, "task %d position", id)
	}
	assertContiguous(t, s.Store().Lists())
}
