package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubeload/tubeload/internal/session"
)

// fakeStarter hands out scripted sessions so tests can drive transfer
// callbacks deterministically.
type fakeStarter struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (f *fakeStarter) Start(ctx context.Context, req session.StartRequest) session.Handle {
	s := &fakeSession{req: req, cancelled: make(chan struct{})}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s
}

func (f *fakeStarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeStarter) at(i int) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[i]
}

type fakeSession struct {
	req       session.StartRequest
	once      sync.Once
	cancelled chan struct{}
}

func (s *fakeSession) Cancel() {
	s.once.Do(func() { close(s.cancelled) })
}

func (s *fakeSession) wasCancelled() bool {
	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

func (s *fakeSession) start(total int64) {
	s.req.OnStarted(total, s.req.Dest)
}

func (s *fakeSession) progress(received, total int64) {
	s.req.OnProgress(received, total)
}

func (s *fakeSession) finish(err error) {
	s.req.OnDone(err)
}

func newTestManager(t *testing.T, limit int) (*Manager, *fakeStarter, string) {
	t.Helper()
	starter := &fakeStarter{}
	m := New(Options{Limit: limit, Starter: starter})
	t.Cleanup(m.Shutdown)
	return m, starter, t.TempDir()
}

func enqueue(t *testing.T, m *Manager, dir, url string) Snapshot {
	t.Helper()
	snap, err := m.Enqueue(Request{URL: url, Dir: dir})
	require.NoError(t, err)
	return snap
}

func TestEnqueueRespectsConcurrencyLimit(t *testing.T) {
	m, starter, dir := newTestManager(t, 2)

	a := enqueue(t, m, dir, "http://example.com/a.mp4")
	b := enqueue(t, m, dir, "http://example.com/b.mp4")
	c := enqueue(t, m, dir, "http://example.com/c.mp4")

	assert.Equal(t, 2, starter.count(), "only two transfers may run at once")

	snapA, _ := m.Get(a.ID)
	snapB, _ := m.Get(b.ID)
	snapC, _ := m.Get(c.ID)
	assert.Equal(t, StatusStarting, snapA.Status)
	assert.Equal(t, StatusStarting, snapB.Status)
	assert.Equal(t, StatusQueued, snapC.Status)

	// Finishing the first admits the third.
	starter.at(0).finish(nil)
	assert.Equal(t, 3, starter.count())

	snapC, _ = m.Get(c.ID)
	assert.Equal(t, StatusStarting, snapC.Status)
}

func TestCompletionFlow(t *testing.T) {
	m, starter, dir := newTestManager(t, 2)
	snap := enqueue(t, m, dir, "http://example.com/clip.mp4")

	s := starter.at(0)
	s.start(1000)
	got, _ := m.Get(snap.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, int64(1000), got.BytesTotal)

	s.progress(400, 1000)
	got, _ = m.Get(snap.ID)
	assert.Equal(t, int64(400), got.BytesReceived)

	s.finish(nil)
	got, _ = m.Get(snap.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, int64(1000), got.BytesReceived, "completion syncs counters")
	assert.True(t, got.Status.Terminal())
}

func TestFailureKeepsError(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)
	snap := enqueue(t, m, dir, "http://example.com/clip.mp4")

	cause := &session.TransferError{
		Kind: session.FailureHTTPStatus,
		URL:  "http://example.com/clip.mp4",
		Err:  errors.New("unexpected status: 404 Not Found"),
	}
	starter.at(0).finish(cause)

	got, _ := m.Get(snap.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "404")
}

func TestCancelSemantics(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)

	active := enqueue(t, m, dir, "http://example.com/a.mp4")
	queued := enqueue(t, m, dir, "http://example.com/b.mp4")

	require.NoError(t, m.Cancel(queued.ID))
	got, _ := m.Get(queued.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	s := starter.at(0)
	require.NoError(t, m.Cancel(active.ID))
	assert.True(t, s.wasCancelled())
	got, _ = m.Get(active.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	// The detached session's late completion must not resurrect the item.
	s.finish(session.ErrCancelled)
	got, _ = m.Get(active.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	// Cancelling a finished item is a no-op.
	require.NoError(t, m.Cancel(active.ID))

	assert.ErrorIs(t, m.Cancel("nope"), ErrNotFound)
}

func TestRestartResetsItem(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)
	snap := enqueue(t, m, dir, "http://example.com/a.mp4")

	assert.ErrorIs(t, m.Restart(snap.ID), ErrNotRestartable)

	s := starter.at(0)
	s.start(1000)
	s.progress(500, 1000)
	s.finish(&session.TransferError{Kind: session.FailureConnect, URL: snap.URL, Err: errors.New("reset")})

	require.NoError(t, m.Restart(snap.ID))
	got, _ := m.Get(snap.ID)
	assert.Equal(t, StatusStarting, got.Status, "restart re-queues and a free slot admits immediately")
	assert.Equal(t, int64(0), got.BytesReceived)
	assert.Empty(t, got.Error)
	assert.Equal(t, 2, starter.count())
}

func TestPauseAndResume(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)
	a := enqueue(t, m, dir, "http://example.com/a.mp4")
	b := enqueue(t, m, dir, "http://example.com/b.mp4")

	s := starter.at(0)
	s.start(1000)
	s.progress(300, 1000)

	require.NoError(t, m.Pause(a.ID))
	assert.True(t, s.wasCancelled())
	got, _ := m.Get(a.ID)
	assert.Equal(t, StatusPaused, got.Status)
	assert.Equal(t, int64(0), got.BytesReceived, "pause discards partial progress")

	// The freed slot goes to the next queued item.
	gotB, _ := m.Get(b.ID)
	assert.Equal(t, StatusStarting, gotB.Status)

	assert.ErrorIs(t, m.Resume(b.ID), ErrNotPaused)

	require.NoError(t, m.Resume(a.ID))
	got, _ = m.Get(a.ID)
	assert.Equal(t, StatusQueued, got.Status, "resume waits for a free slot")

	starter.at(1).finish(nil)
	got, _ = m.Get(a.ID)
	assert.Equal(t, StatusStarting, got.Status)
}

func TestRemove(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)
	a := enqueue(t, m, dir, "http://example.com/a.mp4")
	b := enqueue(t, m, dir, "http://example.com/b.mp4")

	s := starter.at(0)
	require.NoError(t, m.Remove(a.ID))
	assert.True(t, s.wasCancelled())

	_, err := m.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Remove(a.ID), ErrNotFound)

	// Removal freed the slot.
	gotB, _ := m.Get(b.ID)
	assert.Equal(t, StatusStarting, gotB.Status)
	assert.Len(t, m.Items(), 1)
}

func TestReorder(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)
	enqueue(t, m, dir, "http://example.com/a.mp4")
	b := enqueue(t, m, dir, "http://example.com/b.mp4")
	c := enqueue(t, m, dir, "http://example.com/c.mp4")

	assert.ErrorIs(t, m.Reorder(b.ID, 5), ErrBadPosition)
	assert.ErrorIs(t, m.Reorder("nope", 0), ErrNotFound)

	// Move c ahead of b; the running item cannot be reordered.
	require.NoError(t, m.Reorder(c.ID, 1))
	items := m.Items()
	assert.Equal(t, c.ID, items[1].ID)
	assert.Equal(t, b.ID, items[2].ID)

	running := m.Items()[0]
	assert.ErrorIs(t, m.Reorder(running.ID, 2), ErrNotQueued)

	// The next admitted item follows the new order.
	starter.at(0).finish(nil)
	gotC, _ := m.Get(c.ID)
	assert.Equal(t, StatusStarting, gotC.Status)
	gotB, _ := m.Get(b.ID)
	assert.Equal(t, StatusQueued, gotB.Status)
}

func TestAllCompleteFiresOncePerDrain(t *testing.T) {
	m, starter, dir := newTestManager(t, 2)

	events, unsub := m.Subscribe()
	defer unsub()

	assert.False(t, m.AllComplete(), "an empty queue has nothing complete")

	a := enqueue(t, m, dir, "http://example.com/a.mp4")
	assert.False(t, m.AllComplete())

	starter.at(0).finish(nil)
	assert.True(t, m.AllComplete())

	assert.Equal(t, 1, countAllComplete(events), "one completion notice per drain")

	// Restarting and finishing again announces a second drain.
	require.NoError(t, m.Restart(a.ID))
	starter.at(1).finish(nil)
	assert.Equal(t, 1, countAllComplete(events))
}

// countAllComplete drains buffered events and counts AllCompleteMsg.
func countAllComplete(events <-chan any) int {
	n := 0
	for {
		select {
		case ev := <-events:
			if _, ok := ev.(AllCompleteMsg); ok {
				n++
			}
		default:
			return n
		}
	}
}

func TestSubscribePublishesLifecycle(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)

	events, unsub := m.Subscribe()
	defer unsub()

	snap := enqueue(t, m, dir, "http://example.com/a.mp4")
	s := starter.at(0)
	s.start(1000)
	s.progress(1000, 1000)
	s.finish(nil)

	var added, progressed, completed bool
	timeout := time.After(time.Second)
	for !(added && progressed && completed) {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case ItemAddedMsg:
				added = ev.Item.ID == snap.ID
			case ItemProgressMsg:
				progressed = ev.Received == 1000
			case ItemStateMsg:
				if ev.Item.Status == StatusCompleted {
					completed = true
				}
			}
		case <-timeout:
			t.Fatalf("missing events: added=%v progressed=%v completed=%v", added, progressed, completed)
		}
	}
}

func TestShutdownStopsWork(t *testing.T) {
	m, starter, dir := newTestManager(t, 1)
	enqueue(t, m, dir, "http://example.com/a.mp4")

	s := starter.at(0)
	m.Shutdown()
	assert.True(t, s.wasCancelled())

	_, err := m.Enqueue(Request{URL: "http://example.com/b.mp4", Dir: dir})
	assert.ErrorIs(t, err, ErrShutdown)
}
