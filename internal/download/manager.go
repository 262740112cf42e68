package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tubeload/tubeload/internal/logger"
	"github.com/tubeload/tubeload/internal/progress"
	"github.com/tubeload/tubeload/internal/session"
)

// DefaultLimit is the number of transfers allowed to run at once when
// Options.Limit is unset.
const DefaultLimit = 2

const defaultEventBuffer = 16

// Options configures a Manager.
type Options struct {
	// Limit caps concurrently running transfers, DefaultLimit when <= 0.
	Limit   int
	Policy  Policy
	Starter session.Starter
	// EventBuffer sizes each subscriber channel.
	EventBuffer int
}

// Manager owns the download queue. Every method is safe for concurrent use;
// all item state is guarded by one mutex so observers always see a consistent
// queue.
type Manager struct {
	mu       sync.Mutex
	items    []*Item
	byID     map[string]*Item
	enqueued int
	allDone  bool
	closed   bool

	subs    map[int]chan any
	nextSub int

	limit   int
	policy  Policy
	starter session.Starter
	evBuf   int
	tracker *progress.Tracker

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Manager. The Starter is required.
func New(opts Options) *Manager {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		byID:    make(map[string]*Item),
		subs:    make(map[int]chan any),
		limit:   opts.Limit,
		policy:  opts.Policy,
		starter: opts.Starter,
		evBuf:   opts.EventBuffer,
		tracker: progress.NewTracker(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue admits a new download at the back of the queue. It starts
// immediately when a concurrency slot is free.
func (m *Manager) Enqueue(req Request) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Snapshot{}, ErrShutdown
	}
	if err := m.policy.Check(req, m.enqueued); err != nil {
		return Snapshot{}, err
	}

	dest := assignDest(req, m.destClaimed)
	it := newItem(req, dest)
	m.items = append(m.items, it)
	m.byID[it.id] = it
	m.enqueued++
	m.allDone = false

	snap := it.snapshot(len(m.items) - 1)
	logger.Log.Infow("enqueued", "id", it.id, "url", req.URL, "dest", dest)
	m.publish(ItemAddedMsg{Item: snap})
	m.admit()
	return snap, nil
}

// destClaimed reports whether a destination path belongs to a live item.
// Called with m.mu held.
func (m *Manager) destClaimed(path string) bool {
	for _, it := range m.items {
		if it.dest == path && it.status != StatusFailed && it.status != StatusCancelled {
			return true
		}
	}
	return false
}

// Cancel stops an item. Running transfers are interrupted, queued and paused
// items go straight to cancelled, finished items are left alone.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if it.status.Terminal() {
		return nil
	}

	s := m.detach(it)
	it.status = StatusCancelled
	m.tracker.Drop(it.id)
	logger.Log.Infow("cancelled", "id", it.id)
	m.publishState(it)
	if s != nil {
		s.Cancel()
	}
	m.admit()
	m.checkAllComplete()
	return nil
}

// Pause suspends an item. Partial data is discarded; resuming re-queues the
// download from the beginning.
func (m *Manager) Pause(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if it.status == StatusPaused {
		return nil
	}
	if it.status.Terminal() {
		return ErrNotActive
	}

	s := m.detach(it)
	it.status = StatusPaused
	it.bytesReceived = 0
	m.tracker.Drop(it.id)
	m.publishState(it)
	if s != nil {
		s.Cancel()
	}
	m.admit()
	return nil
}

// Resume re-queues a paused item.
func (m *Manager) Resume(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if it.status != StatusPaused {
		return ErrNotPaused
	}

	it.status = StatusQueued
	m.publishState(it)
	m.admit()
	return nil
}

// Restart puts a finished item back in the queue with its counters reset.
func (m *Manager) Restart(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrShutdown
	}
	it, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !it.status.Terminal() {
		return ErrNotRestartable
	}

	it.gen++
	it.status = StatusQueued
	it.bytesReceived = 0
	it.bytesTotal = it.request.TotalSize
	it.lastErr = nil
	m.allDone = false
	logger.Log.Infow("restarted", "id", it.id)
	m.publishState(it)
	m.admit()
	return nil
}

// Remove drops an item from the queue entirely, interrupting it first when
// it is running.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}

	s := m.detach(it)
	delete(m.byID, id)
	for i, other := range m.items {
		if other == it {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	m.tracker.Drop(id)
	logger.Log.Infow("removed", "id", id)
	m.publish(ItemRemovedMsg{ID: id})
	if s != nil {
		s.Cancel()
	}
	m.admit()
	m.checkAllComplete()
	return nil
}

// Reorder moves a queued item to the given position in the queue. Positions
// cover the whole queue, 0 being the front.
func (m *Manager) Reorder(id string, pos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if it.status != StatusQueued {
		return ErrNotQueued
	}
	if pos < 0 || pos >= len(m.items) {
		return ErrBadPosition
	}

	cur := -1
	for i, other := range m.items {
		if other == it {
			cur = i
			break
		}
	}
	if cur == pos {
		return nil
	}
	m.items = append(m.items[:cur], m.items[cur+1:]...)
	m.items = append(m.items[:pos], append([]*Item{it}, m.items[pos:]...)...)
	m.publishState(it)
	return nil
}

// AllComplete reports whether every item in the queue reached a terminal
// state. An empty queue has nothing to report as complete.
func (m *Manager) AllComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items) > 0 && m.allTerminal()
}

// Items returns a snapshot of the whole queue in order.
func (m *Manager) Items() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := make([]Snapshot, len(m.items))
	for i, it := range m.items {
		snaps[i] = it.snapshot(i)
	}
	return snaps
}

// Get returns a snapshot of one item.
func (m *Manager) Get(id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return it.snapshot(m.position(it)), nil
}

// Subscribe registers an event channel. The returned func unsubscribes; the
// channel is closed afterwards.
func (m *Manager) Subscribe() (<-chan any, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan any, m.evBuf)
	key := m.nextSub
	m.nextSub++
	m.subs[key] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[key]; ok {
			delete(m.subs, key)
			close(sub)
		}
	}
}

// Shutdown interrupts every running transfer and stops accepting work.
// Subscriber channels are closed.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.cancel()

	for _, it := range m.items {
		if s := m.detach(it); s != nil {
			it.status = StatusCancelled
			s.Cancel()
		}
	}
	for key, ch := range m.subs {
		delete(m.subs, key)
		close(ch)
	}
}

// admit promotes queued items into free concurrency slots in queue order.
// Called with m.mu held.
func (m *Manager) admit() {
	if m.closed {
		return
	}
	running := 0
	for _, it := range m.items {
		if it.status.running() {
			running++
		}
	}
	for _, it := range m.items {
		if running >= m.limit {
			return
		}
		if it.status == StatusQueued {
			m.startSession(it)
			running++
		}
	}
}

// startSession attaches a transfer session to a queued item. Called with
// m.mu held; session callbacks are delivered asynchronously, so the closures
// can take the lock again.
func (m *Manager) startSession(it *Item) {
	it.status = StatusStarting
	it.gen++
	id, gen := it.id, it.gen

	m.publishState(it)
	it.session = m.starter.Start(m.ctx, session.StartRequest{
		URL:       it.request.URL,
		Dest:      it.dest,
		KnownSize: it.request.TotalSize,
		OnStarted: func(total int64, dest string) {
			m.sessionStarted(id, gen, total, dest)
		},
		OnProgress: func(received, total int64) {
			m.sessionProgress(id, gen, received, total)
		},
		OnDone: func(err error) {
			m.sessionDone(id, gen, err)
		},
	})
}

func (m *Manager) sessionStarted(id string, gen uint64, total int64, dest string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok || it.gen != gen {
		return
	}
	it.status = StatusActive
	it.dest = dest
	if total > 0 {
		it.bytesTotal = total
	}
	m.publishState(it)
}

func (m *Manager) sessionProgress(id string, gen uint64, received, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok || it.gen != gen {
		return
	}
	it.bytesReceived = received
	if total > 0 {
		it.bytesTotal = total
	}
	m.tracker.Record(id, time.Now(), received)

	msg := ItemProgressMsg{ID: id, Received: received, Total: it.bytesTotal}
	msg.Rate, msg.RateKnown = m.tracker.Rate(id)
	msg.ETA, msg.ETAKnown = m.tracker.ETA(id, received, it.bytesTotal)
	m.publish(msg)
}

func (m *Manager) sessionDone(id string, gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[id]
	if !ok || it.gen != gen {
		return
	}
	it.session = nil

	switch {
	case err == nil:
		it.status = StatusCompleted
		if it.bytesTotal > 0 {
			it.bytesReceived = it.bytesTotal
		} else {
			it.bytesTotal = it.bytesReceived
		}
		logger.Log.Infow("completed", "id", id, "dest", it.dest)
	case errors.Is(err, session.ErrCancelled):
		it.status = StatusCancelled
		logger.Log.Infow("cancelled by session", "id", id)
	default:
		it.status = StatusFailed
		it.lastErr = err
		logger.Log.Warnw("failed", "id", id, "error", err)
	}

	m.tracker.Drop(id)
	m.publishState(it)
	m.admit()
	m.checkAllComplete()
}

// detach disconnects an item's session so late callbacks from it are
// ignored. Called with m.mu held; returns the handle for the caller to
// cancel.
func (m *Manager) detach(it *Item) session.Handle {
	s := it.session
	it.session = nil
	if s != nil {
		it.gen++
	}
	return s
}

func (m *Manager) allTerminal() bool {
	for _, it := range m.items {
		if !it.status.Terminal() {
			return false
		}
	}
	return true
}

// checkAllComplete publishes AllCompleteMsg once per transition into the
// all-terminal state. Called with m.mu held.
func (m *Manager) checkAllComplete() {
	if m.allDone || len(m.items) == 0 || !m.allTerminal() {
		return
	}
	m.allDone = true
	logger.Log.Infow("all downloads finished")
	m.publish(AllCompleteMsg{})
}

func (m *Manager) position(it *Item) int {
	for i, other := range m.items {
		if other == it {
			return i
		}
	}
	return -1
}

func (m *Manager) publishState(it *Item) {
	m.publish(ItemStateMsg{Item: it.snapshot(m.position(it))})
}

// publish sends msg to every subscriber without blocking. Called with m.mu
// held.
func (m *Manager) publish(msg any) {
	for _, ch := range m.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
