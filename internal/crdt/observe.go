package crdt

import "sync"

// Origin tells observers where a committed update came from.
type Origin int

const (
	// OriginLocal marks updates committed through Transact on this replica.
	OriginLocal Origin = iota
	// OriginRemote marks updates merged through ApplyUpdate.
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "remote"
}

// ChangeEvent describes one committed update.
type ChangeEvent struct {
	Update  Update
	Origin  Origin
	Threads []string // ids touched, sorted
}

// Observer receives change events.
type Observer func(ChangeEvent)

// Subscription detaches an observer.
type Subscription struct {
	once   sync.Once
	list   *observerList
	handle int
}

// Close stops delivery to the observer. Safe to call more than once and
// from inside the observer itself.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.list.remove(s.handle)
	})
}

// ObserveDeep registers fn for every committed change to any thread,
// local or remote. Events arrive in commit order, one at a time.
func (d *Doc) ObserveDeep(fn Observer) *Subscription {
	return d.observers.add(fn)
}

type observerEntry struct {
	handle int
	fn     Observer
}

// observerList fans events out to observers. A single goroutine delivers
// at a time; events committed meanwhile are queued and delivered by it.
type observerList struct {
	mu          sync.Mutex
	entries     []observerEntry
	next        int
	queue       []ChangeEvent
	dispatching bool
}

func (l *observerList) add(fn Observer) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	l.entries = append(l.entries, observerEntry{handle: l.next, fn: fn})
	return &Subscription{list: l, handle: l.next}
}

func (l *observerList) remove(handle int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.handle == handle {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *observerList) enqueue(events ...ChangeEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, events...)
	l.mu.Unlock()
}

// drain delivers queued events unless another call is already doing so.
func (l *observerList) drain() {
	l.mu.Lock()
	if l.dispatching {
		l.mu.Unlock()
		return
	}
	l.dispatching = true

	for len(l.queue) > 0 {
		ev := l.queue[0]
		l.queue = l.queue[1:]
		entries := l.entries
		l.mu.Unlock()

		for _, e := range entries {
			if l.active(e.handle) {
				e.fn(ev)
			}
		}

		l.mu.Lock()
	}
	l.dispatching = false
	l.mu.Unlock()
}

func (l *observerList) active(handle int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.handle == handle {
			return true
		}
	}
	return false
}
