// Package view keeps the comment sidebar's derived state in step with the
// thread store and the editor selection.
//
// Every store change, selection change and document update triggers one
// synchronous recompute from a full store snapshot and a fresh selection
// resolve. Document updates matter in every order: anchors appear and
// disappear with marks, which decides both Selected and Orphaned.
// There is no incremental update and no debouncing.
package view

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/roach88/marginalia/internal/anchor"
	"github.com/roach88/marginalia/internal/bus"
	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/model"
)

// ErrClosed is returned by Activate after Close.
var ErrClosed = errors.New("view: closed")

// ErrActive is returned by a second Activate.
var ErrActive = errors.New("view: already active")

// Order selects the sort key for both thread lists.
type Order int

const (
	// OrderHint sorts by the hint range recorded at creation, then id.
	OrderHint Order = iota
	// OrderLive sorts by the live anchor start, falling back to the hint
	// for orphaned threads, then id.
	OrderLive
)

// ParseOrder maps "hint" and "live" to an Order.
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "", "hint":
		return OrderHint, true
	case "live":
		return OrderLive, true
	}
	return OrderHint, false
}

func (o Order) String() string {
	if o == OrderLive {
		return "live"
	}
	return "hint"
}

// Phase is the recompute state of a Sync.
type Phase int

const (
	// Idle: no recompute pending.
	Idle Phase = iota
	// Dirty: a notification arrived; the state is being rebuilt or its
	// OnChange listeners are still running.
	Dirty
)

// ThreadView is one thread as the sidebar shows it.
type ThreadView struct {
	Thread   model.Thread
	Live     model.Range // zero when Orphaned
	Orphaned bool
}

func (tv ThreadView) sortKey(order Order) int {
	if order == OrderLive && !tv.Orphaned {
		return tv.Live.From
	}
	return tv.Thread.HintRange.From
}

// State is the derived sidebar state. Selected includes resolved threads;
// UnresolvedOthers excludes everything in Selected.
type State struct {
	Selection        model.Range
	Selected         []ThreadView
	UnresolvedOthers []ThreadView
	Version          uint64 // increments on every recompute
}

// Document is the editor surface the view reads.
type Document interface {
	Selection() model.Range
	OnUpdate(fn func()) func()
}

// Sync recomputes State on store and selection notifications.
type Sync struct {
	store   *crdt.Doc
	anchors *anchor.Anchors
	doc     Document
	bus     *bus.Bus
	order   Order
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	phase     Phase
	pending   int // recomputes whose listeners have not returned
	active    bool
	closed    bool
	storeSub  *crdt.Subscription
	selSub    *bus.Subscription
	unsubEdit func()

	listenerMu sync.Mutex
	listeners  []listener
	nextID     int
}

type listener struct {
	id int
	fn func(State)
}

// Option configures a Sync.
type Option func(*Sync)

// WithOrder sets the sort order. Default: OrderHint.
func WithOrder(o Order) Option {
	return func(s *Sync) {
		s.order = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sync) {
		s.logger = logger
	}
}

// New creates an inactive Sync. Call Activate to subscribe.
func New(store *crdt.Doc, anchors *anchor.Anchors, doc Document, b *bus.Bus, opts ...Option) *Sync {
	s := &Sync{
		store:   store,
		anchors: anchors,
		doc:     doc,
		bus:     b,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate subscribes to store changes, selection changes and document
// updates, then computes the initial state.
func (s *Sync) Activate() error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.active:
		s.mu.Unlock()
		return ErrActive
	}
	s.active = true
	s.storeSub = s.store.ObserveDeep(func(crdt.ChangeEvent) { s.Recompute() })
	s.selSub = s.bus.On(bus.SelectionChanged, func(any) { s.Recompute() })
	s.unsubEdit = s.doc.OnUpdate(s.Recompute)
	s.mu.Unlock()

	s.Recompute()
	return nil
}

// Close releases every subscription. Safe to call more than once.
func (s *Sync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.active = false
	if s.storeSub != nil {
		s.storeSub.Close()
	}
	if s.selSub != nil {
		s.selSub.Close()
	}
	if s.unsubEdit != nil {
		s.unsubEdit()
	}
}

// Active reports whether the view is subscribed.
func (s *Sync) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns the last computed state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Phase returns the recompute phase.
func (s *Sync) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// OnChange registers fn to receive every recomputed state. The returned
// function unregisters it.
func (s *Sync) OnChange(fn func(State)) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		s.listeners = slices.DeleteFunc(slices.Clone(s.listeners), func(l listener) bool { return l.id == id })
	}
}

// Recompute rebuilds the state now. Notifications call it; callers only
// need it after changing something the view does not observe.
func (s *Sync) Recompute() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.phase = Dirty
	s.pending++
	next := s.compute(s.state.Version + 1)
	s.state = next
	s.mu.Unlock()

	s.logger.Debug("view recomputed",
		"version", next.Version, "selected", len(next.Selected), "unresolved_others", len(next.UnresolvedOthers))

	s.listenerMu.Lock()
	listeners := s.listeners
	s.listenerMu.Unlock()
	for _, l := range listeners {
		l.fn(next)
	}

	s.mu.Lock()
	if s.pending--; s.pending == 0 {
		s.phase = Idle
	}
	s.mu.Unlock()
}

func (s *Sync) compute(version uint64) State {
	sel := s.doc.Selection()
	selected := s.anchors.Resolve(sel)

	views := lo.Map(s.store.All(), func(t model.Thread, _ int) ThreadView {
		live, ok := s.anchors.Locate(t.ID)
		return ThreadView{Thread: t, Live: live, Orphaned: !ok}
	})
	s.sort(views)

	return State{
		Selection: sel,
		Selected: lo.Filter(views, func(v ThreadView, _ int) bool {
			return selected.Contains(v.Thread.ID)
		}),
		UnresolvedOthers: lo.Filter(views, func(v ThreadView, _ int) bool {
			return !v.Thread.Resolved && !selected.Contains(v.Thread.ID)
		}),
		Version: version,
	}
}

func (s *Sync) sort(views []ThreadView) {
	slices.SortFunc(views, func(a, b ThreadView) int {
		if c := cmp.Compare(a.sortKey(s.order), b.sortKey(s.order)); c != 0 {
			return c
		}
		return cmp.Compare(a.Thread.ID, b.Thread.ID)
	})
}

// IDs returns the thread ids of views in order.
func IDs(views []ThreadView) []string {
	return lo.Map(views, func(v ThreadView, _ int) string { return v.Thread.ID })
}
