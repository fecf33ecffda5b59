package crdt

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/marginalia/internal/model"
)

// Doc is one replica of the thread store.
//
// Thread-safety model:
//   - Get, All, Len, Has, Version, UpdatesSince: safe from any goroutine
//   - Transact, ApplyUpdate: serialized; each commit is atomic
//   - observers run outside the write lock, one event at a time
type Doc struct {
	replica string
	clock   *Clock
	logger  *slog.Logger

	writeMu sync.Mutex // serializes commits

	mu         sync.RWMutex // guards the fields below
	records    map[string]*record
	tombstones mapset.Set[string]
	version    map[string]uint64
	pending    map[string]map[uint64]Update
	log        []Update

	observers observerList
}

// Option configures a Doc.
type Option func(*Doc)

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Doc) {
		d.logger = logger
	}
}

// WithClock sets the Lamport clock. Used to resume from a persisted
// position.
func WithClock(c *Clock) Option {
	return func(d *Doc) {
		d.clock = c
	}
}

// New creates an empty replica. The replica name must be unique among
// all peers that will ever exchange updates.
func New(replica string, opts ...Option) *Doc {
	d := &Doc{
		replica:    replica,
		clock:      NewClock(),
		logger:     slog.Default(),
		records:    make(map[string]*record),
		tombstones: mapset.NewThreadUnsafeSet[string](),
		version:    make(map[string]uint64),
		pending:    make(map[string]map[uint64]Update),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Replica returns this replica's name.
func (d *Doc) Replica() string {
	return d.replica
}

// Clock returns the replica's Lamport clock.
func (d *Doc) Clock() *Clock {
	return d.clock
}

// Get returns a snapshot of the thread, or false if no visible record
// exists for id.
func (d *Doc) Get(id string) (model.Thread, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec := d.visibleLocked(id)
	if rec == nil {
		return model.Thread{}, false
	}
	return rec.snapshot(id), true
}

// Has reports whether a visible record exists for id.
func (d *Doc) Has(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.visibleLocked(id) != nil
}

// Deleted reports whether id has been tombstoned on this replica.
func (d *Doc) Deleted(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tombstones.Contains(id)
}

// All returns snapshots of every visible thread. The order is
// unspecified; callers sort.
func (d *Doc) All() []model.Thread {
	d.mu.RLock()
	defer d.mu.RUnlock()

	threads := make([]model.Thread, 0, len(d.records))
	for id, rec := range d.records {
		if rec.created {
			threads = append(threads, rec.snapshot(id))
		}
	}
	return threads
}

// ForEach calls visit with a snapshot of every visible thread until visit
// returns false. Snapshots are taken up front; visit may use the Doc.
func (d *Doc) ForEach(visit func(model.Thread) bool) {
	for _, t := range d.All() {
		if !visit(t) {
			return
		}
	}
}

// Len returns the number of visible threads.
func (d *Doc) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, rec := range d.records {
		if rec.created {
			n++
		}
	}
	return n
}

// Version returns, per replica, the highest contiguous seq applied here.
func (d *Doc) Version() map[string]uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]uint64, len(d.version))
	for r, seq := range d.version {
		out[r] = seq
	}
	return out
}

// UpdatesSince returns the applied updates the holder of version has not
// seen, in the order this replica applied them.
func (d *Doc) UpdatesSince(version map[string]uint64) []Update {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Update
	for _, u := range d.log {
		if u.ID.Seq > version[u.ID.Replica] {
			out = append(out, u)
		}
	}
	return out
}

// Pending returns the number of parked updates waiting on a gap.
func (d *Doc) Pending() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, byseq := range d.pending {
		n += len(byseq)
	}
	return n
}

// ApplyUpdate merges an update received from a peer (or replayed from a
// local log). It reports whether the update was applied now; duplicates
// and parked updates report false without error.
func (d *Doc) ApplyUpdate(u Update) (bool, error) {
	if err := u.validate(); err != nil {
		return false, err
	}

	d.writeMu.Lock()
	applied, events := d.integrate(u)
	d.observers.enqueue(events...)
	d.writeMu.Unlock()

	d.observers.drain()
	return applied, nil
}

// integrate applies u and anything it unblocks. Caller holds writeMu.
func (d *Doc) integrate(u Update) (bool, []ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	known := d.version[u.ID.Replica]
	switch {
	case u.ID.Seq <= known:
		d.logger.Debug("duplicate update ignored", "update", u.ID.String())
		return false, nil
	case u.ID.Seq > known+1:
		byseq := d.pending[u.ID.Replica]
		if byseq == nil {
			byseq = make(map[uint64]Update)
			d.pending[u.ID.Replica] = byseq
		}
		byseq[u.ID.Seq] = u
		d.logger.Warn("update parked waiting on gap",
			"update", u.ID.String(), "have", known)
		return false, nil
	}

	events := []ChangeEvent{d.applyLocked(u, OriginRemote)}
	for {
		byseq := d.pending[u.ID.Replica]
		next, ok := byseq[d.version[u.ID.Replica]+1]
		if !ok {
			break
		}
		delete(byseq, next.ID.Seq)
		if len(byseq) == 0 {
			delete(d.pending, u.ID.Replica)
		}
		events = append(events, d.applyLocked(next, OriginRemote))
	}
	return true, events
}

// applyLocked merges one in-order update. Caller holds mu for writing.
func (d *Doc) applyLocked(u Update, origin Origin) ChangeEvent {
	d.clock.Observe(u.Lamport)

	touched := make([]string, 0, len(u.Ops))
	for i, op := range u.Ops {
		if d.tombstones.Contains(op.ThreadID) {
			if op.Kind != OpDeleteThread {
				d.logger.Debug("operation on deleted thread dropped",
					"update", u.ID.String(), "thread", op.ThreadID, "kind", string(op.Kind))
			}
			continue
		}
		st := u.stamp(i)
		switch op.Kind {
		case OpPutThread:
			rec := d.recordLocked(op.ThreadID)
			rec.created = true
			rec.hint.write(*op.Hint, st)
			rec.resolved.write(false, st)
			rec.addComment(*op.Comment, st)
		case OpAppendComment:
			d.recordLocked(op.ThreadID).addComment(*op.Comment, st)
		case OpSetResolved:
			d.recordLocked(op.ThreadID).resolved.write(op.Resolved, st)
		case OpSetHint:
			d.recordLocked(op.ThreadID).hint.write(*op.Hint, st)
		case OpDeleteThread:
			d.tombstones.Add(op.ThreadID)
			delete(d.records, op.ThreadID)
		}
		touched = append(touched, op.ThreadID)
	}

	d.version[u.ID.Replica] = u.ID.Seq
	d.log = append(d.log, u)

	d.logger.Debug("update applied",
		"update", u.ID.String(), "lamport", u.Lamport, "ops", len(u.Ops), "origin", origin.String())

	return ChangeEvent{Update: u, Origin: origin, Threads: dedupe(touched)}
}

func (d *Doc) recordLocked(id string) *record {
	rec, ok := d.records[id]
	if !ok {
		rec = &record{}
		d.records[id] = rec
	}
	return rec
}

func (d *Doc) visibleLocked(id string) *record {
	rec, ok := d.records[id]
	if !ok || !rec.created {
		return nil
	}
	return rec
}

func dedupe(ids []string) []string {
	set := mapset.NewThreadUnsafeSet[string](ids...)
	out := set.ToSlice()
	sort.Strings(out)
	return out
}

// String summarizes the replica for logs.
func (d *Doc) String() string {
	return fmt.Sprintf("crdt.Doc(%s, threads=%d, pending=%d)", d.replica, d.Len(), d.Pending())
}
