// Package workspace assembles one replica: the thread store, the
// document with its anchors, the command controller and the sidebar view.
//
// Open backs the replica with a SQLite file. Every committed or merged
// update is appended to the file as it happens; the document snapshot is
// written by Save. NewMemory builds the same graph without persistence.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/marginalia/internal/anchor"
	"github.com/roach88/marginalia/internal/bus"
	"github.com/roach88/marginalia/internal/config"
	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/document"
	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/replication"
	"github.com/roach88/marginalia/internal/store"
	"github.com/roach88/marginalia/internal/thread"
	"github.com/roach88/marginalia/internal/view"
)

// DocumentName is the documents-table key of the replica's document.
const DocumentName = "main"

const metaReplica = "replica"

// Workspace is a fully wired replica.
type Workspace struct {
	Threads    *crdt.Doc
	Doc        *document.Document
	Anchors    *anchor.Anchors
	Bus        *bus.Bus
	Controller *thread.Controller
	View       *view.Sync

	logger *slog.Logger
	store  *store.Store
	ctx    context.Context

	persistSub *crdt.Subscription
	focusSub   *bus.Subscription
	unbridge   func()

	mu         sync.Mutex
	persistErr error
	focused    string
}

type settings struct {
	logger   *slog.Logger
	identity thread.Identity
	ids      thread.IDGenerator
	clock    thread.Clock
	order    view.Order
	text     string
}

// Option configures Open and NewMemory.
type Option func(*settings)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithIdentity overrides the author derived from the config.
func WithIdentity(id thread.Identity) Option {
	return func(s *settings) {
		s.identity = id
	}
}

// WithIDGenerator sets the thread and comment id generator.
func WithIDGenerator(g thread.IDGenerator) Option {
	return func(s *settings) {
		s.ids = g
	}
}

// WithClock sets the wall clock for comment timestamps.
func WithClock(c thread.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithOrder sets the sidebar order.
func WithOrder(o view.Order) Option {
	return func(s *settings) {
		s.order = o
	}
}

// WithText seeds the document text. Open ignores it when a saved
// snapshot exists.
func WithText(text string) Option {
	return func(s *settings) {
		s.text = text
	}
}

func newSettings(cfg config.Config, opts []Option) (*settings, error) {
	s := &settings{
		logger:   slog.Default(),
		identity: thread.StaticIdentity(model.Author{ID: cfg.Author.ID, Name: cfg.Author.Name}),
		ids:      thread.UUIDv7Generator{},
		clock:    thread.SystemClock{},
	}
	if cfg.Order != "" {
		order, ok := view.ParseOrder(cfg.Order)
		if !ok {
			return nil, fmt.Errorf("unknown order %q", cfg.Order)
		}
		s.order = order
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open opens (or creates) the replica stored at cfg.DB, replays its
// update log and restores its document.
//
// When cfg.Replica is empty the replica name recorded in the file is
// used; a new file gets a generated one.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Workspace, error) {
	s, err := newSettings(cfg, opts)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	ws, err := openStore(ctx, st, cfg, s)
	if err != nil {
		st.Close()
		return nil, err
	}
	return ws, nil
}

func openStore(ctx context.Context, st *store.Store, cfg config.Config, s *settings) (*Workspace, error) {
	replica, err := resolveReplica(ctx, st, cfg.Replica)
	if err != nil {
		return nil, err
	}

	lamport, err := st.MaxLamport(ctx)
	if err != nil {
		return nil, err
	}
	threads := crdt.New(replica,
		crdt.WithClock(crdt.NewClockAt(lamport)),
		crdt.WithLogger(s.logger.With("replica", replica)))
	replayed, err := st.Replay(ctx, threads)
	if err != nil {
		return nil, err
	}

	doc := document.New(s.text)
	anchors := anchor.New(doc)
	snapshot, err := st.LoadDocument(ctx, DocumentName)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if err := doc.UnmarshalBinary(snapshot); err != nil {
			return nil, err
		}
	}

	ws := assemble(threads, doc, anchors, s)
	ws.store = st
	ws.ctx = context.WithoutCancel(ctx)
	ws.persistSub = threads.ObserveDeep(ws.persist)

	s.logger.Info("workspace opened",
		"replica", replica, "db", st.Path(), "updates", replayed, "threads", threads.Len())
	return ws, nil
}

func resolveReplica(ctx context.Context, st *store.Store, configured string) (string, error) {
	recorded, err := st.Meta(ctx, metaReplica)
	switch {
	case errors.Is(err, store.ErrNotFound):
		recorded = ""
	case err != nil:
		return "", err
	}

	replica := configured
	if replica == "" {
		replica = recorded
	}
	if replica == "" {
		replica = thread.UUIDv7Generator{}.Generate()
	}
	if replica != recorded {
		if recorded != "" {
			return "", fmt.Errorf("database belongs to replica %q, not %q", recorded, replica)
		}
		if err := st.SetMeta(ctx, metaReplica, replica); err != nil {
			return "", err
		}
	}
	return replica, nil
}

// NewMemory builds an unpersisted replica named replica over a document
// holding the WithText text.
func NewMemory(replica string, cfg config.Config, opts ...Option) (*Workspace, error) {
	s, err := newSettings(cfg, opts)
	if err != nil {
		return nil, err
	}
	threads := crdt.New(replica, crdt.WithLogger(s.logger.With("replica", replica)))
	doc := document.New(s.text)
	return assemble(threads, doc, anchor.New(doc), s), nil
}

func assemble(threads *crdt.Doc, doc *document.Document, anchors *anchor.Anchors, s *settings) *Workspace {
	b := bus.New(s.logger)
	ws := &Workspace{
		Threads: threads,
		Doc:     doc,
		Anchors: anchors,
		Bus:     b,
		logger:  s.logger,
	}
	ws.Controller = thread.NewController(
		func() *crdt.Doc { return ws.Threads },
		anchors, doc, s.identity,
		thread.WithIDGenerator(s.ids),
		thread.WithClock(s.clock),
		thread.WithBus(b),
		thread.WithLogger(s.logger),
	)
	ws.View = view.New(threads, anchors, doc, b,
		view.WithOrder(s.order),
		view.WithLogger(s.logger))

	ws.unbridge = doc.OnSelectionChange(func(r model.Range) {
		b.Emit(bus.SelectionChanged, r)
	})
	ws.focusSub = b.On(bus.FocusView, func(p any) {
		id, _ := p.(string)
		ws.mu.Lock()
		ws.focused = id
		ws.mu.Unlock()
		s.logger.Debug("comment view focused", "thread", id)
	})
	return ws
}

// persist appends every applied update to the store. Failures are kept
// and reported by Err and Save.
func (w *Workspace) persist(ev crdt.ChangeEvent) {
	if _, err := w.store.AppendUpdate(w.ctx, ev.Update); err != nil {
		w.logger.Error("persist update failed", "update", ev.Update.ID.String(), "error", err)
		w.mu.Lock()
		w.persistErr = errors.Join(w.persistErr, err)
		w.mu.Unlock()
	}
}

// Replica returns the replica name.
func (w *Workspace) Replica() string {
	return w.Threads.Replica()
}

// Persistent reports whether the workspace is backed by a database.
func (w *Workspace) Persistent() bool {
	return w.store != nil
}

// Focused returns the thread most recently focused by a create, or "".
func (w *Workspace) Focused() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Err returns the accumulated persistence errors.
func (w *Workspace) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.persistErr
}

// Save writes the document snapshot. It reports false when the stored
// snapshot already has the same content hash and nothing was written.
// Memory workspaces never write.
func (w *Workspace) Save(ctx context.Context) (bool, error) {
	if err := w.Err(); err != nil {
		return false, fmt.Errorf("update log incomplete: %w", err)
	}
	if w.store == nil {
		return false, nil
	}
	snapshot, err := w.Doc.MarshalBinary()
	if err != nil {
		return false, err
	}
	hash := model.DocumentHash(snapshot)
	switch stored, err := w.store.DocumentHash(ctx, DocumentName); {
	case err == nil && stored == hash:
		w.logger.Debug("document unchanged", "hash", hash)
		return false, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return false, err
	}
	if err := w.store.SaveDocument(ctx, DocumentName, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

// Merge exchanges thread updates with other in both directions.
func (w *Workspace) Merge(other *Workspace) (replication.Stats, error) {
	stats, err := replication.Exchange(w.Threads, other.Threads)
	if err != nil {
		return stats, err
	}
	w.logger.Info("replicas merged",
		"replica", w.Replica(), "peer", other.Replica(), "received", stats.BToA, "sent", stats.AToB)
	return stats, nil
}

// AdoptDocument replaces this replica's document content with a copy of
// src's, anchors included. Document replication is outside the thread
// store; this stands in for it.
func (w *Workspace) AdoptDocument(src *Workspace) error {
	snapshot, err := src.Doc.MarshalBinary()
	if err != nil {
		return err
	}
	if err := w.Doc.UnmarshalBinary(snapshot); err != nil {
		return err
	}
	if w.View.Active() {
		w.View.Recompute()
	}
	return nil
}

// Close releases subscriptions and the database.
func (w *Workspace) Close() error {
	w.View.Close()
	if w.persistSub != nil {
		w.persistSub.Close()
	}
	w.focusSub.Close()
	w.unbridge()
	if w.store != nil {
		return w.store.Close()
	}
	return nil
}
