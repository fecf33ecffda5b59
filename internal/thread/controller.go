package thread

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/marginalia/internal/anchor"
	"github.com/roach88/marginalia/internal/bus"
	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/model"
)

// StoreProvider returns the thread store of the active document, or nil
// while it is not initialized.
type StoreProvider func() *crdt.Doc

// Editor is the part of the document the controller drives directly.
type Editor interface {
	Len() int
	SetSelection(r model.Range) error
	ScrollIntoView()
}

// Controller executes thread commands for one replica.
type Controller struct {
	store    StoreProvider
	anchors  *anchor.Anchors
	editor   Editor
	identity Identity
	ids      IDGenerator
	clock    Clock
	bus      *bus.Bus
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDGenerator sets the id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Controller) {
		c.ids = g
	}
}

// WithClock sets the wall clock used for comment timestamps.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithBus makes CreateThread emit bus.FocusView.
func WithBus(b *bus.Bus) Option {
	return func(c *Controller) {
		c.bus = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController wires a controller to its collaborators.
func NewController(store StoreProvider, anchors *anchor.Anchors, editor Editor, identity Identity, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		anchors:  anchors,
		editor:   editor,
		identity: identity,
		ids:      UUIDv7Generator{},
		clock:    SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) doc() (*crdt.Doc, error) {
	if c.store == nil {
		return nil, storeUnavailable()
	}
	d := c.store()
	if d == nil {
		return nil, storeUnavailable()
	}
	return d, nil
}

func (c *Controller) newComment(text string) model.Comment {
	author := c.identity.CurrentUser()
	return model.Comment{
		ID:         c.ids.Generate(),
		AuthorID:   author.ID,
		AuthorName: author.Name,
		CreatedAt:  c.clock.Now().UnixMilli(),
		Text:       text,
	}
}

// CreateThread creates a thread anchored to r with text as its first
// comment and returns the new id.
//
// The range is checked against the document before anything is written.
// If placing the anchor still fails, the store record is deleted again.
func (c *Controller) CreateThread(r model.Range, text string) (string, error) {
	d, err := c.doc()
	if err != nil {
		return "", err
	}
	if r.Empty() || !r.Valid(c.editor.Len()) {
		return "", &Error{
			Code:    ErrCodeInvalidRange,
			Message: fmt.Sprintf("range %s is outside the document (length %d) or empty", r, c.editor.Len()),
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", emptyComment("")
	}

	id := c.ids.Generate()
	first := c.newComment(text)
	if _, err := d.Transact(func(tx *crdt.Txn) error {
		return tx.PutThread(id, r, first)
	}); err != nil {
		return "", fmt.Errorf("create thread %s: %w", id, err)
	}

	if err := c.anchors.Place(r, id); err != nil {
		c.logger.Warn("anchor placement failed, deleting thread",
			"thread", id, "range", r.String(), "error", err)
		if _, derr := d.Transact(func(tx *crdt.Txn) error {
			return tx.DeleteThread(id)
		}); derr != nil {
			return "", errors.Join(
				&Error{Code: ErrCodeInvalidRange, Message: "anchor placement failed", ThreadID: id, Err: err},
				fmt.Errorf("compensating delete: %w", derr),
			)
		}
		return "", &Error{Code: ErrCodeInvalidRange, Message: "anchor placement failed", ThreadID: id, Err: err}
	}

	c.logger.Info("thread created", "thread", id, "range", r.String())
	if c.bus != nil {
		c.bus.Emit(bus.FocusView, id)
	}
	return id, nil
}

// AddReply appends a comment to an existing thread.
func (c *Controller) AddReply(id, text string) (model.Comment, error) {
	d, err := c.doc()
	if err != nil {
		return model.Comment{}, err
	}
	if strings.TrimSpace(text) == "" {
		return model.Comment{}, emptyComment(id)
	}
	if !d.Has(id) {
		return model.Comment{}, notFound(id)
	}

	reply := c.newComment(text)
	if err := c.mutate(d, id, func(tx *crdt.Txn) error {
		return tx.AppendComment(id, reply)
	}); err != nil {
		return model.Comment{}, err
	}

	c.logger.Info("reply added", "thread", id, "comment", reply.ID)
	return reply, nil
}

// ToggleResolve sets the resolved flag. Setting the current value again
// is not an error.
func (c *Controller) ToggleResolve(id string, resolved bool) error {
	d, err := c.doc()
	if err != nil {
		return err
	}
	if err := c.mutate(d, id, func(tx *crdt.Txn) error {
		return tx.SetResolved(id, resolved)
	}); err != nil {
		return err
	}

	c.logger.Info("thread resolution set", "thread", id, "resolved", resolved)
	return nil
}

// DeleteThread removes the thread from the store and detaches its anchors.
func (c *Controller) DeleteThread(id string) error {
	d, err := c.doc()
	if err != nil {
		return err
	}
	if err := c.mutate(d, id, func(tx *crdt.Txn) error {
		return tx.DeleteThread(id)
	}); err != nil {
		return err
	}

	n, err := c.anchors.RemoveAll(id)
	if err != nil {
		return fmt.Errorf("delete thread %s: %w", id, err)
	}
	c.logger.Info("thread deleted", "thread", id, "anchored_chars", n)
	return nil
}

// mutate runs fn in a transaction and maps missing-record errors to
// NOT_FOUND_THREAD.
func (c *Controller) mutate(d *crdt.Doc, id string, fn func(tx *crdt.Txn) error) error {
	_, err := d.Transact(fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, crdt.ErrUnknownThread), errors.Is(err, crdt.ErrDeleted):
		return notFound(id)
	default:
		return fmt.Errorf("thread %s: %w", id, err)
	}
}

// GetThread returns a snapshot of the thread.
func (c *Controller) GetThread(id string) (model.Thread, error) {
	d, err := c.doc()
	if err != nil {
		return model.Thread{}, err
	}
	t, ok := d.Get(id)
	if !ok {
		return model.Thread{}, notFound(id)
	}
	return t, nil
}

// ListThreads returns snapshots of all threads in no particular order.
func (c *Controller) ListThreads() ([]model.Thread, error) {
	d, err := c.doc()
	if err != nil {
		return nil, err
	}
	return d.All(), nil
}

// Locate returns the live anchor position of a thread.
func (c *Controller) Locate(id string) (model.Range, error) {
	d, err := c.doc()
	if err != nil {
		return model.Range{}, err
	}
	if !d.Has(id) {
		return model.Range{}, notFound(id)
	}
	r, ok := c.anchors.Locate(id)
	if !ok {
		return model.Range{}, anchorMissing(id)
	}
	return r, nil
}

// NavigateToThread puts the cursor at the start of the thread's first
// anchor instance and scrolls it into view.
func (c *Controller) NavigateToThread(id string) (model.Range, error) {
	r, err := c.Locate(id)
	if err != nil {
		return model.Range{}, err
	}
	cursor := model.Range{From: r.From, To: r.From}
	if err := c.editor.SetSelection(cursor); err != nil {
		return model.Range{}, fmt.Errorf("navigate to %s: %w", id, err)
	}
	c.editor.ScrollIntoView()
	c.logger.Debug("navigated to thread", "thread", id, "position", r.From)
	return r, nil
}

// CollectOrphans removes anchors whose thread has been deleted, such as
// those left behind by deletes replicated from other replicas. Anchors of
// threads the store has not heard of yet are kept: their create may still
// be in flight. It returns the collected thread ids in sorted order.
func (c *Controller) CollectOrphans() ([]string, error) {
	d, err := c.doc()
	if err != nil {
		return nil, err
	}

	var collected []string
	for _, id := range c.anchors.ThreadIDs().ToSlice() {
		if !d.Deleted(id) {
			continue
		}
		if _, err := c.anchors.RemoveAll(id); err != nil {
			return collected, fmt.Errorf("collect orphan %s: %w", id, err)
		}
		c.logger.Warn("orphan anchor collected", "thread", id)
		collected = append(collected, id)
	}
	slices.Sort(collected)
	return collected, nil
}
