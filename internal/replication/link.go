package replication

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/roach88/marginalia/internal/crdt"
)

// Link is a one-way asynchronous channel from one replica to another.
//
// Send encodes updates into a FIFO queue; Deliver applies queued updates
// to the destination. Nothing moves until Deliver, Flush or Run is
// called, so tests control exactly when a replica hears about a change.
//
// Thread-safety: Send, Len and Close are safe from any goroutine.
// Deliver and Flush may run concurrently with Send.
type Link struct {
	dst    *crdt.Doc
	logger *slog.Logger

	mu      sync.Mutex
	queue   [][]byte
	closed  bool
	signal  chan struct{} // buffered, size 1
	shuffle *rand.Rand
}

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithShuffle delivers queued updates in a pseudo-random order drawn from
// seed instead of FIFO.
func WithShuffle(seed int64) LinkOption {
	return func(l *Link) {
		l.shuffle = rand.New(rand.NewSource(seed))
	}
}

// WithLinkLogger sets the logger.
func WithLinkLogger(logger *slog.Logger) LinkOption {
	return func(l *Link) {
		l.logger = logger
	}
}

// NewLink creates a link delivering into dst.
func NewLink(dst *crdt.Doc, opts ...LinkOption) *Link {
	l := &Link{
		dst:    dst,
		logger: slog.Default(),
		queue:  make([][]byte, 0, 16),
		signal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect forwards every update committed on src into the link. The
// returned subscription stops forwarding.
func (l *Link) Connect(src *crdt.Doc) *crdt.Subscription {
	return src.ObserveDeep(func(ev crdt.ChangeEvent) {
		if err := l.Send(ev.Update); err != nil {
			l.logger.Warn("link dropped update", "update", ev.Update.ID.String(), "error", err)
		}
	})
}

// Send queues an update. It returns an error if the update cannot be
// encoded; updates sent after Close are dropped.
func (l *Link) Send(u crdt.Update) error {
	data, err := crdt.EncodeUpdate(u)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.queue = append(l.queue, data)

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return nil
}

// Deliver applies up to n queued updates (all of them when n < 0) and
// returns how many were taken off the queue.
func (l *Link) Deliver(n int) (int, error) {
	taken := 0
	for n < 0 || taken < n {
		data, ok := l.take()
		if !ok {
			break
		}
		taken++
		if _, err := l.dst.ApplyEncoded(data); err != nil {
			return taken, err
		}
	}
	return taken, nil
}

// Flush delivers everything queued.
func (l *Link) Flush() (int, error) {
	return l.Deliver(-1)
}

// Run delivers updates as they arrive until ctx is done or the link is
// closed and drained.
func (l *Link) Run(ctx context.Context) error {
	for {
		if _, err := l.Flush(); err != nil {
			return err
		}

		l.mu.Lock()
		done := l.closed && len(l.queue) == 0
		l.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		}
	}
}

func (l *Link) take() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	i := 0
	if l.shuffle != nil {
		i = l.shuffle.Intn(len(l.queue))
	}
	data := l.queue[i]
	copy(l.queue[i:], l.queue[i+1:])
	l.queue[len(l.queue)-1] = nil
	l.queue = l.queue[:len(l.queue)-1]
	return data, true
}

// Len returns the number of queued updates.
func (l *Link) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting updates. Queued updates can still be delivered.
func (l *Link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}
