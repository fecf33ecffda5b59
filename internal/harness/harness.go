package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/marginalia/internal/config"
	"github.com/roach88/marginalia/internal/document"
	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/replication"
	"github.com/roach88/marginalia/internal/testutil"
	"github.com/roach88/marginalia/internal/thread"
	"github.com/roach88/marginalia/internal/view"
	"github.com/roach88/marginalia/internal/workspace"
)

// Harness holds the replicas of one scenario run.
type Harness struct {
	replicas map[string]*workspace.Workspace
	order    []string
	logger   *slog.Logger
	seq      int64
}

// Run executes a scenario in fresh in-memory replicas and returns its
// result. The error is non-nil only when the scenario itself is unusable
// (a missing argument, a replica that cannot be built); failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s on %s: %w", i, step.Invoke, step.Replica, err)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h) {
		result.AddError(msg)
	}

	for _, name := range h.order {
		var b strings.Builder
		if err := view.Render(&b, h.replicas[name].View.State()); err != nil {
			return nil, err
		}
		result.Views[name] = b.String()
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	h := &Harness{
		replicas: make(map[string]*workspace.Workspace, len(scenario.Replicas)),
		order:    scenario.Replicas,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	cfg := config.Defaults()
	cfg.Order = scenario.Order

	for _, name := range scenario.Replicas {
		ws, err := workspace.NewMemory(name, cfg,
			workspace.WithText(scenario.Text),
			workspace.WithLogger(h.logger),
			workspace.WithIdentity(testutil.NewFixedIdentity(name)),
			workspace.WithIDGenerator(thread.NewSequenceGenerator(name)),
			workspace.WithClock(testutil.NewStepClock()))
		if err != nil {
			h.close()
			return nil, fmt.Errorf("replica %s: %w", name, err)
		}
		h.replicas[name] = ws
		if err := ws.View.Activate(); err != nil {
			h.close()
			return nil, fmt.Errorf("replica %s: %w", name, err)
		}
	}
	return h, nil
}

func (h *Harness) close() {
	for _, ws := range h.replicas {
		ws.Close()
	}
}

// Replica returns the named replica, or nil.
func (h *Harness) Replica(name string) *workspace.Workspace {
	return h.replicas[name]
}

// Replicas returns the replica names in scenario order.
func (h *Harness) Replicas() []string {
	return h.order
}

func (h *Harness) executeStep(index int, step FlowStep, result *Result) error {
	h.seq++
	result.AddInvocationTrace(step.Replica, step.Invoke, step.Args, h.seq)

	out, err := h.invoke(h.replicas[step.Replica], step)
	var argErr *argError
	if errors.As(err, &argErr) {
		return err
	}

	outcome := outcomeOf(err)
	h.seq++
	result.AddCompletionTrace(step.Replica, outcome, out, h.seq)

	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}
	want := expect.Error
	if want == "" {
		want = OutcomeOK
	}
	if outcome != want {
		detail := ""
		if err != nil {
			detail = ": " + err.Error()
		}
		result.AddError(fmt.Sprintf("flow[%d] %s on %s: expected %s, got %s%s",
			index, step.Invoke, step.Replica, want, outcome, detail))
		return nil
	}
	if !matchArgs(out, expect.Result) {
		result.AddError(fmt.Sprintf("flow[%d] %s on %s: result %v does not match %v",
			index, step.Invoke, step.Replica, out, expect.Result))
	}
	return nil
}

// outcomeOf maps a step error to the code recorded in the trace.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case thread.CodeOf(err) != "":
		return string(thread.CodeOf(err))
	case errors.Is(err, document.ErrOutOfBounds):
		return "OUT_OF_BOUNDS"
	case errors.Is(err, document.ErrInvalidMove):
		return "INVALID_MOVE"
	default:
		return "ERROR"
	}
}

func (h *Harness) invoke(ws *workspace.Workspace, step FlowStep) (map[string]any, error) {
	a := args(step.Args)
	ctl := ws.Controller

	switch step.Invoke {
	case ActionCreate:
		r, err := a.rng()
		if err != nil {
			return nil, err
		}
		text, err := a.str("text")
		if err != nil {
			return nil, err
		}
		id, err := ctl.CreateThread(r, text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"thread": id}, nil

	case ActionReply:
		id, text, err := a.threadAndText()
		if err != nil {
			return nil, err
		}
		c, err := ctl.AddReply(id, text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"comment": c.ID}, nil

	case ActionResolve, ActionReopen:
		id, err := a.str("thread")
		if err != nil {
			return nil, err
		}
		return nil, ctl.ToggleResolve(id, step.Invoke == ActionResolve)

	case ActionDelete:
		id, err := a.str("thread")
		if err != nil {
			return nil, err
		}
		return nil, ctl.DeleteThread(id)

	case ActionNavigate:
		id, err := a.str("thread")
		if err != nil {
			return nil, err
		}
		r, err := ctl.NavigateToThread(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"from": r.From, "to": r.To}, nil

	case ActionSelect:
		r, err := a.rng()
		if err != nil {
			return nil, err
		}
		return nil, ws.Doc.SetSelection(r)

	case ActionInsert:
		pos, err := a.num("pos")
		if err != nil {
			return nil, err
		}
		text, err := a.str("text")
		if err != nil {
			return nil, err
		}
		return nil, ws.Doc.Insert(pos, text)

	case ActionDeleteText:
		r, err := a.rng()
		if err != nil {
			return nil, err
		}
		return nil, ws.Doc.Delete(r.From, r.To)

	case ActionMove:
		r, err := a.rng()
		if err != nil {
			return nil, err
		}
		dest, err := a.num("dest")
		if err != nil {
			return nil, err
		}
		return nil, ws.Doc.Move(r.From, r.To, dest)

	case ActionSync:
		peer, err := h.peer(a)
		if err != nil {
			return nil, err
		}
		stats, err := ws.Merge(peer)
		if err != nil {
			return nil, err
		}
		if a.flag("document") {
			if err := ws.AdoptDocument(peer); err != nil {
				return nil, err
			}
		}
		return map[string]any{"received": stats.BToA, "sent": stats.AToB}, nil

	case ActionRelay:
		return h.relay(ws, a)

	case ActionGC:
		removed, err := ctl.CollectOrphans()
		if err != nil {
			return nil, err
		}
		if removed == nil {
			removed = []string{}
		}
		return map[string]any{"removed": removed}, nil
	}
	return nil, &argError{fmt.Sprintf("unknown action %q", step.Invoke)}
}

// relay pushes the peer's updates that ws has not seen through a
// replication link, one way. skip drops that many leading updates, which
// leaves a gap; seed shuffles delivery order.
func (h *Harness) relay(ws *workspace.Workspace, a args) (map[string]any, error) {
	peer, err := h.peer(a)
	if err != nil {
		return nil, err
	}
	skip := 0
	if _, ok := a["skip"]; ok {
		if skip, err = a.num("skip"); err != nil {
			return nil, err
		}
	}

	opts := []replication.LinkOption{replication.WithLinkLogger(h.logger)}
	if _, ok := a["seed"]; ok {
		seed, err := a.num("seed")
		if err != nil {
			return nil, err
		}
		opts = append(opts, replication.WithShuffle(int64(seed)))
	}
	link := replication.NewLink(ws.Threads, opts...)
	defer link.Close()

	updates := peer.Threads.UpdatesSince(ws.Threads.Version())
	for i, u := range updates {
		if i < skip {
			continue
		}
		if err := link.Send(u); err != nil {
			return nil, err
		}
	}
	delivered, err := link.Flush()
	if err != nil {
		return nil, err
	}
	return map[string]any{"delivered": delivered, "pending": ws.Threads.Pending()}, nil
}

func (h *Harness) peer(a args) (*workspace.Workspace, error) {
	name, err := a.str("with")
	if err != nil {
		return nil, err
	}
	peer, ok := h.replicas[name]
	if !ok {
		return nil, &argError{fmt.Sprintf("unknown replica %q", name)}
	}
	return peer, nil
}

// argError marks a malformed step, as opposed to an action that failed.
type argError struct {
	msg string
}

func (e *argError) Error() string {
	return e.msg
}

type args map[string]any

func (a args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", &argError{fmt.Sprintf("missing argument %q", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &argError{fmt.Sprintf("argument %q must be a string, got %T", key, v)}
	}
	return s, nil
}

func (a args) num(key string) (int, error) {
	v, ok := a[key]
	if !ok {
		return 0, &argError{fmt.Sprintf("missing argument %q", key)}
	}
	n, ok := v.(int)
	if !ok {
		return 0, &argError{fmt.Sprintf("argument %q must be an integer, got %T", key, v)}
	}
	return n, nil
}

func (a args) flag(key string) bool {
	b, _ := a[key].(bool)
	return b
}

func (a args) rng() (model.Range, error) {
	from, err := a.num("from")
	if err != nil {
		return model.Range{}, err
	}
	to, err := a.num("to")
	if err != nil {
		return model.Range{}, err
	}
	return model.Range{From: from, To: to}, nil
}

func (a args) threadAndText() (string, string, error) {
	id, err := a.str("thread")
	if err != nil {
		return "", "", err
	}
	text, err := a.str("text")
	if err != nil {
		return "", "", err
	}
	return id, text, nil
}
