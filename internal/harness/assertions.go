package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/view"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.Replica, event.Action, event.Args)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, h *Harness) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, h); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, h *Harness) error {
	switch a.Type {
	case AssertSelected:
		return assertIDs(a, view.IDs(h.Replica(a.Replica).View.State().Selected))
	case AssertUnresolved:
		return assertIDs(a, view.IDs(h.Replica(a.Replica).View.State().UnresolvedOthers))
	case AssertThread:
		return assertThread(h, a)
	case AssertConverged:
		return assertConverged(h)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertIDs(a Assertion, actual []string) error {
	if len(actual) == 0 && len(a.Threads) == 0 {
		return nil
	}
	if !slices.Equal(actual, a.Threads) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s on %s: %v", a.Type, a.Replica, a.Threads),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

// threadFacts is what a thread assertion can match against.
func threadFacts(h *Harness, replica, id string) map[string]any {
	ws := h.Replica(replica)
	t, ok := ws.Threads.Get(id)
	facts := map[string]any{"exists": ok}
	if !ok {
		return facts
	}
	facts["comments"] = len(t.Comments)
	facts["resolved"] = t.Resolved
	r, located := ws.Anchors.Locate(id)
	facts["orphaned"] = !located
	if located {
		facts["from"] = r.From
		facts["to"] = r.To
	}
	return facts
}

func assertThread(h *Harness, a Assertion) error {
	facts := threadFacts(h, a.Replica, a.Thread)
	if !matchArgs(facts, a.Expect) {
		return &AssertionError{
			Type:     AssertThread,
			Expected: fmt.Sprintf("thread %s on %s: %v", a.Thread, a.Replica, a.Expect),
			Actual:   fmt.Sprintf("%v", facts),
		}
	}
	return nil
}

// assertConverged checks that every replica holds the same threads.
func assertConverged(h *Harness) error {
	var first []byte
	for i, name := range h.Replicas() {
		threads := h.Replica(name).Threads.All()
		slices.SortFunc(threads, func(a, b model.Thread) int { return strings.Compare(a.ID, b.ID) })
		data, err := model.MarshalCanonical(threads)
		if err != nil {
			return err
		}
		if i == 0 {
			first = data
			continue
		}
		if string(data) != string(first) {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: fmt.Sprintf("%s: %s", h.Replicas()[0], first),
				Actual:   fmt.Sprintf("%s: %s", name, data),
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the first occurrence of each action comes
// in the listed order. Other actions may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		if _, seen := positions[event.Action]; !seen {
			positions[event.Action] = i + 1
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// matchArgs reports whether every key in expected is present in actual
// with an equal value. Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares scalars and nested values. []string and []any
// holding the same strings compare equal, since YAML decodes lists to
// []any.
func valuesEqual(actual, expected any) bool {
	if as, ok := actual.([]string); ok {
		if es, ok := expected.([]any); ok {
			if len(as) != len(es) {
				return false
			}
			for i := range as {
				if es[i] != any(as[i]) {
					return false
				}
			}
			return true
		}
	}
	return reflect.DeepEqual(actual, expected)
}
