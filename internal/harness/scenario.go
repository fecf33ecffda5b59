package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/marginalia/internal/view"
)

// Scenario is a scripted multi-replica session: every replica starts from
// the same text, the flow runs steps against individual replicas, and the
// assertions check what each replica ends up showing.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Text is the initial document text of every replica.
	Text string `yaml:"text"`

	// Replicas lists the replica names. Each replica's ids are
	// "<name>-1", "<name>-2", ... and its author is the title-cased name.
	Replicas []string `yaml:"replicas"`

	// Order is the sidebar order: "hint" (default) or "live".
	Order string `yaml:"order,omitempty"`

	Flow       []FlowStep  `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep invokes one action on one replica.
type FlowStep struct {
	Replica string         `yaml:"replica"`
	Invoke  string         `yaml:"invoke"`
	Args    map[string]any `yaml:"args"`

	// Expect overrides the default expectation that the step succeeds.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause describes the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code, e.g. "NOT_FOUND_THREAD". Empty
	// means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step's result fields.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion checks final replica state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Replica string `yaml:"replica,omitempty"`

	// Threads is the expected id list, in display order (selected,
	// unresolved).
	Threads []string `yaml:"threads,omitempty"`

	// Thread and Expect are used by thread: a subset match against
	// exists, comments, resolved, from and to.
	Thread string         `yaml:"thread,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Action, Count and Actions are used by the trace assertions.
	Action  string   `yaml:"action,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion types.
const (
	AssertSelected   = "selected"
	AssertUnresolved = "unresolved"
	AssertThread     = "thread"
	AssertConverged  = "converged"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// Flow actions.
const (
	ActionCreate     = "create"
	ActionReply      = "reply"
	ActionResolve    = "resolve"
	ActionReopen     = "reopen"
	ActionDelete     = "delete"
	ActionNavigate   = "navigate"
	ActionSelect     = "select"
	ActionInsert     = "insert"
	ActionDeleteText = "delete_text"
	ActionMove       = "move"
	ActionSync       = "sync"
	ActionRelay      = "relay"
	ActionGC         = "gc"
)

var knownActions = []string{
	ActionCreate, ActionReply, ActionResolve, ActionReopen, ActionDelete,
	ActionNavigate, ActionSelect, ActionInsert, ActionDeleteText, ActionMove,
	ActionSync, ActionRelay, ActionGC,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Discover returns the scenario files (*.yaml, *.yml) under dir whose base
// name matches pattern, sorted. An empty pattern matches everything.
func Discover(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if pattern != "" {
			matched, err := filepath.Match(pattern, filepath.Base(path))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Replicas) == 0 {
		return fmt.Errorf("replicas list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(s.Replicas))
	for i, r := range s.Replicas {
		if r == "" {
			return fmt.Errorf("replicas[%d]: name is required", i)
		}
		if seen[r] {
			return fmt.Errorf("replicas[%d]: duplicate replica %q", i, r)
		}
		seen[r] = true
	}
	if _, ok := view.ParseOrder(s.Order); !ok {
		return fmt.Errorf("unknown order %q", s.Order)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if !seen[step.Replica] {
			return fmt.Errorf("flow[%d]: unknown replica %q", i, step.Replica)
		}
		if !slices.Contains(knownActions, step.Invoke) {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, seen); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, replicas map[string]bool) error {
	needReplica := func() error {
		if !replicas[a.Replica] {
			return fmt.Errorf("assertions[%d]: unknown replica %q for %s", index, a.Replica, a.Type)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSelected, AssertUnresolved:
		return needReplica()
	case AssertThread:
		if a.Thread == "" {
			return fmt.Errorf("assertions[%d]: thread is required for thread", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for thread", index)
		}
		return needReplica()
	case AssertConverged:
		return nil
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
