package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/marginalia/internal/model"
)

// FormatSnapshot renders a result as the text stored in golden files: the
// trace, one line per event with canonical JSON arguments, followed by the
// sidebar of every replica.
func FormatSnapshot(name string, replicas []string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n\ntrace:\n", name)

	for _, event := range result.Trace {
		var label string
		var fields map[string]any
		if event.Type == EventInvocation {
			label, fields = event.Action, event.Args
		} else {
			label, fields = "-> "+event.Outcome, event.Result
		}
		fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Replica, label)
		if len(fields) > 0 {
			data, err := model.MarshalCanonical(fields)
			if err != nil {
				return nil, fmt.Errorf("trace event %d: %w", event.Seq, err)
			}
			fmt.Fprintf(&buf, " %s", data)
		}
		buf.WriteString("\n")
	}

	for _, name := range replicas {
		fmt.Fprintf(&buf, "\n== %s ==\n%s", name, result.Views[name])
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs a scenario, fails t for every failed expectation,
// and compares the snapshot with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, scenario.Replicas, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, replicas []string, result *Result) error {
	t.Helper()

	snapshot, err := FormatSnapshot(name, replicas, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
