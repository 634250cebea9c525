package results

// This file contains the strict schema of the JSON result document written
// by the suite's json-report plugin, and its validation.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

var (
	// ErrMissing is returned when no result document exists.
	ErrMissing = errors.New("result document missing")
	// ErrMalformed is returned when the document cannot be parsed or fails validation.
	ErrMalformed = errors.New("result document malformed")
)

// Document is the top level of the result document. Only the fields used
// by the orchestrator are modelled; everything else is ignored.
type Document struct {
	Summary *DocumentSummary `json:"summary"`
	Tests   []DocumentTest   `json:"tests"`
}

// DocumentSummary holds per-outcome counters. The plugin omits counters
// that are zero, hence the pointers.
type DocumentSummary struct {
	Passed  *int `json:"passed"`
	Failed  *int `json:"failed"`
	Error   *int `json:"error"`
	XPassed *int `json:"xpassed"`
	Skipped *int `json:"skipped"`
	Total   *int `json:"total"`
}

// DocumentTest is one entry of the tests array.
type DocumentTest struct {
	NodeID   string `json:"nodeid"`
	Outcome  string `json:"outcome"`
	Setup    *Phase `json:"setup"`
	Call     *Phase `json:"call"`
	Teardown *Phase `json:"teardown"`
}

// Phase is one of the setup, call and teardown stages of a test.
type Phase struct {
	Duration float64         `json:"duration"`
	Outcome  string          `json:"outcome"`
	Longrepr string          `json:"longrepr"`
	Log      json.RawMessage `json:"log"`
}

// logRecord is a captured logging record as emitted by the plugin.
type logRecord struct {
	Name      string `json:"name"`
	Msg       string `json:"msg"`
	LevelName string `json:"levelname"`
}

// Parse decodes and validates a result document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &doc, nil
}

// Validate checks the invariants the rest of the pipeline relies on.
func (d *Document) Validate() error {
	if d.Summary == nil && d.Tests == nil {
		return errors.New("neither summary nor tests present")
	}
	if d.Summary != nil {
		for name, v := range map[string]*int{
			"passed":  d.Summary.Passed,
			"failed":  d.Summary.Failed,
			"error":   d.Summary.Error,
			"xpassed": d.Summary.XPassed,
			"total":   d.Summary.Total,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("summary.%s is negative", name)
			}
		}
	}
	for i, t := range d.Tests {
		if strings.TrimSpace(t.NodeID) == "" {
			return fmt.Errorf("tests[%d]: empty nodeid", i)
		}
		if t.Outcome == "" {
			return fmt.Errorf("tests[%d] %s: empty outcome", i, t.NodeID)
		}
		for _, p := range []*Phase{t.Setup, t.Call, t.Teardown} {
			if p == nil {
				continue
			}
			if p.Duration < 0 || math.IsNaN(p.Duration) || math.IsInf(p.Duration, 0) {
				return fmt.Errorf("tests[%d] %s: invalid duration %v", i, t.NodeID, p.Duration)
			}
		}
	}
	return nil
}

// Duration is the sum of the setup, call and teardown durations.
func (t DocumentTest) Duration() float64 {
	var total float64
	for _, p := range []*Phase{t.Setup, t.Call, t.Teardown} {
		if p != nil {
			total += p.Duration
		}
	}
	return total
}

// LogText renders the captured log of the call phase, if any.
func (t DocumentTest) LogText() string {
	if t.Call == nil {
		return ""
	}
	return renderLog(t.Call.Log)
}

// FailureText returns the first non-empty longrepr, call phase first.
func (t DocumentTest) FailureText() string {
	for _, p := range []*Phase{t.Call, t.Setup, t.Teardown} {
		if p != nil && strings.TrimSpace(p.Longrepr) != "" {
			return p.Longrepr
		}
	}
	return "unknown error"
}

func renderLog(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var records []logRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		lines := make([]string, 0, len(records))
		for _, rec := range records {
			line := rec.Msg
			if rec.Name != "" {
				line = rec.Name + ": " + line
			}
			if rec.LevelName != "" {
				line = rec.LevelName + " " + line
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")
	}

	return string(raw)
}
