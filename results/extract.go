// Package results turns the suite's structured result document into a
// run summary and an ordered list of test case results.
package results

import (
	"errors"
	"fmt"
	"os"

	"github.com/chattigo/autobot/model"
)

// Extract reads the document at path. On a missing or malformed document
// it returns an empty summary together with ErrMissing or ErrMalformed;
// callers fall back to the degenerate summary.
func Extract(path string) (model.RunSummary, []model.TestCaseResult, error) {
	if path == "" {
		return model.RunSummary{}, nil, ErrMissing
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.RunSummary{}, nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return model.RunSummary{}, nil, fmt.Errorf("failed to open result document: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return model.RunSummary{}, nil, err
	}
	summary, cases := Summarize(doc)
	return summary, cases, nil
}

// Summarize converts a validated document. Counters come from the summary
// block when present, otherwise from the per-case outcomes. Cases that were
// skipped or expectedly failed are not reported.
func Summarize(doc *Document) (model.RunSummary, []model.TestCaseResult) {
	cases := make([]model.TestCaseResult, 0, len(doc.Tests))
	var passed, failed int
	var duration float64

	for _, t := range doc.Tests {
		outcome, counted := mapOutcome(t.Outcome)
		if !counted {
			continue
		}
		c := model.TestCaseResult{
			NodeID:          model.ParseNodeID(t.NodeID),
			Outcome:         outcome,
			DurationSeconds: t.Duration(),
			LogText:         t.LogText(),
		}
		c.EvidenceRef = c.NodeID.SafeName() + ".png"
		if outcome == model.OutcomeFailed {
			c.FailureText = t.FailureText()
			failed++
		} else {
			passed++
		}
		duration += c.DurationSeconds
		cases = append(cases, c)
	}

	if s := doc.Summary; s != nil && (s.Passed != nil || s.Failed != nil || s.Error != nil || s.XPassed != nil) {
		// same mapping as the cases: xpassed counts as passed
		passed = deref(s.Passed) + deref(s.XPassed)
		failed = deref(s.Failed) + deref(s.Error)
	}

	return model.NewRunSummary(passed, failed, duration), cases
}

func mapOutcome(s string) (model.Outcome, bool) {
	switch s {
	case "passed", "xpassed":
		return model.OutcomePassed, true
	case "skipped", "xfailed":
		return "", false
	default:
		// failed, error, and anything unexpected
		return model.OutcomeFailed, true
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
