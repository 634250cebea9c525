package model

import (
	"math"
	"strings"
)

// NoClass is the class component of a node ID that has no class.
const NoClass = ""

// NodeID is the structured identifier of a test case,
// e.g. "tests/agente/test_login.py::TestLogin::test_valid_login".
type NodeID struct {
	Raw   string `json:"raw"`
	File  string `json:"file"`
	Class string `json:"class,omitempty"`
	Name  string `json:"name"`
}

// ParseNodeID splits a raw node ID into file, optional class and case name.
func ParseNodeID(raw string) NodeID {
	parts := strings.Split(raw, "::")
	id := NodeID{
		Raw:  raw,
		File: parts[0],
		Name: parts[len(parts)-1],
	}
	if len(parts) > 2 {
		id.Class = parts[1]
	}
	return id
}

// SafeName returns a filesystem-safe transform of the node ID. Evidence
// files are stored under this name.
func (n NodeID) SafeName() string {
	s := strings.ReplaceAll(n.Raw, "::", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return strings.ReplaceAll(s, ".py", "")
}

// Outcome of a single test case.
type Outcome string

const (
	OutcomePassed Outcome = "passed"
	OutcomeFailed Outcome = "failed"
)

// TestCaseResult holds what is known about one executed case.
type TestCaseResult struct {
	NodeID          NodeID  `json:"node_id"`
	Outcome         Outcome `json:"outcome"`
	DurationSeconds float64 `json:"duration_seconds"`
	LogText         string  `json:"log_text,omitempty"`
	// Only set when Outcome is failed
	FailureText string `json:"failure_text,omitempty"`
	// Evidence file name relative to the evidence directory
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

// BarCells is the width of the summary progress bar.
const BarCells = 15

// RunSummary aggregates a run. Total always equals Passed + Failed.
type RunSummary struct {
	Total                int     `json:"total"`
	Passed               int     `json:"passed"`
	Failed               int     `json:"failed"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	SuccessPercent       int     `json:"success_percent"`
}

// NewRunSummary computes a summary from pass/fail counts. Negative counts
// are clamped to zero.
func NewRunSummary(passed, failed int, durationSeconds float64) RunSummary {
	passed = max(passed, 0)
	failed = max(failed, 0)
	s := RunSummary{
		Total:                passed + failed,
		Passed:               passed,
		Failed:               failed,
		TotalDurationSeconds: math.Max(durationSeconds, 0),
	}
	if s.Total > 0 {
		s.SuccessPercent = int(math.Round(100 * float64(passed) / float64(s.Total)))
	}
	return s
}

// DegenerateSummary is the single-case summary used when no per-case data
// is available: one pass on success, one failure otherwise.
func DegenerateSummary(status ExitStatus) RunSummary {
	if status == ExitSuccess {
		return NewRunSummary(1, 0, 0)
	}
	return NewRunSummary(0, 1, 0)
}

// Normalize substitutes the degenerate summary when the summary is empty.
func (s RunSummary) Normalize(status ExitStatus) RunSummary {
	if s.Total == 0 {
		return DegenerateSummary(status)
	}
	return s
}

// FilledCells is the number of filled bar cells for the success percentage.
func (s RunSummary) FilledCells() int {
	filled := int(math.Round(float64(s.SuccessPercent) / 100 * BarCells))
	return min(max(filled, 0), BarCells)
}

// ProgressBar renders the fixed-width bar with the given cell glyphs.
func (s RunSummary) ProgressBar(filled, empty string) string {
	n := s.FilledCells()
	return strings.Repeat(filled, n) + strings.Repeat(empty, BarCells-n)
}
