// Package report renders a run into a single self-contained HTML document:
// a pass/fail chart, counters, and a collapsible tree of every case with
// its failure text, captured log and screenshot inlined.
package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/results"
)

//go:embed template.html
var templateText string

var tmpl = template.Must(template.New("report").Parse(templateText))

// FileName is the name of the rendered document.
const FileName = "index.html"

// Metadata carries everything besides results that appears in the report.
type Metadata struct {
	Environment model.Environment
	Profile     model.Profile
	GeneratedAt time.Time
	// Directory holding evidence files, looked up by TestCaseResult.EvidenceRef
	EvidenceDir string
	Names       results.Names
}

type view struct {
	Title       string
	Summary     model.RunSummary
	Duration    string
	Chart       chart
	Groups      []groupView
	GeneratedAt string
}

type groupView struct {
	Name    string
	Classes []classView
}

type classView struct {
	Name  string
	Cases []caseView
}

type caseView struct {
	Index    int
	Name     string
	NodeID   string
	Outcome  model.Outcome
	Duration string
	Failure  string
	Log      string
	Evidence template.URL
}

// chart describes an SVG ring where the passed arc is drawn over the
// failed one. Values are percentages of the ring circumference.
type chart struct {
	Passed float64
	Failed float64
	Empty  bool
}

// Render produces the report document. Optional per-case sections (log,
// failure text, evidence) are left out when absent. The output only
// depends on its inputs.
func Render(summary model.RunSummary, cases []model.TestCaseResult, meta Metadata) ([]byte, error) {
	v := view{
		Title:       fmt.Sprintf("Test report: %s [%s]", meta.Profile.Label(), meta.Environment),
		Summary:     summary,
		Duration:    formatSeconds(summary.TotalDurationSeconds),
		Chart:       newChart(summary),
		GeneratedAt: meta.GeneratedAt.Format("02/01/2006 15:04:05"),
	}

	for _, g := range results.Group(cases, meta.Names) {
		gv := groupView{Name: g.DisplayName}
		for _, cg := range g.Classes {
			cv := classView{Name: cg.Name}
			for _, c := range cg.Cases {
				cv.Cases = append(cv.Cases, caseView{
					Index:    c.Index,
					Name:     c.DisplayName,
					NodeID:   c.NodeID.Raw,
					Outcome:  c.Outcome,
					Duration: formatSeconds(c.DurationSeconds),
					Failure:  c.FailureText,
					Log:      c.LogText,
					Evidence: loadEvidence(meta.EvidenceDir, c.EvidenceRef),
				})
			}
			gv.Classes = append(gv.Classes, cv)
		}
		v.Groups = append(v.Groups, gv)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func newChart(s model.RunSummary) chart {
	if s.Total == 0 {
		return chart{Empty: true}
	}
	passed := 100 * float64(s.Passed) / float64(s.Total)
	return chart{Passed: passed, Failed: 100 - passed}
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.2fs", s)
}

// loadEvidence inlines an evidence file as a data URL. Missing or
// unreadable files yield an empty URL.
func loadEvidence(dir, ref string) template.URL {
	if dir == "" || ref == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(ref)))
	if err != nil || len(data) == 0 {
		return ""
	}
	mime := http.DetectContentType(data)
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}
