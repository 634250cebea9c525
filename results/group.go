package results

import (
	"path"
	"strings"

	"github.com/chattigo/autobot/model"
)

// Names remaps file paths and case names to display names.
type Names struct {
	Files map[string]string `yaml:"files"`
	Cases map[string]string `yaml:"cases"`
}

// DefaultNames returns the display names used by the operators' suite.
func DefaultNames() Names {
	return Names{
		Files: map[string]string{
			"tests/agente/test_inbound_email.py":   "Chat - Mail",
			"tests/agente/test_outbound_agente.py": "Outbound - HSM send",
			"tests/agente/test_agent_status.py":    "Agent",
		},
		Cases: map[string]string{
			"test_valid_login":                     "Agent login succeeds",
			"test_logout_agente":                   "Agent logout",
			"test_agent_status_timer":              "Online status timer",
			"test_agent_status_break":              "Break status activation",
			"test_receive_email":                   "Agent receives mail",
			"test_chat_closure":                    "Mail chat closure",
			"test_outbound_bienvenida_rapida":      "bienvenida_rapida",
			"test_outbound_document":               "qa_documento",
			"test_outbound_image":                  "qa_imagen",
			"test_outbound_document_url":           "qa_documento_url",
			"test_outbound_image_url":              "qa_imagen_url",
			"test_outbound_video_url":              "qa_video_url",
			"test_outbound_qa_header_boton":        "qa_header_boton",
			"test_outbound_qa_asterisco_inicio":    "qa_asterisco_inicio",
			"test_outbound_qa_plantilla_portugues": "qa_plantilla_portugues",
			"test_outbound_qa_plantila_ingles":     "qa_plantila_ingles",
			"test_outbound_qa_boton_llamar":        "qa_boton_llamar",
		},
	}
}

// Merge returns n with the entries of other added on top.
func (n Names) Merge(other Names) Names {
	out := Names{Files: map[string]string{}, Cases: map[string]string{}}
	for _, src := range []Names{n, other} {
		for k, v := range src.Files {
			out.Files[k] = v
		}
		for k, v := range src.Cases {
			out.Cases[k] = v
		}
	}
	return out
}

// File returns the display name of a source file.
func (n Names) File(filePath string) string {
	if name, ok := n.Files[filePath]; ok {
		return name
	}
	return DisplayFileName(filePath)
}

// Case returns the display name of a test case.
func (n Names) Case(caseName string) string {
	if name, ok := n.Cases[caseName]; ok {
		return name
	}
	return caseName
}

// DisplayFileName derives a display name from a file path:
// "tests/agente/test_login_agente.py" becomes "Login".
func DisplayFileName(filePath string) string {
	name := path.Base(filePath)
	name = strings.ReplaceAll(name, "test_", "")
	name = strings.ReplaceAll(name, ".py", "")
	if i := strings.Index(name, "_"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return filePath
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// FileGroup is every case of one source file, in document order.
type FileGroup struct {
	Path        string
	DisplayName string
	Classes     []ClassGroup
}

// ClassGroup is every case of one class; Name is model.NoClass for
// module-level cases.
type ClassGroup struct {
	Name  string
	Cases []Case
}

// Case is a test case together with its display name and position.
type Case struct {
	model.TestCaseResult
	DisplayName string
	// 1-based position within the file group
	Index int
}

// Group arranges cases by file, then class, then case, keeping the order
// in which each file and class first appeared.
func Group(cases []model.TestCaseResult, names Names) []FileGroup {
	var groups []FileGroup
	fileIdx := map[string]int{}
	classIdx := map[string]map[string]int{}

	for _, c := range cases {
		fi, ok := fileIdx[c.NodeID.File]
		if !ok {
			fi = len(groups)
			fileIdx[c.NodeID.File] = fi
			classIdx[c.NodeID.File] = map[string]int{}
			groups = append(groups, FileGroup{
				Path:        c.NodeID.File,
				DisplayName: names.File(c.NodeID.File),
			})
		}
		g := &groups[fi]

		ci, ok := classIdx[c.NodeID.File][c.NodeID.Class]
		if !ok {
			ci = len(g.Classes)
			classIdx[c.NodeID.File][c.NodeID.Class] = ci
			g.Classes = append(g.Classes, ClassGroup{Name: c.NodeID.Class})
		}
		g.Classes[ci].Cases = append(g.Classes[ci].Cases, Case{
			TestCaseResult: c,
			DisplayName:    names.Case(c.NodeID.Name),
		})
	}

	// number cases per file in display order
	for fi := range groups {
		n := 1
		for ci := range groups[fi].Classes {
			for k := range groups[fi].Classes[ci].Cases {
				groups[fi].Classes[ci].Cases[k].Index = n
				n++
			}
		}
	}
	return groups
}
