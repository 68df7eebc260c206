package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/infrastructure/storage/minio"
	"github.com/turtacn/ProcSynth/pkg/types/common"
)

func num(x float64) string { return strconv.FormatFloat(x, 'g', 10, 64) }

func optNum(x *float64) string {
	if x == nil {
		return "-"
	}
	return num(*x)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pairRows(m map[string]float64) [][]string {
	rows := make([][]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		rows = append(rows, []string{k, num(m[k])})
	}
	return rows
}

// responseView renders a run response. Text output prints every section;
// table output only the main one.
type responseView struct{ resp *optimization.Response }

func (v responseView) JSON() interface{} { return v.resp }

func (v responseView) TableHeaders() []string {
	r := v.resp
	switch {
	case r.Sweep != nil:
		var h []string
		if len(r.Sweep) > 0 {
			h = append(h, r.Sweep[0].Keys...)
		}
		return append(h, "STATUS", "OBJECTIVE")
	case r.Pareto != nil:
		return []string{"EPSILON", "STATUS", string(r.Objective), "SECONDARY"}
	case r.Stochastic != nil:
		return []string{"SCENARIO", "STAGE", "PROBABILITY", "STATUS", "OBJECTIVE"}
	default:
		return []string{"KEY", "VALUE"}
	}
}

func (v responseView) TableRows() [][]string {
	r := v.resp
	switch {
	case r.Sweep != nil:
		rows := make([][]string, len(r.Sweep))
		for i, p := range r.Sweep {
			row := make([]string, 0, len(p.Deviations)+2)
			for _, d := range p.Deviations {
				row = append(row, fmt.Sprintf("%+g", d))
			}
			rows[i] = append(row, p.Status, optNum(p.Objective))
		}
		return rows
	case r.Pareto != nil:
		rows := make([][]string, len(r.Pareto))
		for i, p := range r.Pareto {
			rows[i] = []string{num(p.Epsilon), p.Status, optNum(p.Primary), optNum(p.Secondary)}
		}
		return rows
	case r.Stochastic != nil:
		rows := make([][]string, len(r.Stochastic.Scenarios))
		for i, s := range r.Stochastic.Scenarios {
			rows[i] = []string{s.ID, s.Stage, num(s.Probability), s.Status, optNum(s.Objective)}
		}
		return rows
	case r.Single != nil:
		rows := [][]string{
			{"status", r.Single.Status},
			{"objective", optNum(r.Single.Objective)},
			{"gap", optNum(r.Single.Gap)},
			{"nodes", strconv.Itoa(r.Single.Nodes)},
		}
		return append(rows, pairRows(r.Single.Results.Aggregates())...)
	}
	return nil
}

func (v responseView) String() string {
	r := v.resp
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s  case %s  mode %s  objective %s  solver %s  (%s)\n\n",
		r.RunID, r.Case, r.Mode, r.Objective, r.Solver, r.Elapsed.Round(1e6))
	sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))

	var design map[string]float64
	switch {
	case r.Single != nil:
		design = r.Single.Design
	case r.Stochastic != nil:
		sb.WriteString("\n")
		sb.WriteString(FormatTable([]string{"FIGURE", "VALUE"}, pairRows(r.Stochastic.Figures)))
		design = r.Stochastic.RecourseDesign
		if design == nil {
			design = r.Stochastic.Design
		}
		for _, f := range r.Stochastic.Infeasible {
			fmt.Fprintf(&sb, "scenario %s failed in %s: %s (%s)\n", f.ScenarioID, f.Stage, f.Status, f.Message)
		}
	case r.Sweep != nil || r.Pareto != nil:
		sb.WriteString("\n")
		sb.WriteString(FormatTable([]string{"SUMMARY", "VALUE"}, pairRows(r.Summary)))
	}
	if len(design) > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatTable([]string{"DESIGN", "VALUE"}, pairRows(design)))
	}
	for _, a := range r.Artifacts {
		fmt.Fprintf(&sb, "artifact %s\n", a)
	}
	return sb.String()
}

type statsView struct {
	Path   string     `json:"path"`
	Format string     `json:"format"`
	Stats  milp.Stats `json:"stats"`
}

func (v statsView) TableHeaders() []string { return []string{"FILE", "FORMAT", "VARS", "BINARIES", "ROWS", "NONZEROS"} }

func (v statsView) TableRows() [][]string {
	return [][]string{{
		v.Path, v.Format,
		strconv.Itoa(v.Stats.Variables), strconv.Itoa(v.Stats.Binaries),
		strconv.Itoa(v.Stats.Constraints), strconv.Itoa(v.Stats.Nonzeros),
	}}
}

type runListView struct {
	Runs []*run.Run        `json:"runs"`
	Page common.Pagination `json:"page"`
}

func (v runListView) TableHeaders() []string {
	return []string{"ID", "MODE", "STATUS", "CASE", "OBJECTIVE", "SOLVER", "CREATED"}
}

func (v runListView) TableRows() [][]string {
	rows := make([][]string, len(v.Runs))
	for i, r := range v.Runs {
		rows[i] = []string{r.ID.String(), string(r.Mode), string(r.Status), r.CaseName, r.Objective, r.Solver, r.CreatedAt.Format("2006-01-02 15:04:05")}
	}
	return rows
}

type runDetailView struct {
	Run       *run.Run         `json:"run"`
	Outcomes  []run.Outcome    `json:"outcomes,omitempty"`
	Artifacts []minio.Artifact `json:"artifacts,omitempty"`
}

func (v runDetailView) TableHeaders() []string {
	return []string{"LABEL", "STAGE", "PROBABILITY", "STATUS", "OBJECTIVE", "ERROR"}
}

func (v runDetailView) TableRows() [][]string {
	rows := make([][]string, len(v.Outcomes))
	for i, o := range v.Outcomes {
		rows[i] = []string{o.Label, o.Stage, num(o.Probability), o.Status, optNum(o.Objective), o.Error}
	}
	return rows
}

func (v runDetailView) String() string {
	r := v.Run
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s\n  mode       %s\n  status     %s\n  case       %s\n  objective  %s\n  solver     %s\n",
		r.ID, r.Mode, r.Status, r.CaseName, r.Objective, r.Solver)
	if len(r.Tags) > 0 {
		fmt.Fprintf(&sb, "  tags       %s\n", strings.Join(r.Tags, ","))
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "  error      %s\n", r.Error)
	}
	if len(r.Summary) > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatTable([]string{"SUMMARY", "VALUE"}, pairRows(r.Summary)))
	}
	if len(v.Outcomes) > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))
	}
	for _, a := range v.Artifacts {
		fmt.Fprintf(&sb, "artifact %s (%d bytes)\n", a.Name, a.Size)
	}
	return sb.String()
}

type artifactListView []minio.Artifact

func (v artifactListView) TableHeaders() []string { return []string{"NAME", "SIZE", "TYPE", "UPLOADED"} }

func (v artifactListView) TableRows() [][]string {
	rows := make([][]string, len(v))
	for i, a := range v {
		rows[i] = []string{a.Name, strconv.FormatInt(a.Size, 10), a.ContentType, a.UploadedAt.Format("2006-01-02 15:04:05")}
	}
	return rows
}
