package highs

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

var inf = math.Inf(1)

// Solution is the content of a HiGHS solution file.
type Solution struct {
	ModelStatus string
	Feasible    bool
	Objective   float64
	Columns     map[string]float64
}

// ParseSolution reads the "raw" solution format:
//
//	Model status
//	Optimal
//
//	# Primal solution values
//	Feasible
//	Objective 11
//	# Columns 2
//	x 3
//	y 1
//	# Rows ...
func ParseSolution(r io.Reader) (*Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sol := &Solution{Columns: make(map[string]float64)}
	columns := -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "Model status":
			if sc.Scan() {
				sol.ModelStatus = strings.TrimSpace(sc.Text())
			}
		case line == "# Primal solution values":
			if sc.Scan() {
				sol.Feasible = strings.TrimSpace(sc.Text()) == "Feasible"
			}
		case strings.HasPrefix(line, "Objective "):
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "Objective ")), 64)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrCodeSolverFailure, "bad objective line %q", line)
			}
			sol.Objective = v
		case strings.HasPrefix(line, "# Columns "):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "# Columns "))
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrCodeSolverFailure, "bad column count %q", line)
			}
			columns = n
			for i := 0; i < n && sc.Scan(); i++ {
				fields := strings.Fields(sc.Text())
				if len(fields) < 2 {
					return nil, errors.New(errors.ErrCodeSolverFailure, "bad column line").WithDetail(sc.Text())
				}
				v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
				if err != nil {
					return nil, errors.Wrapf(err, errors.ErrCodeSolverFailure, "bad column value %q", sc.Text())
				}
				sol.Columns[fields[0]] = v
			}
		case strings.HasPrefix(line, "# Dual solution values"):
			return sol, sc.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSolverFailure, "read solution file")
	}
	if sol.ModelStatus == "" {
		return nil, errors.New(errors.ErrCodeSolverFailure, "solution file has no model status")
	}
	if sol.Feasible && columns < 0 {
		return nil, errors.New(errors.ErrCodeSolverFailure, "solution file has no column section")
	}
	return sol, nil
}

// Status maps the HiGHS model status string.
func (s *Solution) Status() milp.Status {
	switch strings.ToLower(s.ModelStatus) {
	case "optimal":
		return milp.StatusOptimal
	case "infeasible":
		return milp.StatusInfeasible
	case "unbounded", "primal infeasible or unbounded":
		return milp.StatusUnbounded
	case "time limit reached", "iteration limit reached", "interrupted by user":
		return milp.StatusTimeLimit
	}
	if strings.Contains(strings.ToLower(s.ModelStatus), "limit") {
		return milp.StatusTimeLimit
	}
	return milp.StatusUnknown
}

// Result maps the solution onto m's variables through the export names. The
// objective is re-evaluated on the model so its constant is included.
func (s *Solution) Result(m *milp.Model) (*milp.Result, error) {
	res := &milp.Result{Status: s.Status(), Gap: inf}
	if res.Status == milp.StatusUnknown {
		return nil, errors.New(errors.ErrCodeSolverFailure, "unrecognized model status").WithDetail(s.ModelStatus)
	}
	if !s.Feasible {
		return res, nil
	}
	names := milp.ExportNames(m)
	res.Values = make([]float64, len(names))
	vars := m.Variables()
	for i, n := range names {
		v, ok := s.Columns[n]
		if !ok {
			// columns absent from every row are dropped by the reader
			v = math.Max(vars[i].Lower, math.Min(0, vars[i].Upper))
		}
		if vars[i].Domain != milp.Continuous {
			v = math.Round(v)
		}
		res.Values[i] = v
	}
	_, obj := m.Objective()
	res.HasSolution = true
	res.Objective = obj.Eval(res.Values)
	if res.Status == milp.StatusOptimal {
		res.Bound, res.Gap = res.Objective, 0
	}
	return res, nil
}
