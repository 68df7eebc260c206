package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// lineLimit keeps LP rows under the 255-character line limit most readers
// enforce.
const lineLimit = 200

// ExportNames returns LP/MPS-safe column names, one per variable. Brackets
// become parentheses, any other character outside the LP name alphabet
// becomes '_', and collisions get a numeric suffix.
func ExportNames(m *Model) []string {
	out := make([]string, len(m.vars))
	used := make(map[string]int, len(m.vars))
	for i, v := range m.vars {
		name := sanitize(v.Name)
		if n, dup := used[name]; dup {
			used[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		used[name] = 0
		out[i] = name
	}
	return out
}

func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '[':
			sb.WriteRune('(')
		case r == ']':
			sb.WriteRune(')')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case strings.ContainsRune("()_,.", r):
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if out == "" || strings.ContainsRune("0123456789.eE", rune(out[0])) {
		out = "x_" + out
	}
	return out
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteLP writes the model in CPLEX LP format.
func WriteLP(w io.Writer, m *Model) error {
	if m.err != nil {
		return errors.Wrap(m.err, errors.ErrCodeModelExport, "model has build errors")
	}
	names := ExportNames(m)
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\ Problem: %s\n", m.Name)
	if m.sense == Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	writeRow(bw, " obj:", m.obj, names)
	if m.obj.Constant != 0 {
		fmt.Fprintf(bw, "\\ objective constant %s\n", num(m.obj.Constant))
	}

	bw.WriteString("Subject To\n")
	for i, c := range m.cons {
		writeRow(bw, fmt.Sprintf(" c%d:", i+1), c.Expr, names)
		fmt.Fprintf(bw, "   %s %s\n", c.Rel, num(c.RHS))
	}

	bw.WriteString("Bounds\n")
	for i, v := range m.vars {
		if v.Domain == Binary && v.Lower == 0 && v.Upper == 1 {
			continue
		}
		lo, up := v.Lower, v.Upper
		switch {
		case lo == up:
			fmt.Fprintf(bw, " %s = %s\n", names[i], num(lo))
		case math.IsInf(lo, -1) && math.IsInf(up, 1):
			fmt.Fprintf(bw, " %s free\n", names[i])
		case math.IsInf(lo, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", names[i], num(up))
		case math.IsInf(up, 1):
			if lo != 0 {
				fmt.Fprintf(bw, " %s >= %s\n", names[i], num(lo))
			}
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", num(lo), names[i], num(up))
		}
	}

	writeSection(bw, "Binaries", m, names, Binary)
	writeSection(bw, "Generals", m, names, Integer)
	bw.WriteString("End\n")
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, label string, e Expr, names []string) {
	line := label
	if len(e.Terms) == 0 {
		line += " 0 " + names0(names)
	}
	for _, t := range e.Terms {
		sign := "+"
		c := t.Coef
		if c < 0 {
			sign, c = "-", -c
		}
		tok := fmt.Sprintf(" %s %s %s", sign, num(c), names[t.Var])
		if len(line)+len(tok) > lineLimit {
			bw.WriteString(line + "\n")
			line = "  "
		}
		line += tok
	}
	bw.WriteString(line + "\n")
}

// names0 is the column used to spell an empty row.
func names0(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func writeSection(bw *bufio.Writer, title string, m *Model, names []string, dom Domain) {
	first := true
	for i, v := range m.vars {
		if v.Domain != dom {
			continue
		}
		if first {
			bw.WriteString(title + "\n")
			first = false
		}
		fmt.Fprintf(bw, " %s\n", names[i])
	}
}

// WriteMPS writes the model in free MPS format. Row and column names are the
// export names; rows are named c1..cN as in WriteLP.
func WriteMPS(w io.Writer, m *Model) error {
	if m.err != nil {
		return errors.Wrap(m.err, errors.ErrCodeModelExport, "model has build errors")
	}
	names := ExportNames(m)
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "NAME %s\n", sanitize(m.Name))
	if m.sense == Maximize {
		bw.WriteString("OBJSENSE\n    MAX\n")
	}
	bw.WriteString("ROWS\n N obj\n")
	for i, c := range m.cons {
		kind := "L"
		switch c.Rel {
		case GE:
			kind = "G"
		case EQ:
			kind = "E"
		}
		fmt.Fprintf(bw, " %s c%d\n", kind, i+1)
	}

	// column-major view of the matrix
	type entry struct {
		row  string
		coef float64
	}
	cols := make([][]entry, len(m.vars))
	for _, t := range m.obj.Terms {
		cols[t.Var] = append(cols[t.Var], entry{"obj", t.Coef})
	}
	for i, c := range m.cons {
		for _, t := range c.Expr.Terms {
			cols[t.Var] = append(cols[t.Var], entry{fmt.Sprintf("c%d", i+1), t.Coef})
		}
	}

	bw.WriteString("COLUMNS\n")
	inInt := false
	marker := 0
	for j, v := range m.vars {
		isInt := v.Domain != Continuous
		if isInt != inInt {
			tag := "'INTORG'"
			if !isInt {
				tag = "'INTEND'"
			}
			fmt.Fprintf(bw, " MARKER%d 'MARKER' %s\n", marker, tag)
			marker++
			inInt = isInt
		}
		if len(cols[j]) == 0 {
			fmt.Fprintf(bw, " %s obj 0\n", names[j])
			continue
		}
		for _, e := range cols[j] {
			fmt.Fprintf(bw, " %s %s %s\n", names[j], e.row, num(e.coef))
		}
	}
	if inInt {
		fmt.Fprintf(bw, " MARKER%d 'MARKER' 'INTEND'\n", marker)
	}

	bw.WriteString("RHS\n")
	for i, c := range m.cons {
		if c.RHS != 0 {
			fmt.Fprintf(bw, " RHS c%d %s\n", i+1, num(c.RHS))
		}
	}
	if m.obj.Constant != 0 {
		fmt.Fprintf(bw, " RHS obj %s\n", num(-m.obj.Constant))
	}

	bw.WriteString("BOUNDS\n")
	for j, v := range m.vars {
		n := names[j]
		lo, up := v.Lower, v.Upper
		switch {
		case v.Domain == Binary && lo == 0 && up == 1:
			fmt.Fprintf(bw, " BV BND %s\n", n)
		case lo == up:
			fmt.Fprintf(bw, " FX BND %s %s\n", n, num(lo))
		case math.IsInf(lo, -1) && math.IsInf(up, 1):
			fmt.Fprintf(bw, " FR BND %s\n", n)
		default:
			if math.IsInf(lo, -1) {
				fmt.Fprintf(bw, " MI BND %s\n", n)
			} else if lo != 0 {
				fmt.Fprintf(bw, " LO BND %s %s\n", n, num(lo))
			}
			if !math.IsInf(up, 1) {
				fmt.Fprintf(bw, " UP BND %s %s\n", n, num(up))
			} else if v.Domain == Integer {
				fmt.Fprintf(bw, " PL BND %s\n", n)
			}
		}
	}
	bw.WriteString("ENDATA\n")
	return bw.Flush()
}
