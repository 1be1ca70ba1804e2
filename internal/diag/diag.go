// Package diag defines the structured diagnostics shared by every compiler phase.
//
// Unit-local failures (syntax errors, type errors, unsupported MIR constructs,
// artifact write failures) never abort a run. They are recorded as
// Diagnostics attached to the unit that produced them and returned to the
// caller next to the artifact list.
package diag

import (
	"fmt"
	"slices"
	"strings"
)

// Severity orders diagnostics by how much they matter.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	case "note":
		*s = SeverityNote
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Kind is the error taxonomy a diagnostic belongs to.
type Kind string

const (
	KindLoad   Kind = "load"
	KindParse  Kind = "parse"
	KindType   Kind = "type"
	KindEncode Kind = "encode"
	KindIO     Kind = "io"
	KindEmit   Kind = "emit"
	KindNote   Kind = "note"
)

// Phase names the pipeline phase that reported a diagnostic.
type Phase string

const (
	PhaseLoad      Phase = "load"
	PhaseLex       Phase = "lex"
	PhaseParse     Phase = "parse"
	PhaseResolve   Phase = "resolve"
	PhaseTypeCheck Phase = "typecheck"
	PhaseEmit      Phase = "emit"
	PhaseEncode    Phase = "encode"
	PhaseWrite     Phase = "write"
	PhaseSchedule  Phase = "schedule"
)

// Pos is a position in a compilation unit. Line and Col are 1-based;
// a zero Line means the diagnostic is not tied to a location.
type Pos struct {
	Line   int `json:"line,omitempty"`
	Col    int `json:"col,omitempty"`
	Offset int `json:"-"`
}

// IsValid reports whether the position points into the source.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Before reports whether p precedes q in the source.
func (p Pos) Before(q Pos) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

// Diagnostic is one structured message about a compilation unit.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Phase    Phase    `json:"phase"`
	Unit     string   `json:"unit,omitempty"`
	Pos      Pos      `json:"pos"`
	Message  string   `json:"message"`
}

// Error implements error so a single diagnostic can travel as one.
func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.Unit != "" {
		b.WriteString(d.Unit)
		if d.Pos.IsValid() {
			fmt.Fprintf(&b, ":%d:%d", d.Pos.Line, d.Pos.Col)
		}
		b.WriteString(": ")
	} else if d.Pos.IsValid() {
		fmt.Fprintf(&b, "%d:%d: ", d.Pos.Line, d.Pos.Col)
	}
	fmt.Fprintf(&b, "%s [%s] %s", d.Severity, d.Code, d.Message)
	return b.String()
}

// IsError reports whether the diagnostic prevents its unit from compiling.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// New builds an error diagnostic.
func New(kind Kind, phase Phase, code string, pos Pos, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityError,
		Kind:     kind,
		Phase:    phase,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Warning builds a warning diagnostic.
func Warning(kind Kind, phase Phase, code string, pos Pos, format string, args ...any) Diagnostic {
	d := New(kind, phase, code, pos, format, args...)
	d.Severity = SeverityWarning
	return d
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// HasErrors reports whether any diagnostic in the list is an error.
func (l List) HasErrors() bool {
	return slices.ContainsFunc(l, Diagnostic.IsError)
}

// Errors returns only the error diagnostics.
func (l List) Errors() List {
	var out List
	for _, d := range l {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// WithUnit stamps every diagnostic with the given unit identity.
func (l List) WithUnit(unit string) List {
	out := make(List, len(l))
	for i, d := range l {
		d.Unit = unit
		out[i] = d
	}
	return out
}

// Codes lists the diagnostic codes in order, mostly for tests and summaries.
func (l List) Codes() []string {
	codes := make([]string, len(l))
	for i, d := range l {
		codes[i] = d.Code
	}
	return codes
}

// Sort orders diagnostics by position, keeping report order for ties.
func (l List) Sort() {
	slices.SortStableFunc(l, func(a, b Diagnostic) int {
		switch {
		case a.Pos.Before(b.Pos):
			return -1
		case b.Pos.Before(a.Pos):
			return 1
		default:
			return 0
		}
	})
}

func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, d := range l {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}
