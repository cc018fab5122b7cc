package diag

import (
	"encoding/json"
	"fmt"
)

type Severity string

const (
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Diagnostic is one finding produced while decoding a file. Line is 1-based
// and zero when the finding is not tied to a line.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
}

func Warnf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: Warning, Message: fmt.Sprintf(format, args...)}
}

func Errorf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: Error, Message: fmt.Sprintf(format, args...)}
}

func (d Diagnostic) AtLine(line int) Diagnostic {
	d.Line = line
	return d
}

// Set collects warnings and errors separately, preserving insertion order.
type Set struct {
	Warnings []Diagnostic
	Errors   []Diagnostic
}

func (s *Set) Add(d Diagnostic) {
	if d.Severity == Error {
		s.Errors = append(s.Errors, d)
		return
	}
	s.Warnings = append(s.Warnings, d)
}

// Report adds d as an error when strict is set, otherwise as a warning.
func (s *Set) Report(strict bool, d Diagnostic) {
	if strict {
		d.Severity = Error
	} else {
		d.Severity = Warning
	}
	s.Add(d)
}

func (s *Set) HasErrors() bool { return len(s.Errors) > 0 }

// FallbackWarnings re-codes strict errors so they can ride along with a
// salvage result.
func FallbackWarnings(errs []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(errs))
	for _, e := range errs {
		out = append(out, Diagnostic{
			Code:     StrictFallbackPrefix + e.Code,
			Severity: Warning,
			Message:  e.Message,
			Line:     e.Line,
		})
	}
	return out
}

// LeadingCode returns the first error code, or fallback when there is none.
func LeadingCode(errs []Diagnostic, fallback string) string {
	if len(errs) > 0 && errs[0].Code != "" {
		return errs[0].Code
	}
	return fallback
}

// MarshalList renders a list as JSON; a nil list becomes "[]".
func MarshalList(list []Diagnostic) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}
