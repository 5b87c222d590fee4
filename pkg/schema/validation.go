package schema

import (
	"fmt"
	"strings"
)

// Severity indicates whether a validation issue blocks execution.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single problem found while checking stored definitions.
type Issue struct {
	Document string   `json:"document"`
	Path     string   `json:"path,omitempty"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	loc := i.Document
	if i.Path != "" {
		loc += ":" + i.Path
	}
	return fmt.Sprintf("%s %s: %s", i.Severity, loc, i.Message)
}

// Report aggregates the issues found in one scenario or process.
type Report struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors; warnings are acceptable.
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *Report) AddError(document, path, code, message string) {
	r.Errors = append(r.Errors, Issue{
		Document: document, Path: path, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *Report) AddWarning(document, path, code, message string) {
	r.Warnings = append(r.Warnings, Issue{
		Document: document, Path: path, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// Merge combines another Report into this one.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Lines renders every issue, errors first.
func (r *Report) Lines() []string {
	out := make([]string, 0, len(r.Errors)+len(r.Warnings))
	for _, i := range r.Errors {
		out = append(out, i.String())
	}
	for _, i := range r.Warnings {
		out = append(out, i.String())
	}
	return out
}

// ToError converts the report to a ScenarioError if invalid, nil if valid.
func (r *Report) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].String()
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("%d issues: %s", len(r.Errors), strings.Join(r.Lines()[:len(r.Errors)], "; "))
	}

	return NewError(r.Errors[0].Code, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
