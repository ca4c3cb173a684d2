package nodemat

import (
	"errors"
	"fmt"
)

// Severity indicates whether a diagnostic makes the compiled program unusable.
type Severity int

const (
	SeverityError   Severity = iota // program is unusable
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic is a single finding of a graph compilation.
type Diagnostic struct {
	Severity Severity
	// Block is the block the finding refers to. Nil for graph level findings.
	Block Block
	// Point is the connection point the finding refers to, if any.
	Point   *ConnectionPoint
	Message string
}

func (d Diagnostic) Error() string {
	if d.Block == nil {
		return fmt.Sprintf("[%s] %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("[%s] block %s: %s", d.Severity, d.Block.Base().name, d.Message)
}

// Diagnostics is the ordered list of findings of a compilation. Compilation never
// stops at the first finding so the list is complete.
type Diagnostics []Diagnostic

func (ds *Diagnostics) add(sev Severity, b Block, cp *ConnectionPoint, msg string) {
	*ds = append(*ds, Diagnostic{Severity: sev, Block: b, Point: cp, Message: msg})
}

// HasErrors reports whether any finding has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the findings with error severity.
func (ds Diagnostics) Errors() (errs Diagnostics) {
	for _, d := range ds {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}

// Warnings returns the findings with warning severity.
func (ds Diagnostics) Warnings() (warns Diagnostics) {
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			warns = append(warns, d)
		}
	}
	return warns
}

// Err joins all error severity findings, or returns nil if there are none.
func (ds Diagnostics) Err() error {
	var errs []error
	for _, d := range ds {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errors.Join(errs...)
}
