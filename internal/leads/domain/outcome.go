package domain

import "fmt"

// Warning records a secondary write that failed after the primary write succeeded.
type Warning struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Op, w.Message)
}

// Outcome carries the partial-failure warnings of a multi-write operation.
// A non-empty Warnings list never turns a successful primary write into a failure.
type Outcome struct {
	Warnings []Warning
}

// Warn appends a warning built from err. A nil err is ignored.
func (o *Outcome) Warn(op string, err error) {
	if err == nil {
		return
	}
	o.Warnings = append(o.Warnings, Warning{Op: op, Message: err.Error()})
}

// Note appends a warning that is not backed by an error, such as a zero-match lookup.
func (o *Outcome) Note(op, message string) {
	o.Warnings = append(o.Warnings, Warning{Op: op, Message: message})
}

// HasWarning reports whether a warning was recorded for op.
func (o Outcome) HasWarning(op string) bool {
	for _, w := range o.Warnings {
		if w.Op == op {
			return true
		}
	}
	return false
}
