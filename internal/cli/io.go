package cli

import (
	"fmt"
	"io"
)

// warning is a problem with a summary and the command that fixes it.
type warning struct {
	issue, fix string
}

func (w warning) String() string { return "warning: " + w.issue + ": " + w.fix }

// IO is a command's view of stdout and stderr.
//
// Warnings, such as a stale summary, are collected while the command runs.
// They are printed to stderr before the first line of stdout and again by
// Finish, so a `| head` or `| tail` still shows them.
type IO struct {
	out, errOut io.Writer

	warnings []warning
	shown    int // warnings already printed ahead of stdout
}

// NewIO returns an IO writing to out and errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records issue and the fix to suggest. Any warning turns the exit
// code into 1 without suppressing output.
func (o *IO) Warn(issue, fix string) {
	o.warnings = append(o.warnings, warning{issue: issue, fix: fix})
}

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	o.showPending()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.showPending()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish repeats every warning on stderr and returns the exit code.
func (o *IO) Finish() int {
	o.showPending()

	if len(o.warnings) == 0 {
		return 0
	}

	for _, w := range o.warnings {
		o.ErrPrintln(w)
	}

	return 1
}

// showPending prints warnings recorded before the first stdout write. Only
// the first batch is printed early; later ones wait for Finish.
func (o *IO) showPending() {
	if o.shown > 0 || len(o.warnings) == 0 {
		return
	}

	for _, w := range o.warnings {
		o.ErrPrintln(w)
	}

	o.shown = len(o.warnings)
}
