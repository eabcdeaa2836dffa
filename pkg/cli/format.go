// Package cli provides shared formatting helpers for the vland CLI tools.
package cli

import (
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/newtron-network/vland/pkg/model"
)

// colorEnabled is true when stdout is a terminal and NO_COLOR is unset
// (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))

func wrap(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// Green wraps s in ANSI green.
func Green(s string) string { return wrap("\033[32m", s) }

// Yellow wraps s in ANSI yellow.
func Yellow(s string) string { return wrap("\033[33m", s) }

// Red wraps s in ANSI red.
func Red(s string) string { return wrap("\033[31m", s) }

// Bold wraps s in ANSI bold.
func Bold(s string) string { return wrap("\033[1m", s) }

// Dim wraps s in ANSI dim.
func Dim(s string) string { return wrap("\033[2m", s) }

// State renders a derived state as "<oper_state>/<reason>": green when
// up, dim when admin down, yellow otherwise.
func State(st model.DerivedState) string {
	switch {
	case st.OperState == model.OperUp:
		return Green(st.String())
	case st.Reason == model.ReasonAdminDown:
		return Dim(st.String())
	default:
		return Yellow(st.String())
	}
}

// KeyValue pads label to width and appends " : value".
// Example: KeyValue("Internal VLAN range", 20, "1024-4094") →
// "Internal VLAN range  : 1024-4094"
func KeyValue(label string, width int, value string) string {
	if pad := width - len(label); pad > 0 {
		label += strings.Repeat(" ", pad)
	}
	return label + " : " + value
}
