// Package cli provides output helpers shared by the nsxctl commands.
package cli

import (
	"strings"

	"github.com/fatih/color"
)

// Color output is disabled by fatih/color when NO_COLOR is set or stdout
// is not a terminal.
var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

// Green renders s in green.
func Green(s string) string { return green.Sprint(s) }

// Yellow renders s in yellow.
func Yellow(s string) string { return yellow.Sprint(s) }

// Red renders s in red.
func Red(s string) string { return red.Sprint(s) }

// Bold renders s in bold.
func Bold(s string) string { return bold.Sprint(s) }

// Dim renders s dimmed.
func Dim(s string) string { return dim.Sprint(s) }

var (
	goodStates    = []string{"SUCCESS", "STABLE", "UP", "CONNECTED", "REALIZED", "HEALTHY", "OK"}
	pendingStates = []string{"IN_PROGRESS", "PENDING", "DEGRADED", "UNKNOWN", "INITIALIZING"}
)

// Status colors a manager state: green when healthy, yellow while in
// progress, red otherwise.
func Status(state string) string {
	upper := strings.ToUpper(state)
	for _, s := range goodStates {
		if upper == s {
			return Green(state)
		}
	}
	for _, s := range pendingStates {
		if upper == s {
			return Yellow(state)
		}
	}
	return Red(state)
}

// DotPad pads name with dots to the given width.
// Example: DotPad("cluster", 20) → "cluster ............"
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}
