package termstyle

import (
	"os"

	"github.com/muesli/termenv"
)

// output carries the detected color profile; a non-TTY stdout degrades to
// the Ascii profile, which renders every style as plain text.
var output = termenv.NewOutput(os.Stdout, termenv.WithProfile(termenv.ColorProfile()))

// SetEnabled overrides the auto-detected profile.
func SetEnabled(on bool) {
	profile := termenv.Ascii
	if on {
		profile = termenv.ColorProfile()
	}
	output = termenv.NewOutput(os.Stdout, termenv.WithProfile(profile))
}

// Enabled returns whether styling is currently active.
func Enabled() bool {
	return output.Profile != termenv.Ascii
}

// Bold renders text in bold.
func Bold(s string) string { return output.String(s).Bold().String() }

// Dim renders text in dim/faint.
func Dim(s string) string { return output.String(s).Faint().String() }

// Red renders text in red.
func Red(s string) string { return output.String(s).Foreground(termenv.ANSIRed).String() }

// Green renders text in green.
func Green(s string) string { return output.String(s).Foreground(termenv.ANSIGreen).String() }

// Yellow renders text in yellow.
func Yellow(s string) string { return output.String(s).Foreground(termenv.ANSIYellow).String() }

// Magenta renders text in magenta.
func Magenta(s string) string { return output.String(s).Foreground(termenv.ANSIMagenta).String() }

// Cyan renders text in cyan.
func Cyan(s string) string { return output.String(s).Foreground(termenv.ANSICyan).String() }

// Gray renders text in gray/white.
func Gray(s string) string { return output.String(s).Foreground(termenv.ANSIWhite).String() }
