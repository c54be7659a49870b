package main

import (
	"fmt"
	"io"

	"github.com/nooga/weld/pkg/errors"
)

// renderDiagnostics prints each diagnostic with its level, code, module and
// code frame.
func renderDiagnostics(w io.Writer, diags *errors.Diagnostics) {
	for _, d := range diags.All() {
		fmt.Fprintln(w, formatDiagnostic(d))
	}
}

func formatDiagnostic(d errors.Diagnostic) string {
	var label string
	switch d.Level {
	case errors.LevelError:
		label = ErrorStyle.Render("error")
	case errors.LevelWarning:
		label = WarningStyle.Render("warning")
	default:
		label = SubtitleStyle.Render("info")
	}

	line := fmt.Sprintf("%s %s %s", label, SubtitleStyle.Render("["+d.Code+"]"), d.Reason)
	if d.Module != "" {
		line += " " + PathStyle.Render("("+d.Module+")")
	}
	if d.Frame != "" {
		line += "\n" + FrameStyle.Render(d.Frame)
	}
	return line
}
