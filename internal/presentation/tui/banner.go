package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Canopy ASCII art banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	// Leafy gradient (Emerald/Lime)
	lines := []struct{ text, color string }{
		{"   ___                             ", "#059669"},
		{"  / __|__ _ _ _  ___ _ __ _  _     ", "#10b981"},
		{" | (__/ _` | ' \\/ _ \\ '_ \\ || |", "#34d399"},
		{"  \\___\\__,_|_||_\\___/ .__/\\_, |", "#84cc16"},
		{"                    |_|   |__/     ", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	if version = strings.TrimSpace(version); version != "" {
		fmt.Fprintln(w, p.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
