package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the wayfarer banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{` __      __              __`, "#2dd4bf"},
		{` \ \    / /_ _ _  _ ___ / _|__ _ _ _ ___ _ _`, "#22d3ee"},
		{`  \ \/\/ / _' | || |___|  _/ _' | '_/ -_) '_|`, "#38bdf8"},
		{`   \_/\_/\__,_|\_, |    |_| \__,_|_| \___|_|`, "#60a5fa"},
		{`               |__/`, "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  travel companion "+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}

// Attribution formats the footer naming the responders behind a reply.
// Fallback replies are marked so degraded answers are visible.
func Attribution(contributors []string, usedFallback bool) string {
	p := termenv.ColorProfile()
	names := "nobody"
	if len(contributors) > 0 {
		names = strings.Join(contributors, ", ")
	}
	line := termenv.String("answered by " + names).Foreground(p.Color("#94a3b8"))
	if !usedFallback {
		return line.String()
	}
	return line.String() + " " + termenv.String("(fallback)").Foreground(p.Color("#fbbf24")).String()
}
