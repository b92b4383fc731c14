package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"   ____       _     _                      ",
	"  / ___|_   _(_) __| | __ _ _ __   ___ ___ ",
	" | |  _| | | | |/ _` |/ _` | '_ \\ / __/ _ \\",
	" | |_| | |_| | | (_| | (_| | | | | (_|  __/",
	"  \\____|\\__,_|_|\\__,_|\\__,_|_| |_|\\___\\___|",
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6"}

// PrintBanner writes the guidance ASCII banner to w, colored when the
// terminal supports it, followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.NewOutput(w).ColorProfile()

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i%len(bannerColors)])))
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
