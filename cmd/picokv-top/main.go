// Command picokv-top is the live terminal monitor: it connects to a
// running picokvd's monitor endpoint and renders a scrolling list of
// dispatched commands.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onestore/picokv/tui"
)

func main() {
	fs := flag.NewFlagSet("picokv-top", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "picokv-top — live command monitor for picokvd\n\nUsage:\n  picokv-top [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	target := fs.String("target", "http://127.0.0.1:9200", "picokvd monitor HTTP address")
	_ = fs.Parse(os.Args[1:])

	m := tui.New(*target)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
