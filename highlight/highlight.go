// Package highlight applies ANSI terminal syntax highlighting to
// command lines shown in the TUI monitor.
package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("redis")
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// Command returns the input with ANSI terminal syntax highlighting
// applied. On error, empty input, or an unavailable lexer, the
// original string is returned unchanged.
func Command(s string) string {
	if s == "" || lexer == nil {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}
