// Package ui implements the console sink the engine pushes text to: a
// line-oriented renderer for assistant replies, prompts and banners.
//
// The engine treats this package as an external collaborator; nothing here
// touches session state.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/sefaria-labs/explorer/internal/log"
)

// Console renders engine output to a terminal writer.
//
// Markdown is rendered through glamour when a renderer could be built;
// otherwise text passes through unstyled. Hebrew output is prefixed with a
// right-to-left mark per line so capable terminals lay it out correctly.
type Console struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	logger   log.Logger
}

// NewConsole creates a console sink writing to out.
func NewConsole(out io.Writer, logger log.Logger) *Console {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Plain text fallback; rendering is cosmetic.
		logger.Warn("markdown renderer unavailable", "error", err)
		renderer = nil
	}
	return &Console{out: out, renderer: renderer, logger: logger}
}

// Say renders one engine-emitted message.
func (c *Console) Say(text string) {
	text = FormatRTL(text)
	if c.renderer != nil {
		if rendered, err := c.renderer.Render(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

// Sayf renders a formatted message.
func (c *Console) Sayf(format string, args ...any) {
	c.Say(fmt.Sprintf(format, args...))
}

// Prompt writes the input prompt without a trailing newline.
func (c *Console) Prompt(p string) {
	fmt.Fprint(c.out, p)
}

// ContainsHebrew reports whether s holds any character in the Hebrew
// Unicode block (U+0590 to U+05FF).
func ContainsHebrew(s string) bool {
	for _, r := range s {
		if r >= 0x0590 && r <= 0x05FF {
			return true
		}
	}
	return false
}

// FormatRTL prefixes lines containing Hebrew with a right-to-left mark.
// Lines without Hebrew are returned unchanged.
func FormatRTL(text string) string {
	if !ContainsHebrew(text) {
		return text
	}
	const rlm = "‏"
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if ContainsHebrew(line) {
			lines[i] = rlm + line
		}
	}
	return strings.Join(lines, "\n")
}
