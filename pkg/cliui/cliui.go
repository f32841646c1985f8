// Package cliui renders chainchat conversations in the terminal: message
// lines, rewind listings, a printing Sink and step indicators for commands.
package cliui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	pointerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	prevStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// maxPreview bounds how much of a message RenderMessage prints when a preview
// width is requested.
const maxPreview = 120

// RenderMessage formats a single message as one line:
//
//	#1042 ← 1037  hello world
//
// A positive width truncates the text to that many runes.
func RenderMessage(msg conversation.Message, width int) string {
	prev := "start"
	if !msg.Prev.IsNone() {
		prev = msg.Prev.String()
	}

	text := msg.Text
	if width > 0 {
		text = Truncate(text, width)
	}

	return fmt.Sprintf("%s %s  %s",
		pointerStyle.Render("#"+msg.Pointer.String()),
		prevStyle.Render("← "+prev),
		textStyle.Render(text),
	)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
// Newlines are flattened so a message always renders on one line.
func Truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// PrintRewind writes a header and every rewound message, oldest first.
func PrintRewind(w io.Writer, name string, result *conversation.RewindResult, preview bool) {
	width := 0
	if preview {
		width = maxPreview
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d messages)", name, len(result.Messages))))

	if len(result.Messages) == 0 {
		fmt.Fprintln(w, DimStyle.Render("  no messages"))
		return
	}

	for _, msg := range result.Messages {
		fmt.Fprintln(w, "  "+RenderMessage(msg, width))
	}

	if !result.Cursor.IsNone() {
		fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("  older messages from #%s", result.Cursor)))
	}
}

// Sink returns a conversation.Sink that prints each delivered message on its
// own line. It is safe for concurrent use.
func Sink(w io.Writer, preview bool) conversation.Sink {
	width := 0
	if preview {
		width = maxPreview
	}

	var mu sync.Mutex
	return conversation.SinkFunc(func(_ context.Context, msg conversation.Message) error {
		mu.Lock()
		defer mu.Unlock()

		_, err := fmt.Fprintln(w, RenderMessage(msg, width))
		return err
	})
}
