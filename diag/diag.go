// Package diag renders single-line caret diagnostics from a source string
// and a byte span. It is the "diagnostic renderer" external collaborator:
// the parser and evaluator only ever produce spans and messages, never
// formatted text themselves.
package diag

import (
	"fmt"
	"strings"

	"github.com/wisplang/wisp/token"
)

// Report renders msg with the offending source line and a caret underline
// beneath the span [start, end). Byte offsets falling past the end of src
// are clamped so a trailing EOF span still renders.
func Report(src string, start, end int, msg string) string {
	if start > len(src) {
		start = len(src)
	}
	if end > len(src) {
		end = len(src)
	}
	if end < start {
		end = start
	}

	lineStart := strings.LastIndexByte(src[:start], '\n') + 1
	lineEnd := strings.IndexByte(src[start:], '\n')
	if lineEnd == -1 {
		lineEnd = len(src)
	} else {
		lineEnd += start
	}
	line := 1 + strings.Count(src[:lineStart], "\n")
	col := start - lineStart + 1

	width := end - start
	if width < 1 {
		width = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d: %s\n", line, col, msg)
	b.WriteString(src[lineStart:lineEnd])
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", start-lineStart))
	b.WriteString(strings.Repeat("^", width))
	return b.String()
}

// ReportSpan is a convenience wrapper around Report for a token.Span.
func ReportSpan(src string, sp token.Span, msg string) string {
	return Report(src, sp.Start, sp.End, msg)
}
