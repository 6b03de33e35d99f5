// ABOUTME: Markdown flattening and truncation for conversation previews.
// ABOUTME: Walks the goldmark AST so formatting markers never leak into the sidebar.

package preview

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// Text flattens markdown content into a single line of plain text and
// truncates it to max runes. Emphasis, links, and headings lose their
// markers; code blocks contribute their raw text. Plain content passes
// through unchanged apart from whitespace collapsing.
func Text(markdown string, max int) string {
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		// Block boundaries become single spaces in the flattened line.
		if n.Type() == ast.TypeBlock && b.Len() > 0 {
			b.WriteByte(' ')
		}

		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.FencedCodeBlock:
			writeLines(&b, t, source)
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			writeLines(&b, t, source)
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			b.Write(t.URL(source))
		}
		return ast.WalkContinue, nil
	})

	return Truncate(collapseSpaces(b.String()), max)
}

// FirstLine returns the first line of s trimmed and cut to max runes, with
// no ellipsis. Used for deriving conversation titles from message content.
func FirstLine(s string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	runes := []rune(line)
	if len(runes) > max {
		runes = runes[:max]
	}
	return strings.TrimSpace(string(runes))
}

// Truncate cuts s to max runes, appending "..." when anything was removed.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// writeLines appends the raw lines of a code block node.
func writeLines(b *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
		b.WriteByte(' ')
	}
}

// collapseSpaces folds all whitespace runs into single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
