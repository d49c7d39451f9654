package post

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultExcerptChars is the rune budget for event descriptions.
const DefaultExcerptChars = 280

var markdown = goldmark.New()

// PlainText renders markdown content to a single line of plain text.
// Markup, link targets and raw HTML are dropped; code is kept verbatim.
func PlainText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	src := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(src))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
				b.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(b.String(), " "))
}

// Excerpt returns PlainText(content) cut to at most maxChars runes.
// A cut excerpt ends with "...", counted within the budget.
func Excerpt(content string, maxChars int) string {
	plain := PlainText(content)
	if maxChars <= 0 || CountChars(plain) <= maxChars {
		return plain
	}
	runes := []rune(plain)
	if maxChars <= 3 {
		return string(runes[:maxChars])
	}
	cut := strings.TrimRight(string(runes[:maxChars-3]), " ")
	return cut + "..."
}
