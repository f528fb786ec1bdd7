package extract

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// MarkdownExtractor strips markdown syntax and keeps readable text.
// Block elements end with a blank line so the chunker can split on paragraphs.
type MarkdownExtractor struct {
	md goldmark.Markdown
}

// NewMarkdown creates a markdown extractor configured with goldmark parser.
func NewMarkdown() *MarkdownExtractor {
	return &MarkdownExtractor{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// Extract returns the document text without markup.
func (e *MarkdownExtractor) Extract(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return e.PlainText(source), nil
}

// Title returns the first H1 heading, or "" when there is none.
func (e *MarkdownExtractor) Title(path string) string {
	source, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	doc := e.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(1),
		toc.Compact(true),
	)
	if err != nil || len(tree.Items) == 0 {
		return ""
	}
	return strings.TrimSpace(string(tree.Items[0].Title))
}

// PlainText renders markdown source as plain text.
func (e *MarkdownExtractor) PlainText(source []byte) string {
	doc := e.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindFencedCodeBlock,
				ast.KindCodeBlock, ast.KindThematicBreak:
				buf.WriteString("\n\n")
			case ast.KindTextBlock:
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.HardLineBreak() || node.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(source))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(blankLines.ReplaceAllString(buf.String(), "\n\n"))
}
