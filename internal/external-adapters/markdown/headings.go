// Package markdown extracts document structure from Markdown files.
package markdown

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// maxDocumentSize bounds the documents parsed
const maxDocumentSize = 4 << 20

// Inspector reads Markdown documents with goldmark
type Inspector struct {
	md goldmark.Markdown
}

// NewInspector creates a new Markdown inspector
func NewInspector() *Inspector {
	return &Inspector{md: goldmark.New()}
}

// Headings returns the text of every heading in document order
func (i *Inspector) Headings(path string) ([]string, error) {
	//nolint:gosec // G304: path is documentation inside the artifact under test
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if len(source) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}
	return i.HeadingsFromSource(source), nil
}

// HeadingsFromSource parses source and returns its heading texts
func (i *Inspector) HeadingsFromSource(source []byte) []string {
	doc := i.md.Parser().Parse(text.NewReader(source))

	var headings []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			var buf bytes.Buffer
			collectText(&buf, heading, source)
			headings = append(headings, strings.TrimSpace(buf.String()))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return headings
}

func collectText(buf *bytes.Buffer, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		default:
			collectText(buf, c, source)
		}
	}
}
