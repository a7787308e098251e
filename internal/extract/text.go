package extract

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// textProvider parses text and markdown directly, without an OCR backend.
// Markdown is segmented on top-level headings so section labels survive
// into chunk metadata; plain text splits on form feeds.
type textProvider struct{}

func (p *textProvider) Name() string {
	return "text"
}

func (p *textProvider) Extract(ctx context.Context, data []byte, filename string) ([]Page, error) {
	_ = ctx
	if !utf8.Valid(data) {
		return nil, ErrUnavailable
	}
	content := string(data)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return splitMarkdownSections(content), nil
	default:
		return splitFormFeeds(content), nil
	}
}

func splitFormFeeds(content string) []Page {
	var pages []Page
	for _, part := range strings.Split(content, "\f") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pages = append(pages, Page{PageNumber: len(pages) + 1, Text: part})
	}
	return pages
}

// splitMarkdownSections walks the goldmark AST and starts a new page at
// every level 1 or 2 heading.
func splitMarkdownSections(markdown string) []Page {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)
	source := reader.Source()

	var pages []Page
	var current []string
	var section string
	flush := func() {
		body := strings.TrimSpace(strings.Join(current, "\n\n"))
		current = nil
		if body == "" {
			return
		}
		pages = append(pages, Page{
			PageNumber: len(pages) + 1,
			Section:    section,
			Text:       body,
		})
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok && heading.Level <= 2 {
			flush()
			section = string(heading.Text(source))
			continue
		}
		if txt := nodeText(node, source); txt != "" {
			current = append(current, txt)
		}
	}
	flush()
	if len(pages) == 0 {
		if trimmed := strings.TrimSpace(markdown); trimmed != "" {
			pages = append(pages, Page{PageNumber: 1, Text: trimmed})
		}
	}
	return pages
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func init() {
	Register("text", func(args interface{}) (IExtractProvider, error) {
		_ = args
		return &textProvider{}, nil
	})
}
