package corpus

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Page is one unit of extracted text. Number is zero-based.
type Page struct {
	Number int
	Text   string
}

// Extraction is the output of an Extractor for a single file.
type Extraction struct {
	Title        string // Empty means the loader falls back to the filename
	Pages        []Page
	UsedFallback bool // Text was decoded as Windows-1252
}

// Extractor turns raw file bytes into text for one document format.
type Extractor interface {
	DocType() DocType
	Extract(ctx context.Context, data []byte) (Extraction, error)
}

// DefaultExtractors maps lowercase extensions to their extraction strategy.
func DefaultExtractors() map[string]Extractor {
	md := &markdownExtractor{parser: goldmark.New()}
	html := &htmlExtractor{}
	return map[string]Extractor{
		"pdf":  &pdfExtractor{},
		"txt":  &textExtractor{},
		"md":   md,
		"html": html,
		"htm":  html,
	}
}

// pdfExtractor yields one page per PDF page.
type pdfExtractor struct{}

func (e *pdfExtractor) DocType() DocType { return DocTypePDF }

func (e *pdfExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	docs, err := loader.Load(ctx)
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to parse pdf: %w", err)
	}

	pages := make([]Page, 0, len(docs))
	for i, doc := range docs {
		number := i
		if n, ok := doc.Metadata["page"].(int); ok && n > 0 {
			number = n - 1
		}
		pages = append(pages, Page{Number: number, Text: doc.PageContent})
	}
	return Extraction{Pages: pages}, nil
}

// textExtractor loads plain text files.
type textExtractor struct{}

func (e *textExtractor) DocType() DocType { return DocTypeText }

func (e *textExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	decoded, fallback, err := DecodeText(data)
	if err != nil {
		return Extraction{}, err
	}
	docs, err := documentloaders.NewText(strings.NewReader(decoded)).Load(ctx)
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to load text: %w", err)
	}
	return Extraction{Pages: singlePage(docs), UsedFallback: fallback}, nil
}

// markdownExtractor keeps the markdown source as text and takes the title from
// the first level-1 heading, or the first level-2 heading when there is none.
type markdownExtractor struct {
	parser goldmark.Markdown
}

func (e *markdownExtractor) DocType() DocType { return DocTypeMarkdown }

func (e *markdownExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	decoded, fallback, err := DecodeText(data)
	if err != nil {
		return Extraction{}, err
	}
	docs, err := documentloaders.NewText(strings.NewReader(decoded)).Load(ctx)
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to load markdown: %w", err)
	}

	source := []byte(decoded)
	doc := e.parser.Parser().Parse(text.NewReader(source))
	return Extraction{
		Title:        extractTitle(doc, source),
		Pages:        singlePage(docs),
		UsedFallback: fallback,
	}, nil
}

// htmlExtractor strips markup and keeps the visible text of the document body.
type htmlExtractor struct{}

func (e *htmlExtractor) DocType() DocType { return DocTypeHTML }

func (e *htmlExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	decoded, fallback, err := DecodeText(data)
	if err != nil {
		return Extraction{}, err
	}
	docs, err := documentloaders.NewHTML(strings.NewReader(decoded)).Load(ctx)
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to parse html: %w", err)
	}
	return Extraction{Pages: singlePage(docs), UsedFallback: fallback}, nil
}

// singlePage joins loader output into the single page of a non-paginated file.
func singlePage(docs []schema.Document) []Page {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.PageContent)
	}
	return []Page{{Number: 0, Text: strings.Join(parts, "\n\n")}}
}

// extractTitle returns the text of the first # heading, falling back to the first ## heading.
func extractTitle(doc ast.Node, content []byte) string {
	var firstH1, firstH2 string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if heading, ok := n.(*ast.Heading); ok {
			headingText := extractTextFromNode(heading, content)
			if heading.Level == 1 && firstH1 == "" {
				firstH1 = headingText
				return ast.WalkStop, nil
			}
			if heading.Level == 2 && firstH2 == "" {
				firstH2 = headingText
			}
		}

		return ast.WalkContinue, nil
	})

	if firstH1 != "" {
		return firstH1
	}
	return firstH2
}

func extractTextFromNode(n ast.Node, content []byte) string {
	var textBuilder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(content))
		case *ast.String:
			textBuilder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(textBuilder.String())
}

// titleFromFilename turns "travel_and-expenses.pdf" into "Travel And Expenses".
func titleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}

	return strings.Join(words, " ")
}
