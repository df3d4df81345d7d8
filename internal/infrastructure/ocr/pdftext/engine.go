package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const (
	engineName = "pdf_text_layer"

	// A digital text layer is exact; the remaining uncertainty is in the
	// label/value split.
	textLayerConfidence = 0.9
)

var ErrImageNeedsOCR = errors.New("image documents need a cloud OCR engine")

var labelValuePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 .'()/#&-]{0,59}[A-Za-z)])\s*:\s*(\S.*)$`)

// Engine reads the embedded text layer of digital PDFs and plain-text
// uploads. It is the development fallback when Document AI is not configured.
type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return engineName }

func (e *Engine) Extract(ctx context.Context, doc *domain.DocumentMetadata, content []byte) (*domain.OCRExtraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return &domain.OCRExtraction{}, nil
	}

	switch {
	case bytes.HasPrefix(content, []byte("%PDF")):
		lines, pages, err := pdfLines(content)
		if err != nil {
			return nil, err
		}
		return fromLines(lines, pages), nil
	case utf8.Valid(content) && !isImage(doc):
		return fromLines(strings.Split(string(content), "\n"), 1), nil
	default:
		name := ""
		if doc != nil {
			name = doc.FileName
		}
		return nil, fmt.Errorf("%w: %s", ErrImageNeedsOCR, name)
	}
}

func pdfLines(content []byte) (lines []string, pages int, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			lines, pages, err = nil, 0, fmt.Errorf("pdf reader: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, 0, fmt.Errorf("pdf reader: %w", err)
	}

	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, 0, fmt.Errorf("pdf page %d: %w", i, err)
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return lines, pages, nil
}

func fromLines(lines []string, pages int) *domain.OCRExtraction {
	out := &domain.OCRExtraction{Pages: pages}
	text := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		text = append(text, line)
		if name, value, ok := splitLabelValue(line); ok {
			out.Fields = append(out.Fields, domain.ExtractedField{
				Name:       name,
				Value:      value,
				Confidence: textLayerConfidence,
			})
		}
	}
	out.RawText = strings.Join(text, "\n")
	return out
}

func splitLabelValue(line string) (string, string, bool) {
	m := labelValuePattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	name := strings.TrimSpace(m[1])
	value := strings.TrimSpace(m[2])
	if name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}

func isImage(doc *domain.DocumentMetadata) bool {
	if doc == nil {
		return false
	}
	switch strings.ToLower(path.Ext(doc.FileName)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff":
		return true
	}
	return false
}
