package documentai

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const (
	engineName     = "gcp_documentai"
	processTimeout = 3 * time.Minute
)

type Config struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// Engine sends raw document bytes to a Document AI form processor and maps
// form fields and entities to extracted fields.
type Engine struct {
	processor string
	process   processFunc
	close     func() error
}

func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Engine, error) {
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, errors.New("documentai: project, location and processor id are required")
	}
	location := strings.TrimSpace(cfg.Location)
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)

	clientOpts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, opts...)
	client, err := documentai.NewDocumentProcessorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	return &Engine{
		processor: name,
		process: func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
			return client.ProcessDocument(ctx, req)
		},
		close: client.Close,
	}, nil
}

func (e *Engine) Name() string { return engineName }

func (e *Engine) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

func (e *Engine) Extract(ctx context.Context, doc *domain.DocumentMetadata, content []byte) (*domain.OCRExtraction, error) {
	if len(content) == 0 {
		return &domain.OCRExtraction{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	resp, err := e.process(ctx, &documentaipb.ProcessRequest{
		Name: e.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType(doc),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return &domain.OCRExtraction{}, nil
	}
	return buildExtraction(resp.Document), nil
}

func buildExtraction(doc *documentaipb.Document) *domain.OCRExtraction {
	out := &domain.OCRExtraction{
		RawText: strings.TrimSpace(doc.Text),
		Pages:   len(doc.Pages),
	}

	for _, p := range doc.Pages {
		if p == nil {
			continue
		}
		for _, ff := range p.FormFields {
			if ff == nil || ff.FieldName == nil || ff.FieldValue == nil {
				continue
			}
			name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(textFromAnchor(doc.Text, ff.FieldName.TextAnchor)), ":"))
			value := strings.TrimSpace(textFromAnchor(doc.Text, ff.FieldValue.TextAnchor))
			if name == "" || value == "" {
				continue
			}
			out.Fields = append(out.Fields, domain.ExtractedField{
				Name:       collapse(name),
				Value:      collapse(value),
				Confidence: float64(ff.FieldValue.Confidence),
			})
		}
	}

	// Specialized processors (W-2, 1040, ID) report entities instead of form fields.
	for _, ent := range doc.Entities {
		if ent == nil {
			continue
		}
		value := strings.TrimSpace(ent.MentionText)
		if ent.NormalizedValue != nil && strings.TrimSpace(ent.NormalizedValue.Text) != "" {
			value = strings.TrimSpace(ent.NormalizedValue.Text)
		}
		name := strings.TrimSpace(strings.ReplaceAll(ent.Type, "_", " "))
		if name == "" || value == "" {
			continue
		}
		out.Fields = append(out.Fields, domain.ExtractedField{
			Name:       name,
			Value:      collapse(value),
			Confidence: float64(ent.Confidence),
		})
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}

func mimeType(doc *domain.DocumentMetadata) string {
	if doc == nil {
		return "application/pdf"
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(doc.FileName), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/pdf"
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
