package documentai

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func anchor(start, end int64) *documentaipb.Document_TextAnchor {
	return &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
	}
}

func TestExtractMapsFormFieldsAndEntities(t *testing.T) {
	text := "Wages: 52,000.00\nEmployee SSN: 123-45-6789\n"
	var got *documentaipb.ProcessRequest
	e := &Engine{
		processor: "projects/p/locations/us/processors/x",
		process: func(_ context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
			got = req
			return &documentaipb.ProcessResponse{Document: &documentaipb.Document{
				Text: text,
				Pages: []*documentaipb.Document_Page{{
					FormFields: []*documentaipb.Document_Page_FormField{
						{
							FieldName:  &documentaipb.Document_Page_Layout{TextAnchor: anchor(0, 6)},
							FieldValue: &documentaipb.Document_Page_Layout{TextAnchor: anchor(7, 16), Confidence: 0.93},
						},
						{
							FieldName:  &documentaipb.Document_Page_Layout{TextAnchor: anchor(17, 29)},
							FieldValue: &documentaipb.Document_Page_Layout{TextAnchor: anchor(0, 0)},
						},
					},
				}},
				Entities: []*documentaipb.Document_Entity{
					{Type: "employee_ssn", MentionText: "123-45-6789", Confidence: 0.88},
				},
			}}, nil
		},
	}

	out, err := e.Extract(context.Background(), &domain.DocumentMetadata{FileName: "w2.png"}, []byte("data"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.GetRawDocument().GetMimeType() != "image/png" || got.Name != e.processor {
		t.Fatalf("unexpected request %+v", got)
	}
	if out.Pages != 1 || len(out.Fields) != 2 {
		t.Fatalf("unexpected extraction %+v", out)
	}
	if out.Fields[0].Name != "Wages" || out.Fields[0].Value != "52,000.00" {
		t.Fatalf("unexpected form field %+v", out.Fields[0])
	}
	if out.Fields[0].Confidence < 0.92 || out.Fields[0].Confidence > 0.94 {
		t.Fatalf("unexpected confidence %v", out.Fields[0].Confidence)
	}
	if out.Fields[1].Name != "employee ssn" {
		t.Fatalf("expected entity field, got %+v", out.Fields[1])
	}
}

func TestExtractPropagatesErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	e := &Engine{process: func(context.Context, *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return nil, boom
	}}
	if _, err := e.Extract(context.Background(), nil, []byte("x")); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestProcessorName(t *testing.T) {
	if got := processorName("p", "eu", "abc", "v2"); got != "projects/p/locations/eu/processors/abc/processorVersions/v2" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := processorName("p", "", "abc", ""); got != "" {
		t.Fatalf("expected empty name without location, got %q", got)
	}
}

func TestTextFromAnchorClampsBounds(t *testing.T) {
	if got := textFromAnchor("abc", anchor(1, 10)); got != "bc" {
		t.Fatalf("unexpected text %q", got)
	}
}
