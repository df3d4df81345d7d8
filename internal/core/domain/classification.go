package domain

type ClassificationResult struct {
	DocumentID   string                   `json:"document_id"`
	DocumentType DocumentType             `json:"document_type"`
	Confidence   float64                  `json:"confidence"`
	Scores       map[DocumentType]float64 `json:"scores"`
	Error        string                   `json:"error,omitempty"`
}
