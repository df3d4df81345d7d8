package httpadapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const maxBatchClassify = 50

func (rt *Router) getOCR(w http.ResponseWriter, r *http.Request) {
	result, err := rt.svc.OCR.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) processOCR(w http.ResponseWriter, r *http.Request) {
	var declared domain.DocumentType
	if raw := strings.TrimSpace(r.URL.Query().Get("document_type")); raw != "" {
		docType, ok := domain.ParseDocumentType(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown document_type %q", raw)})
			return
		}
		declared = docType
	}

	result, err := rt.svc.OCR.Process(r.Context(), chi.URLParam(r, "documentID"), declared)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) classifyDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.svc.Classifier.Classify(r.Context(), chi.URLParam(r, "documentID")))
}

func (rt *Router) classifyBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_ids is required"})
		return
	}
	if len(req.DocumentIDs) > maxBatchClassify {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("at most %d documents per batch", maxBatchClassify)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": rt.svc.Classifier.ClassifyBatch(r.Context(), req.DocumentIDs),
	})
}

func (rt *Router) verifyDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VerificationType domain.VerificationType `json:"verification_type"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	switch req.VerificationType {
	case "", domain.VerificationAutomatic, domain.VerificationManual:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "verification_type must be automatic or manual"})
		return
	}

	writeJSON(w, http.StatusOK, rt.svc.Verifier.Verify(r.Context(), chi.URLParam(r, "documentID"), req.VerificationType))
}

func (rt *Router) latestVerification(w http.ResponseWriter, r *http.Request) {
	result, err := rt.svc.Verifier.Latest(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type reviewRequest struct {
	Reviewer string `json:"reviewer"`
	Notes    string `json:"notes"`
	Reason   string `json:"reason"`
}

func decodeReview(w http.ResponseWriter, r *http.Request) (reviewRequest, bool) {
	var req reviewRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if reviewer := strings.TrimSpace(r.Header.Get(reviewerHeader)); reviewer != "" {
		req.Reviewer = reviewer
	}
	return req, true
}

func (rt *Router) approveVerification(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReview(w, r)
	if !ok {
		return
	}
	result, err := rt.svc.Verifier.Approve(r.Context(), chi.URLParam(r, "documentID"), req.Reviewer, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) rejectVerification(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReview(w, r)
	if !ok {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Notes
	}
	result, err := rt.svc.Verifier.Reject(r.Context(), chi.URLParam(r, "documentID"), req.Reviewer, reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
