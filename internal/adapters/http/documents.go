package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const userIDHeader = "X-User-Id"

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverhead)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			rt.recordUpload(0, err)
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("file exceeds maximum size of %d bytes", rt.maxUploadBytes),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		userID = strings.TrimSpace(r.Header.Get(userIDHeader))
	}

	req := domain.UploadRequest{
		UserID:      userID,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
	}
	if raw := strings.TrimSpace(r.FormValue("document_type")); raw != "" {
		docType, ok := domain.ParseDocumentType(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown document_type %q", raw)})
			return
		}
		req.DeclaredType = docType
	}

	result, err := rt.svc.Ingest.Upload(r.Context(), req, file)
	rt.recordUpload(fileHeader.Size, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (rt *Router) recordUpload(size int64, err error) {
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordUpload("api", size, err)
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.Files.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, body, err := rt.svc.Files.Download(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("document download interrupted",
			"request_id", requestIDFromContext(r.Context()),
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	deleted, err := rt.svc.Files.Delete(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) temporaryURL(w http.ResponseWriter, r *http.Request) {
	var ttl time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("ttl")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ttl must be a positive duration such as 15m"})
			return
		}
		ttl = parsed
	}

	link, err := rt.svc.Files.TemporaryURL(r.Context(), chi.URLParam(r, "documentID"), ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// serveBlob answers signed links produced by the local blob store.
func (rt *Router) serveBlob(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid blob key"})
		return
	}
	query := r.URL.Query()
	if err := rt.svc.Blobs.Verify(key, query.Get("expires"), query.Get("sig")); err != nil {
		writeError(w, r, err)
		return
	}

	body, err := rt.svc.Blobs.Open(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func contentTypeForKey(key string) string {
	dot := strings.LastIndexByte(key, '.')
	if dot >= 0 {
		if ct := mime.TypeByExtension(strings.ToLower(key[dot:])); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}
