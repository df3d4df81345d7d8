package httpadapter

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func formParams(r *http.Request) (string, domain.FormType) {
	return chi.URLParam(r, "userID"), domain.FormType(strings.ToLower(chi.URLParam(r, "formType")))
}

func (rt *Router) generatePrePopulation(w http.ResponseWriter, r *http.Request) {
	userID, formType := formParams(r)
	result, err := rt.svc.Forms.Generate(r.Context(), userID, formType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getPrePopulation(w http.ResponseWriter, r *http.Request) {
	userID, formType := formParams(r)
	result, err := rt.svc.Forms.Get(r.Context(), userID, formType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) exportPrePopulation(w http.ResponseWriter, r *http.Request) {
	userID, formType := formParams(r)

	// Buffer so a failed export still gets a JSON error instead of a partial file.
	var buf bytes.Buffer
	if err := rt.svc.Forms.Export(r.Context(), userID, formType, &buf); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-prepopulation.xlsx"`, formType))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) progress(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.svc.Progress.Summary(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
