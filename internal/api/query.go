package api

import (
	"net/http"
	"strconv"
	"strings"

	"sql-console/internal/engine"
)

// HandleExecute runs the submitted SQL (form fields sql, page, page_size, db_id).
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	req := engine.Request{
		SQL:       r.FormValue("sql"),
		Page:      formInt(r, "page", 1),
		PageSize:  formInt(r, "page_size", h.Settings.Current().PageSize),
		ProfileID: strings.TrimSpace(r.FormValue("db_id")),
	}
	writeJSON(w, http.StatusOK, h.Engine.Submit(r.Context(), req))
}

// HandleExplain returns the normalized plan of one query (form fields sql, db_id).
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	plan, err := h.Engine.Explain(r.Context(), r.FormValue("sql"), strings.TrimSpace(r.FormValue("db_id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan.Envelope())
}

// formInt parses an integer form field. An absent field yields fallback and
// an unparsable one yields 0, which the engine rejects as invalid.
func formInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
