package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"sql-console/internal/snippet"
)

// HandleSnippets lists, saves and deletes saved SQL.
func (h *Handler) HandleSnippets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.Snippets.List()
		if err != nil {
			slog.Error("List saved sql failed", "error", err)
			writeJSON(w, http.StatusOK, errorBody("failed to read saved sql"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": nonNil(list)})

	case http.MethodPost:
		var sn snippet.Snippet
		if !decodeJSON(w, r, &sn) {
			return
		}
		updating := sn.ID != ""
		saved, err := h.Snippets.Save(sn)
		if err != nil {
			writeSnippetError(w, err)
			return
		}
		msg := "saved"
		if updating {
			msg = "updated"
		}
		body := successBody(msg)
		body["data"] = saved
		writeJSON(w, http.StatusOK, body)

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeJSON(w, http.StatusOK, errorBody("id is required"))
			return
		}
		if err := h.Snippets.Delete(id); err != nil {
			writeSnippetError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, successBody("deleted"))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleImportSnippets replaces the saved list with a JSON array body.
func (h *Handler) HandleImportSnippets(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var list []snippet.Snippet
	if !decodeJSON(w, r, &list) {
		return
	}
	n, err := h.Snippets.Import(list)
	if err != nil {
		writeSnippetError(w, err)
		return
	}
	slog.Info("Saved sql imported", "count", n)
	writeJSON(w, http.StatusOK, successBody(fmt.Sprintf("imported %d saved statements", n)))
}

// HandleExportSnippets downloads the saved list as a JSON file.
func (h *Handler) HandleExportSnippets(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	data, err := h.Snippets.Export()
	if errors.Is(err, fs.ErrNotExist) {
		writeJSON(w, http.StatusOK, errorBody("no saved sql file exists yet"))
		return
	}
	if err != nil {
		writeSnippetError(w, err)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("filename"))
	if name == "" {
		name = "common_sqls_" + h.clock().Format("20060102") + ".json"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(name))
	_, _ = w.Write(data)
}

func writeSnippetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, snippet.ErrInvalid), errors.Is(err, snippet.ErrNotFound):
		writeJSON(w, http.StatusOK, errorBody(err.Error()))
	default:
		slog.Error("Saved sql operation failed", "error", err)
		writeJSON(w, http.StatusOK, errorBody("failed to update saved sql"))
	}
}
