package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"sql-console/internal/engine"
	"sql-console/internal/exporter"
	"sql-console/internal/storage"
	"sql-console/internal/worker"
)

const (
	archiveHeader  = "X-Archive-Key"
	archiveTimeout = 5 * time.Minute
)

// exportAs streams a stored result as a file download in format f.
func (h *Handler) exportAs(f exporter.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet) {
			return
		}
		q := r.URL.Query()

		handle, err := h.Results.Get(strings.TrimSpace(q.Get("query_id")))
		if err != nil {
			writeEngineError(w, engine.NotFound(err))
			return
		}

		opts := exporter.Options{
			IncludeHeader: queryBool(q.Get("include_header"), true),
			Separator:     exporter.Separator(q.Get("separator")),
			HeaderColor:   exporter.HeaderColor(q.Get("header_color")),
			Title:         h.Settings.Current().Title,
		}
		filename := exporter.FileName(q.Get("filename"), f, h.clock())

		enc, err := exporter.NewEncoder(f, w, opts)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		defer enc.Close()

		if h.Archive != nil {
			job := worker.NewArchiveJob(handle, f, opts, filename, archiveTimeout)
			if h.Archive.Submit(job) {
				w.Header().Set(archiveHeader, job.Key)
			} else {
				slog.Warn("Archive queue full, export not archived", "query_id", handle.ID)
			}
		}

		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition", attachment(filename))

		stats, err := exporter.StreamResult(r.Context(), handle, enc)
		if err != nil {
			// Headers are gone; the client sees a truncated file.
			slog.Error("Export failed", "query_id", handle.ID, "format", f, "error", err)
			return
		}
		slog.Info("Export completed", "query_id", handle.ID, "format", f,
			"rows", stats.RowsProcessed, "duration", stats.Duration)
	}
}

// HandleArchivedExport downloads a previously archived export by key.
func (h *Handler) HandleArchivedExport(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	if h.Storage == nil {
		writeJSON(w, http.StatusNotFound, errorBody("export archive is not configured"))
		return
	}
	key, err := storage.CleanKey(r.URL.Query().Get("key"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	rc, err := h.Storage.OpenFile(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("archived export not found"))
		return
	}
	if err != nil {
		slog.Error("Open archived export failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("archived export unavailable"))
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachment(path.Base(key)))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Send archived export failed", "key", key, "error", err)
	}
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

func queryBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return b
}
