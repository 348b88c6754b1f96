// Package api exposes the console over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sql-console/internal/config"
	"sql-console/internal/engine"
	"sql-console/internal/exporter"
	"sql-console/internal/hub"
	"sql-console/internal/profile"
	"sql-console/internal/resultstore"
	"sql-console/internal/security"
	"sql-console/internal/snippet"
	"sql-console/internal/storage"
	"sql-console/internal/worker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the session token gates the feed
	},
}

type Handler struct {
	Engine   *engine.Engine
	Results  resultstore.Store
	Profiles *profile.Store
	Snippets *snippet.Store
	Settings *config.SettingsStore
	Sessions *security.Sessions
	Limiter  *security.RateLimiter
	Lockout  *security.Lockout
	Hub      *hub.Hub

	// Archive and Storage are nil when export archiving is off.
	Archive *worker.Pool
	Storage storage.Provider

	// OnSettings observes every saved settings value.
	OnSettings func(config.Settings)

	now func() time.Time
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.HandleIndex)

	mux.HandleFunc("/execute_sql", h.protect(h.HandleExecute))
	mux.HandleFunc("/analyze_query_plan", h.protect(h.HandleExplain))

	mux.HandleFunc("/export_excel", h.protect(h.exportAs(exporter.FormatExcel)))
	mux.HandleFunc("/export_csv", h.protect(h.exportAs(exporter.FormatCSV)))
	mux.HandleFunc("/export_html", h.protect(h.exportAs(exporter.FormatHTML)))
	mux.HandleFunc("/export_json", h.protect(h.exportAs(exporter.FormatJSON)))
	mux.HandleFunc("/export_pdf", h.protect(h.exportAs(exporter.FormatPDF)))
	mux.HandleFunc("/archived_export", h.protect(h.HandleArchivedExport))

	mux.HandleFunc("/databases", h.protect(h.HandleDatabases))
	mux.HandleFunc("/set_default_db", h.protect(h.HandleSetDefault))
	mux.HandleFunc("/test_db_connection", h.protect(h.HandleTestConnection))

	mux.HandleFunc("/common_sqls", h.protect(h.HandleSnippets))
	mux.HandleFunc("/import_common_sqls", h.protect(h.HandleImportSnippets))
	mux.HandleFunc("/export_common_sqls", h.protect(h.HandleExportSnippets))

	mux.HandleFunc("/has_app_password", h.HandleHasPassword)
	mux.HandleFunc("/check_app_password", h.HandleCheckPassword)
	mux.HandleFunc("/set_app_password", h.HandleSetPassword)
	mux.HandleFunc("/change_app_password", h.protect(h.HandleChangePassword))
	mux.HandleFunc("/get_app_config", h.protect(h.HandleGetConfig))
	mux.HandleFunc("/save_app_config", h.protect(h.HandleSaveConfig))

	mux.HandleFunc("/events", h.protect(h.HandleEvents))
	return mux
}

// HandleIndex reports what the client needs to render the console and sweeps
// expired results.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	settings := h.Settings.Current()
	if n := h.Results.SweepExpired(h.clock(), h.Settings.ResultTTL()); n > 0 {
		slog.Info("Expired results removed", "count", n)
	}

	databases, err := h.Profiles.List()
	if err != nil {
		slog.Error("List profiles failed", "error", err)
		databases = []profile.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"title":         settings.Title,
		"has_password":  settings.HasPassword(),
		"databases":     nonNil(databases),
		"supported_dbs": h.Engine.Families(),
		"excel_colors":  exporter.HeaderColors,
		"page_size":     settings.PageSize,
		"archive":       h.Archive != nil,
	})
}

// HandleEvents streams audit events to a WebSocket subscriber.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Audit feed upgrade failed", "error", err)
		return
	}

	h.Hub.Register(conn)

	// Keep connection open
	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.Hub.Unregister(conn)
			break
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Write response failed", "error", err)
	}
}

func errorBody(message string) map[string]any {
	return map[string]any{"status": "error", "message": message}
}

func successBody(message string) map[string]any {
	return map[string]any{"status": "success", "message": message}
}

// writeEngineError reports an engine failure with status 200 and its kind.
func writeEngineError(w http.ResponseWriter, err error) {
	var e *engine.Error
	if !errors.As(err, &e) {
		e = &engine.Error{Kind: engine.KindExecution, Message: err.Error(), Cause: err}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "error",
		"message":    e.Message,
		"error_type": e.Kind,
	})
}

// decodeJSON reads a JSON body into v and answers 400 when it is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
