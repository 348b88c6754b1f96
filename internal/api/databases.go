package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sql-console/internal/profile"
)

// HandleDatabases lists, creates, updates and deletes connection profiles.
func (h *Handler) HandleDatabases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.Profiles.List()
		if err != nil {
			slog.Error("List profiles failed", "error", err)
			writeJSON(w, http.StatusOK, errorBody("failed to read database profiles"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": nonNil(list)})

	case http.MethodPost:
		var p profile.Profile
		if !decodeJSON(w, r, &p) {
			return
		}
		created, err := h.Profiles.Create(normalizeProfile(p))
		if err != nil {
			writeProfileError(w, "Create profile failed", err)
			return
		}
		slog.Info("Database profile created", "db_id", created.ID, "db_type", created.Type)
		body := successBody("database added")
		body["data"] = created
		writeJSON(w, http.StatusOK, body)

	case http.MethodPut:
		var p profile.Profile
		if !decodeJSON(w, r, &p) {
			return
		}
		if strings.TrimSpace(p.ID) == "" {
			writeJSON(w, http.StatusOK, errorBody("database id is required"))
			return
		}
		updated, err := h.Profiles.Update(p.ID, normalizeProfile(p))
		if err != nil {
			writeProfileError(w, "Update profile failed", err)
			return
		}
		slog.Info("Database profile updated", "db_id", updated.ID)
		body := successBody("database updated")
		body["data"] = updated
		writeJSON(w, http.StatusOK, body)

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeJSON(w, http.StatusOK, errorBody("database id is required"))
			return
		}
		if err := h.Profiles.Delete(id); err != nil {
			writeProfileError(w, "Delete profile failed", err)
			return
		}
		slog.Info("Database profile deleted", "db_id", id)
		writeJSON(w, http.StatusOK, successBody("database deleted"))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type idRequest struct {
	DBID string `json:"db_id"`
}

// HandleSetDefault marks one profile as the default (JSON body {"db_id"}).
func (h *Handler) HandleSetDefault(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req idRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DBID) == "" {
		writeJSON(w, http.StatusOK, errorBody("database id is required"))
		return
	}
	if err := h.Profiles.SetDefault(req.DBID); err != nil {
		writeProfileError(w, "Set default profile failed", err)
		return
	}
	writeJSON(w, http.StatusOK, successBody("default database set"))
}

// HandleTestConnection connects with an unsaved profile body. A blank
// password on a body carrying a stored id reuses the stored secret.
func (h *Handler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var p profile.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	p = normalizeProfile(p)
	if p.Password == "" && p.ID != "" {
		if stored, err := h.Profiles.Get(p.ID); err == nil {
			p.Password = stored.Password
		}
	}

	if err := h.Engine.TestConnection(r.Context(), p); err != nil {
		slog.Warn("Connection test failed", "db_type", p.Type, "host", p.Host, "error", err)
		writeEngineError(w, err)
		return
	}
	body := successBody("connection succeeded")
	body["db_type"] = p.Type
	writeJSON(w, http.StatusOK, body)
}

func normalizeProfile(p profile.Profile) profile.Profile {
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	if p.Type == "" {
		p.Type = "postgresql"
	}
	p.Host = strings.TrimSpace(p.Host)
	p.Port = profile.Port(strings.TrimSpace(string(p.Port)))
	p.User = strings.TrimSpace(p.User)
	p.Database = strings.TrimSpace(p.Database)
	return p
}

func writeProfileError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidProfile), errors.Is(err, profile.ErrNotFound):
		writeJSON(w, http.StatusOK, errorBody(err.Error()))
	default:
		slog.Error(msg, "error", err)
		writeJSON(w, http.StatusOK, errorBody("failed to save database profiles"))
	}
}
