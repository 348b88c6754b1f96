package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sql-console/internal/config"
	"sql-console/internal/security"
)

type checkRequest struct {
	Password string `json:"password"`
}

type setRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type changeRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// HandleHasPassword reports whether the console is password protected.
func (h *Handler) HandleHasPassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"has_password": h.Settings.Current().HasPassword()})
}

// HandleCheckPassword unlocks the console and issues a session token.
func (h *Handler) HandleCheckPassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	client := clientIP(r)
	if !h.Limiter.Allow(client) {
		writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests, try again later"))
		return
	}
	if locked, until := h.Lockout.Locked(client); locked {
		body := errorBody(fmt.Sprintf("too many failed attempts, try again after %s", until.Format(time.TimeOnly)))
		body["locked_until"] = until
		writeJSON(w, http.StatusTooManyRequests, body)
		return
	}

	var req checkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settings := h.Settings.Current()
	if !settings.HasPassword() {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success", "message": "verified", "has_password": false, "session_token": "",
		})
		return
	}

	if err := security.CheckPassword(settings.PasswordHash, req.Password); err != nil {
		lockFor := time.Duration(settings.AccountLockoutMinutes) * time.Minute
		remaining := h.Lockout.Fail(client, settings.LoginFailuresLimit, lockFor)
		slog.Warn("App password check failed", "client", client, "remaining_attempts", remaining)
		body := errorBody(security.ErrPasswordMismatch.Error())
		body["remaining_attempts"] = remaining
		writeJSON(w, http.StatusOK, body)
		return
	}
	h.Lockout.Reset(client)

	body, ok := h.startSession(w, settings)
	if !ok {
		return
	}
	body["message"] = "verified"
	body["has_password"] = true
	writeJSON(w, http.StatusOK, body)
}

// HandleSetPassword sets the first app password. Once a password exists it
// can only be changed through HandleChangePassword.
func (h *Handler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if !h.Limiter.Allow(clientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests, try again later"))
		return
	}
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settings := h.Settings.Current()
	if settings.HasPassword() {
		writeJSON(w, http.StatusConflict, errorBody("a password is already set; change it instead"))
		return
	}
	if req.Password != req.ConfirmPassword {
		writeJSON(w, http.StatusOK, errorBody("password and confirmation do not match"))
		return
	}
	h.storePassword(w, req.Password, settings, "password set")
}

// HandleChangePassword replaces the app password after checking the old one.
// Sessions issued under the old password stop verifying.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req changeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NewPassword != req.ConfirmNewPassword {
		writeJSON(w, http.StatusOK, errorBody("new password and confirmation do not match"))
		return
	}
	settings := h.Settings.Current()
	if settings.HasPassword() {
		if err := security.CheckPassword(settings.PasswordHash, req.OldPassword); err != nil {
			writeJSON(w, http.StatusOK, errorBody("old password is incorrect"))
			return
		}
	}
	h.storePassword(w, req.NewPassword, settings, "password changed")
}

func (h *Handler) storePassword(w http.ResponseWriter, password string, settings config.Settings, msg string) {
	if err := security.CheckStrength(password, settings.PasswordStrengthRequired); err != nil {
		writeJSON(w, http.StatusOK, errorBody(err.Error()))
		return
	}
	hash, err := security.HashPassword(password)
	if err == nil {
		err = h.Settings.SetPasswordHash(hash)
	}
	if err != nil {
		slog.Error("Store app password failed", "error", err)
		writeJSON(w, http.StatusOK, errorBody("failed to store password"))
		return
	}
	slog.Info("App password updated")

	body, ok := h.startSession(w, h.Settings.Current())
	if !ok {
		return
	}
	body["message"] = msg
	writeJSON(w, http.StatusOK, body)
}

// startSession issues a token for the current password and sets the cookie.
// On failure it has already written the response.
func (h *Handler) startSession(w http.ResponseWriter, settings config.Settings) (map[string]any, bool) {
	ttl := time.Duration(settings.AutoLockTimeoutMinutes) * time.Minute
	token, expires, err := h.Sessions.Issue(settings.PasswordHash, ttl)
	if err != nil {
		slog.Error("Issue session token failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to start session"))
		return nil, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return map[string]any{
		"status":        "success",
		"session_token": token,
		"expires_at":    expires,
	}, true
}

// HandleGetConfig returns the settings with the password hash blanked.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "config": redact(h.Settings.Current())})
}

// HandleSaveConfig applies a partial settings update. The password is not
// changed here.
func (h *Handler) HandleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var values map[string]any
	if !decodeJSON(w, r, &values) {
		return
	}
	if len(values) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing configuration data"))
		return
	}

	next, replaced, err := h.Settings.Patch(values)
	if err != nil {
		slog.Error("Save settings failed", "error", err)
		writeJSON(w, http.StatusOK, errorBody("failed to save configuration"))
		return
	}
	if h.OnSettings != nil {
		h.OnSettings(next)
	}
	slog.Info("Settings saved", "replaced", replaced)

	body := successBody("configuration saved")
	body["config"] = redact(next)
	body["replaced"] = nonNil(replaced)
	writeJSON(w, http.StatusOK, body)
}

func redact(s config.Settings) config.Settings {
	s.PasswordHash = ""
	return s
}
