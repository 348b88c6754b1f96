package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"sql-console/internal/driver"
	"sql-console/internal/secret"
	"sql-console/internal/security"
)

// Settings is the application-wide tunable configuration kept in app_config.json.
type Settings struct {
	Title                    string `json:"app_title"`
	AutoLockTimeoutMinutes   int    `json:"app_auto_lock_timeout_minutes"`
	AutoLockReminderMinutes  int    `json:"app_auto_lock_reminder_minutes"`
	StatementTimeout         int    `json:"db_statement_timeout"`
	ConnectTimeout           int    `json:"db_connect_timeout"`
	PasswordHash             string `json:"app_password"`
	ResultCacheTime          int    `json:"app_result_cache_time"`
	MaxResultSize            int    `json:"app_max_result_size"`
	LoginFailuresLimit       int    `json:"app_login_failures_limit"`
	AccountLockoutMinutes    int    `json:"app_account_lockout_minutes"`
	PasswordStrengthRequired bool   `json:"app_password_strength_required"`
	LogLevel                 string `json:"app_log_level"`
	AuditLoggingEnabled      bool   `json:"app_audit_logging_enabled"`
	PageSize                 int    `json:"app_page_size"`
	ConcurrentQueries        int    `json:"app_concurrent_queries"`

	// UI preferences, stored and returned untouched.
	ThemeColor       string `json:"app_theme_color"`
	Language         string `json:"app_language"`
	AutoSaveInterval int    `json:"app_auto_save_interval"`
}

// DefaultSettings returns the values used for missing or invalid keys.
func DefaultSettings() Settings {
	return Settings{
		Title:                   "SQL Console",
		AutoLockTimeoutMinutes:  30,
		AutoLockReminderMinutes: 25,
		StatementTimeout:        30,
		ConnectTimeout:          10,
		ResultCacheTime:         3600,
		MaxResultSize:           10000,
		LoginFailuresLimit:      5,
		AccountLockoutMinutes:   30,
		LogLevel:                "INFO",
		AuditLoggingEnabled:     true,
		PageSize:                50,
		ConcurrentQueries:       5,
		ThemeColor:              "default",
		Language:                "zh-CN",
		AutoSaveInterval:        300,
	}
}

func (s Settings) toMap() map[string]any {
	return map[string]any{
		"app_title":                      s.Title,
		"app_auto_lock_timeout_minutes":  s.AutoLockTimeoutMinutes,
		"app_auto_lock_reminder_minutes": s.AutoLockReminderMinutes,
		"db_statement_timeout":           s.StatementTimeout,
		"db_connect_timeout":             s.ConnectTimeout,
		"app_password":                   s.PasswordHash,
		"app_result_cache_time":          s.ResultCacheTime,
		"app_max_result_size":            s.MaxResultSize,
		"app_login_failures_limit":       s.LoginFailuresLimit,
		"app_account_lockout_minutes":    s.AccountLockoutMinutes,
		"app_password_strength_required": s.PasswordStrengthRequired,
		"app_log_level":                  s.LogLevel,
		"app_audit_logging_enabled":      s.AuditLoggingEnabled,
		"app_page_size":                  s.PageSize,
		"app_concurrent_queries":         s.ConcurrentQueries,
		"app_theme_color":                s.ThemeColor,
		"app_language":                   s.Language,
		"app_auto_save_interval":         s.AutoSaveInterval,
	}
}

func settingsFromViper(v *viper.Viper) Settings {
	return Settings{
		Title:                    v.GetString("app_title"),
		AutoLockTimeoutMinutes:   v.GetInt("app_auto_lock_timeout_minutes"),
		AutoLockReminderMinutes:  v.GetInt("app_auto_lock_reminder_minutes"),
		StatementTimeout:         v.GetInt("db_statement_timeout"),
		ConnectTimeout:           v.GetInt("db_connect_timeout"),
		PasswordHash:             v.GetString("app_password"),
		ResultCacheTime:          v.GetInt("app_result_cache_time"),
		MaxResultSize:            v.GetInt("app_max_result_size"),
		LoginFailuresLimit:       v.GetInt("app_login_failures_limit"),
		AccountLockoutMinutes:    v.GetInt("app_account_lockout_minutes"),
		PasswordStrengthRequired: v.GetBool("app_password_strength_required"),
		LogLevel:                 v.GetString("app_log_level"),
		AuditLoggingEnabled:      v.GetBool("app_audit_logging_enabled"),
		PageSize:                 v.GetInt("app_page_size"),
		ConcurrentQueries:        v.GetInt("app_concurrent_queries"),
		ThemeColor:               v.GetString("app_theme_color"),
		Language:                 v.GetString("app_language"),
		AutoSaveInterval:         v.GetInt("app_auto_save_interval"),
	}
}

// Upper bounds for values converted to time.Duration.
const (
	maxTimeoutSeconds = 24 * 60 * 60
	maxCacheSeconds   = 7 * 24 * 60 * 60
)

// sanitize replaces out-of-range values with defaults and reports which
// keys were replaced.
func (s *Settings) sanitize() []string {
	d := DefaultSettings()
	var fixed []string
	fix := func(key string, bad bool, apply func()) {
		if bad {
			apply()
			fixed = append(fixed, key)
		}
	}

	fix("app_auto_lock_timeout_minutes", s.AutoLockTimeoutMinutes < 1 || s.AutoLockTimeoutMinutes > 1440,
		func() { s.AutoLockTimeoutMinutes = d.AutoLockTimeoutMinutes })
	// A one minute lock leaves no room for a reminder before it.
	fix("app_auto_lock_timeout_minutes", s.AutoLockTimeoutMinutes == 1,
		func() { s.AutoLockTimeoutMinutes = 2 })
	fix("app_auto_lock_reminder_minutes", s.AutoLockReminderMinutes <= 0 || s.AutoLockReminderMinutes >= s.AutoLockTimeoutMinutes,
		func() { s.AutoLockReminderMinutes = min(d.AutoLockReminderMinutes, s.AutoLockTimeoutMinutes-1) })
	fix("db_statement_timeout", s.StatementTimeout <= 0, func() { s.StatementTimeout = d.StatementTimeout })
	fix("db_statement_timeout", s.StatementTimeout > maxTimeoutSeconds, func() { s.StatementTimeout = maxTimeoutSeconds })
	fix("db_connect_timeout", s.ConnectTimeout <= 0, func() { s.ConnectTimeout = d.ConnectTimeout })
	fix("db_connect_timeout", s.ConnectTimeout > maxTimeoutSeconds, func() { s.ConnectTimeout = maxTimeoutSeconds })
	fix("app_result_cache_time", s.ResultCacheTime <= 0, func() { s.ResultCacheTime = d.ResultCacheTime })
	fix("app_result_cache_time", s.ResultCacheTime > maxCacheSeconds, func() { s.ResultCacheTime = maxCacheSeconds })
	fix("app_max_result_size", s.MaxResultSize <= 0, func() { s.MaxResultSize = d.MaxResultSize })
	fix("app_login_failures_limit", s.LoginFailuresLimit <= 0, func() { s.LoginFailuresLimit = d.LoginFailuresLimit })
	fix("app_account_lockout_minutes", s.AccountLockoutMinutes <= 0, func() { s.AccountLockoutMinutes = d.AccountLockoutMinutes })
	fix("app_account_lockout_minutes", s.AccountLockoutMinutes > 1440, func() { s.AccountLockoutMinutes = 1440 })
	fix("app_page_size", s.PageSize < 1 || s.PageSize > 1000, func() { s.PageSize = d.PageSize })
	fix("app_concurrent_queries", s.ConcurrentQueries <= 0, func() { s.ConcurrentQueries = d.ConcurrentQueries })
	fix("app_auto_save_interval", s.AutoSaveInterval <= 0, func() { s.AutoSaveInterval = d.AutoSaveInterval })

	level := strings.ToUpper(strings.TrimSpace(s.LogLevel))
	switch level {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
		s.LogLevel = level
	default:
		fix("app_log_level", true, func() { s.LogLevel = d.LogLevel })
	}
	if strings.TrimSpace(s.Title) == "" {
		s.Title = d.Title
	}
	return fixed
}

// SlogLevel maps the stored level name to a slog level.
func (s Settings) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasPassword reports whether the access gate is enabled.
func (s Settings) HasPassword() bool {
	return s.PasswordHash != ""
}

// SettingsStore serializes access to the settings file. Every read returns a
// copy, and every write is validated and persisted before it becomes visible.
type SettingsStore struct {
	mu      sync.RWMutex
	path    string
	v       *viper.Viper
	current Settings
}

// LoadSettings reads path, falling back to defaults when the file is missing.
func LoadSettings(path string) (*SettingsStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	for key, value := range DefaultSettings().toMap() {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
		slog.Info("Settings file not found, using defaults", "path", path)
	}

	s := settingsFromViper(v)
	if fixed := s.sanitize(); len(fixed) > 0 {
		slog.Warn("Invalid settings replaced with defaults", "keys", fixed)
	}

	hash, upgraded, err := upgradePassword(s.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("upgrade app password in %s: %w", path, err)
	}
	s.PasswordHash = hash
	v.Set("app_password", hash)
	store := &SettingsStore{path: path, v: v, current: s}
	if upgraded {
		if err := store.SetPasswordHash(hash); err != nil {
			slog.Warn("Upgraded app password kept in memory only", "error", err)
		} else {
			slog.Info("App password upgraded to bcrypt", "path", path)
		}
	}
	return store, nil
}

// upgradePassword turns a password stored by the previous console, either
// "enc:" obfuscated or plain text, into a bcrypt hash.
func upgradePassword(stored string) (string, bool, error) {
	if stored == "" || strings.HasPrefix(stored, "$2") {
		return stored, false, nil
	}
	plain, err := secret.OpenLegacy(stored)
	if err != nil {
		return "", false, err
	}
	if plain == "" {
		return "", true, nil
	}
	hash, err := security.HashPassword(plain)
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// Current returns a copy of the active settings.
func (s *SettingsStore) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Patch applies a partial update from a client. Unknown keys and the
// password hash are ignored; invalid values fall back to defaults.
func (s *SettingsStore) Patch(values map[string]any) (Settings, []string, error) {
	known := DefaultSettings().toMap()
	return s.update(func(v *viper.Viper) {
		for key, value := range values {
			if _, ok := known[key]; ok && key != "app_password" {
				v.Set(key, value)
			}
		}
	})
}

// SetPasswordHash stores a new hash; an empty hash disables the gate.
func (s *SettingsStore) SetPasswordHash(hash string) error {
	_, _, err := s.update(func(v *viper.Viper) {
		v.Set("app_password", hash)
	})
	return err
}

func (s *SettingsStore) update(apply func(v *viper.Viper)) (Settings, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apply(s.v)
	next := settingsFromViper(s.v)
	fixed := next.sanitize()
	for key, value := range next.toMap() {
		s.v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return s.current, nil, fmt.Errorf("create settings directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		// Keep the in-memory view consistent with what is on disk.
		for key, value := range s.current.toMap() {
			s.v.Set(key, value)
		}
		return s.current, nil, fmt.Errorf("write settings %s: %w", s.path, err)
	}
	s.current = next
	return next, fixed, nil
}

// Timeouts is the driver timeout configuration for the next connection.
func (s *SettingsStore) Timeouts() driver.Timeouts {
	c := s.Current()
	return driver.Timeouts{
		Statement: time.Duration(c.StatementTimeout) * time.Second,
		Connect:   time.Duration(c.ConnectTimeout) * time.Second,
	}
}

// MaxResultRows is the fetch cap for one result set.
func (s *SettingsStore) MaxResultRows() int {
	return s.Current().MaxResultSize
}

// ResultTTL is how long a stored result stays retrievable.
func (s *SettingsStore) ResultTTL() time.Duration {
	return time.Duration(s.Current().ResultCacheTime) * time.Second
}
