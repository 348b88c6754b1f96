// Package profile persists the database connection profiles in
// db_config.json and keeps the single-default invariant on every write.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sql-console/internal/driver"
)

var (
	ErrNotFound       = errors.New("database profile not found")
	ErrNoProfiles     = errors.New("no database configured")
	ErrInvalidProfile = errors.New("invalid database profile")
)

// Port accepts both "5432" and 5432 in the config file and always writes a string.
type Port string

func (p *Port) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Port(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("port must be a string or a number: %w", err)
	}
	*p = Port(n.String())
	return nil
}

// Profile is one named connection configuration. Password holds the sealed
// form on disk and the clear form only in values returned by Get/Default.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Host      string `json:"host"`
	Port      Port   `json:"port"`
	User      string `json:"user"`
	Password  string `json:"password"`
	Database  string `json:"database"`
	SSLMode   string `json:"sslmode,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// Validate checks required fields, the family tag and the port.
func Validate(p Profile) error {
	var missing []string
	for field, value := range map[string]string{
		"name": p.Name, "type": p.Type, "host": p.Host, "port": string(p.Port),
		"user": p.User, "database": p.Database,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidProfile, strings.Join(sortedFields(missing), ", "))
	}
	if _, err := driver.ParseFamily(p.Type); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if _, err := p.PortNumber(); err != nil {
		return err
	}
	return nil
}

// PortNumber parses the port and checks its range.
func (p Profile) PortNumber() (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(p.Port)))
	if err != nil || n < 1 || n > 65535 {
		return 0, fmt.Errorf("%w: port must be a number between 1 and 65535", ErrInvalidProfile)
	}
	return n, nil
}

// Target converts a profile holding a clear secret into a driver target.
func (p Profile) Target() (driver.Target, error) {
	port, err := p.PortNumber()
	if err != nil {
		return driver.Target{}, err
	}
	return driver.Target{
		Host:     p.Host,
		Port:     port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
		SSLMode:  p.SSLMode,
	}, nil
}

// Redacted returns a copy safe to send to clients.
func (p Profile) Redacted() Profile {
	p.Password = ""
	return p
}

// fieldOrder keeps validation messages stable.
var fieldOrder = []string{"name", "type", "host", "port", "user", "database"}

func sortedFields(fields []string) []string {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	out := make([]string, 0, len(fields))
	for _, f := range fieldOrder {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}
