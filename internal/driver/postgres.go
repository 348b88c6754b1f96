package driver

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

// PostgresAdapter serves every PostgreSQL-compatible family over lib/pq.
type PostgresAdapter struct{}

func (a *PostgresAdapter) Protocol() string {
	return "postgres"
}

func (a *PostgresAdapter) Families() []Family {
	return []Family{
		FamilyPostgreSQL, FamilyHighGo, FamilyGauss, FamilyUXDB,
		FamilyVastbase, FamilyGBase, FamilyVanward, FamilyKingbase,
	}
}

func (a *PostgresAdapter) Connect(ctx context.Context, target Target, timeouts Timeouts) (Conn, error) {
	return OpenSQL(ctx, "postgres", postgresDSN(target, timeouts.Connect), timeouts.Connect)
}

func (a *PostgresAdapter) TimeoutDirective(timeouts Timeouts) []string {
	if timeouts.Statement <= 0 {
		return nil
	}
	return []string{fmt.Sprintf("SET statement_timeout = %d", timeouts.Statement.Milliseconds())}
}

func (a *PostgresAdapter) ExplainForm(sql string) (Plan, error) {
	return Plan{Statement: "EXPLAIN ANALYZE " + sql}, nil
}

func postgresDSN(t Target, connect time.Duration) string {
	sslMode := t.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if connect > 0 {
		q.Set("connect_timeout", strconv.Itoa(ceilSeconds(connect)))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(t.User, t.Password),
		Host:     net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:     "/" + t.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ceilSeconds rounds up so sub-second timeouts never become "no timeout".
func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
