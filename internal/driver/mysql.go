package driver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLAdapter serves the MySQL-compatible families.
type MySQLAdapter struct{}

func (a *MySQLAdapter) Protocol() string {
	return "mysql"
}

func (a *MySQLAdapter) Families() []Family {
	return []Family{FamilyMySQL, FamilyTiDB, FamilyOceanBase, FamilyGreatDB}
}

func (a *MySQLAdapter) Connect(ctx context.Context, target Target, timeouts Timeouts) (Conn, error) {
	return OpenSQL(ctx, "mysql", mysqlDSN(target, timeouts.Connect), timeouts.Connect)
}

func (a *MySQLAdapter) TimeoutDirective(timeouts Timeouts) []string {
	if timeouts.Statement <= 0 {
		return nil
	}
	return []string{fmt.Sprintf("SET SESSION MAX_EXECUTION_TIME = %d", timeouts.Statement.Milliseconds())}
}

func (a *MySQLAdapter) ExplainForm(sql string) (Plan, error) {
	return Plan{Statement: "EXPLAIN FORMAT=JSON " + sql}, nil
}

func mysqlDSN(t Target, connect time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	cfg.DBName = t.Database
	cfg.Timeout = connect
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
