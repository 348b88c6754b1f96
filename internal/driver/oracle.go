package driver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	go_ora "github.com/sijms/go-ora/v2"
)

// OracleAdapter serves Oracle and the Oracle-compatible shentong family.
// The database field of a profile is the service name.
type OracleAdapter struct{}

func (a *OracleAdapter) Protocol() string {
	return "oracle"
}

func (a *OracleAdapter) Families() []Family {
	return []Family{FamilyOracle, FamilyShentong}
}

func (a *OracleAdapter) Connect(ctx context.Context, target Target, timeouts Timeouts) (Conn, error) {
	return OpenSQL(ctx, "oracle", oracleURL(target, timeouts), timeouts.Connect)
}

// TimeoutDirective is empty: timeouts travel as connection options.
func (a *OracleAdapter) TimeoutDirective(Timeouts) []string {
	return nil
}

// ExplainForm tags the plan rows with a per-request statement id so the
// follow-up read and the cleanup only touch this request's rows.
func (a *OracleAdapter) ExplainForm(sql string) (Plan, error) {
	id := planStatementID()
	return Plan{
		Statement: fmt.Sprintf("EXPLAIN PLAN SET STATEMENT_ID = '%s' FOR %s", id, sql),
		Followup: fmt.Sprintf("SELECT ID, OPERATION, OPTIONS, OBJECT_NAME, OPTIMIZER, COST, CARDINALITY "+
			"FROM PLAN_TABLE WHERE STATEMENT_ID = '%s' ORDER BY ID", id),
		Cleanup: fmt.Sprintf("DELETE FROM PLAN_TABLE WHERE STATEMENT_ID = '%s'", id),
	}, nil
}

func oracleURL(t Target, timeouts Timeouts) string {
	opts := map[string]string{}
	if timeouts.Connect > 0 {
		opts["CONNECTION TIMEOUT"] = strconv.Itoa(ceilSeconds(timeouts.Connect))
	}
	if timeouts.Statement > 0 {
		opts["TIMEOUT"] = strconv.Itoa(ceilSeconds(timeouts.Statement))
	}
	return go_ora.BuildUrl(t.Host, t.Port, t.Database, t.User, t.Password, opts)
}

// planStatementID fits PLAN_TABLE.STATEMENT_ID (VARCHAR2(30)).
func planStatementID() string {
	return "SC" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:24])
}
