package driver

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// The dm and yashandb vendor drivers are not published as Go modules. A
// binary that needs them links the vendor package, which registers itself
// with database/sql under these names. Without it, Connect fails with the
// database/sql "unknown driver" error.
const (
	DMDriverName     = "dm"
	YashanDriverName = "yasdb"
)

// DMAdapter serves the dm family through a database/sql driver name.
type DMAdapter struct {
	DriverName string
}

func NewDMAdapter() *DMAdapter {
	return &DMAdapter{DriverName: DMDriverName}
}

func (a *DMAdapter) Protocol() string {
	return "dm"
}

func (a *DMAdapter) Families() []Family {
	return []Family{FamilyDM}
}

func (a *DMAdapter) Connect(ctx context.Context, target Target, timeouts Timeouts) (Conn, error) {
	return OpenSQL(ctx, a.DriverName, dmDSN(target, timeouts), timeouts.Connect)
}

// TimeoutDirective is empty: dm takes its timeouts as connection options.
func (a *DMAdapter) TimeoutDirective(Timeouts) []string {
	return nil
}

func (a *DMAdapter) ExplainForm(sql string) (Plan, error) {
	return Plan{Statement: "EXPLAIN " + sql}, nil
}

func dmDSN(t Target, timeouts Timeouts) string {
	q := url.Values{}
	if t.Database != "" {
		q.Set("schema", t.Database)
	}
	if timeouts.Connect > 0 {
		q.Set("connectTimeout", strconv.FormatInt(timeouts.Connect.Milliseconds(), 10))
	}
	if timeouts.Statement > 0 {
		q.Set("socketTimeout", strconv.FormatInt(timeouts.Statement.Milliseconds(), 10))
	}
	u := url.URL{
		Scheme:   "dm",
		User:     url.UserPassword(t.User, t.Password),
		Host:     net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// YashanAdapter serves yashandb. It has no settable statement timeout and no
// plan path.
type YashanAdapter struct {
	DriverName string
}

func NewYashanAdapter() *YashanAdapter {
	return &YashanAdapter{DriverName: YashanDriverName}
}

func (a *YashanAdapter) Protocol() string {
	return "yashandb"
}

func (a *YashanAdapter) Families() []Family {
	return []Family{FamilyYashanDB}
}

func (a *YashanAdapter) Connect(ctx context.Context, target Target, timeouts Timeouts) (Conn, error) {
	dsn := fmt.Sprintf("%s/%s@%s", target.User, target.Password,
		net.JoinHostPort(target.Host, strconv.Itoa(target.Port)))
	return OpenSQL(ctx, a.DriverName, dsn, timeouts.Connect)
}

func (a *YashanAdapter) TimeoutDirective(Timeouts) []string {
	return nil
}

func (a *YashanAdapter) ExplainForm(string) (Plan, error) {
	return Plan{}, ErrExplainUnsupported
}
