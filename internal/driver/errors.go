package driver

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/sijms/go-ora/v2/network"
)

// Category is a driver-independent reading of a statement failure.
type Category int

const (
	CategoryUnknown Category = iota
	CategorySyntax
	CategoryPermission
	CategoryTimeout
)

// Categorize inspects the structured error types of the linked drivers.
// CategoryUnknown means the caller should fall back to the error text.
func Categorize(err error) Category {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42601":
			return CategorySyntax
		case pqErr.Code == "42501":
			return CategoryPermission
		case pqErr.Code == "57014":
			return CategoryTimeout
		}
		return CategoryUnknown
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1064, 1149:
			return CategorySyntax
		case 1044, 1045, 1142, 1143, 1227, 1370:
			return CategoryPermission
		case 3024, 1317:
			return CategoryTimeout
		}
		return CategoryUnknown
	}

	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		switch oraErr.ErrCode {
		case 900, 905, 906, 907, 909, 911, 933, 936:
			return CategorySyntax
		case 1031, 1045, 1749:
			return CategoryPermission
		case 1013:
			return CategoryTimeout
		}
	}
	return CategoryUnknown
}
