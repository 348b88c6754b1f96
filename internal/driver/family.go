package driver

import (
	"fmt"
	"strings"
)

// Family is the closed set of database type tags a profile may carry.
type Family string

const (
	FamilyPostgreSQL Family = "postgresql"
	FamilyMySQL      Family = "mysql"
	FamilyOracle     Family = "oracle"
	FamilyHighGo     Family = "highgo"
	FamilyGauss      Family = "gauss"
	FamilyUXDB       Family = "uxdb"
	FamilyVastbase   Family = "vastbase"
	FamilyGBase      Family = "gbase"
	FamilyVanward    Family = "vanward"
	FamilyKingbase   Family = "kingbase"
	FamilyTiDB       Family = "tidb"
	FamilyOceanBase  Family = "oceanbase"
	FamilyGreatDB    Family = "greatdb"
	FamilyShentong   Family = "shentong"
	FamilyDM         Family = "dm"
	FamilyYashanDB   Family = "yashandb"
)

// Families is every supported tag in display order.
var Families = []Family{
	FamilyPostgreSQL, FamilyMySQL, FamilyOracle, FamilyHighGo, FamilyGauss, FamilyUXDB,
	FamilyVastbase, FamilyGBase, FamilyVanward, FamilyKingbase, FamilyTiDB, FamilyOceanBase,
	FamilyGreatDB, FamilyShentong, FamilyDM, FamilyYashanDB,
}

// UnsupportedTypeError names the requested tag and the supported set.
type UnsupportedTypeError struct {
	Tag       string
	Supported []Family
}

func (e *UnsupportedTypeError) Error() string {
	names := make([]string, len(e.Supported))
	for i, f := range e.Supported {
		names[i] = string(f)
	}
	return fmt.Sprintf("unsupported database type: %s (supported: %s)", e.Tag, strings.Join(names, ", "))
}

// ParseFamily normalizes a tag and checks it against the closed set.
func ParseFamily(tag string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(tag)))
	for _, known := range Families {
		if f == known {
			return f, nil
		}
	}
	return "", &UnsupportedTypeError{Tag: tag, Supported: Families}
}
