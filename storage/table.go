package storage

import (
	"regexp"
	"strings"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{2,62}$`)

// TableNames validates table names: 3 to 63 alphanumeric characters,
// starting with a letter. "tables" is reserved in any case.
type TableNames struct{}

func (TableNames) IsValid(name string) bool {
	return tableNamePattern.MatchString(name) && !strings.EqualFold(name, "tables")
}
