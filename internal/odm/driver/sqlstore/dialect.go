package sqlstore

import (
	"fmt"
	"regexp"
	"strings"
)

// dialect captures the SQL differences between the supported databases
type dialect struct {
	name      string
	numbered  bool
	seqColumn string
	lockFmt   string
}

var (
	sqliteDialect = dialect{
		name:      "sqlite3",
		seqColumn: "seq INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	postgresDialect = dialect{
		name:      "postgres",
		numbered:  true,
		seqColumn: "seq BIGSERIAL PRIMARY KEY",
		lockFmt:   "LOCK TABLE %s IN SHARE ROW EXCLUSIVE MODE",
	}
)

// dialectFor maps a database/sql driver name to a dialect
func dialectFor(driverName string) (dialect, error) {
	switch driverName {
	case "sqlite3", "sqlite":
		return sqliteDialect, nil
	case "postgres", "pgx", "postgresql":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driverName)
	}
}

// placeholder returns the n-th (1-based) bind parameter
func (d dialect) placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// placeholders returns count parameters starting at from, comma separated
func (d dialect) placeholders(from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent validates and quotes a table name
func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return `"` + name + `"`, nil
}
