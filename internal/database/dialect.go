package database

import (
	"database/sql"
	"regexp"
	"strconv"
	"strings"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// InsertIgnoreQuery returns an INSERT that silently skips rows whose
	// primary or unique key already exists.
	InsertIgnoreQuery(table string, columns []string) string

	// UpsertQuery returns an INSERT that overwrites updateColumns when a row
	// with the same key already exists.
	UpsertQuery(table string, keyColumns, updateColumns []string) string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// insertPrefix renders "INSERT INTO table (a, b) VALUES (?, ?)".
func insertPrefix(verb, table string, columns []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return verb + " " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + marks + ")"
}

// onConflictUpsert is shared by SQLite and PostgreSQL, which both accept the
// ON CONFLICT ... DO UPDATE form with the excluded pseudo-table.
func onConflictUpsert(table string, keyColumns, updateColumns []string) string {
	all := append(append([]string{}, keyColumns...), updateColumns...)
	sets := make([]string, len(updateColumns))
	for i, c := range updateColumns {
		sets[i] = c + " = excluded." + c
	}
	return insertPrefix("INSERT INTO", table, all) +
		" ON CONFLICT (" + strings.Join(keyColumns, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// splitStatements breaks a migration file into individual statements so that
// drivers without multi-statement support can run it.
func splitStatements(content string) []string {
	var stmts []string
	for _, part := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
