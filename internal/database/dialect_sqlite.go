package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLiteDialect implements Dialect for SQLite using the cgo driver
type SQLiteDialect struct {
	driver string
}

// NewSQLiteDialect creates a new SQLite dialect backed by mattn/go-sqlite3
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{driver: "sqlite3"}
}

// NewPureSQLiteDialect creates a SQLite dialect backed by the pure Go
// modernc.org/sqlite driver, for builds without cgo.
func NewPureSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{driver: "sqlite"}
}

func (d *SQLiteDialect) DriverName() string {
	return d.driver
}

// DSN appends the connection pragmas in each driver's syntax so that every
// pooled connection gets them, not just the first.
func (d *SQLiteDialect) DSN(config DialectConfig) string {
	if config.Path == "" || config.Path == ":memory:" || strings.Contains(config.Path, "?") {
		return config.Path
	}
	if d.driver == "sqlite" {
		return config.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return config.Path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	// SQLite uses ? placeholders, no rewrite needed
	return query
}

func (d *SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// In-memory databases live and die with their connection, so keep
	// exactly one open forever.
	if d.isMemory(db) {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
			return err
		}
	}

	return nil
}

func (d *SQLiteDialect) isMemory(db *sql.DB) bool {
	var file string
	var seq int
	var name string
	if err := db.QueryRow("PRAGMA database_list;").Scan(&seq, &name, &file); err != nil {
		return false
	}
	return file == ""
}

func (d *SQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLiteDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
}

func (d *SQLiteDialect) InsertIgnoreQuery(table string, columns []string) string {
	return insertPrefix("INSERT INTO", table, columns) + " ON CONFLICT DO NOTHING"
}

func (d *SQLiteDialect) UpsertQuery(table string, keyColumns, updateColumns []string) string {
	return onConflictUpsert(table, keyColumns, updateColumns)
}
