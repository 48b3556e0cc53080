package database

import (
	"reflect"
	"testing"
)

func TestDialects(t *testing.T) {
	tests := []struct {
		name      string
		dialect   Dialect
		driver    string
		subdir    string
		dsnConfig DialectConfig
		wantDSN   string
	}{
		{name: "sqlite", dialect: NewSQLiteDialect(), driver: "sqlite3", subdir: "sqlite", dsnConfig: DialectConfig{Path: "data/laut.db"}, wantDSN: "data/laut.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
		{name: "sqlite pure", dialect: NewPureSQLiteDialect(), driver: "sqlite", subdir: "sqlite", dsnConfig: DialectConfig{Path: ":memory:"}, wantDSN: ":memory:"},
		{name: "postgres", dialect: NewPostgresDialect(), driver: "postgres", subdir: "postgres", dsnConfig: DialectConfig{URL: "postgres://u@h/db"}, wantDSN: "postgres://u@h/db"},
		{name: "mysql", dialect: NewMySQLDialect(), driver: "mysql", subdir: "mysql", dsnConfig: DialectConfig{URL: "u:p@tcp(h:3306)/db"}, wantDSN: "u:p@tcp(h:3306)/db?parseTime=true"},
		{name: "mysql with params", dialect: NewMySQLDialect(), driver: "mysql", subdir: "mysql", dsnConfig: DialectConfig{URL: "u@/db?charset=utf8mb4"}, wantDSN: "u@/db?charset=utf8mb4&parseTime=true"},
		{name: "mysql parseTime kept", dialect: NewMySQLDialect(), driver: "mysql", subdir: "mysql", dsnConfig: DialectConfig{URL: "u@/db?parseTime=false"}, wantDSN: "u@/db?parseTime=false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %v, want %v", got, tt.driver)
			}
			if got := tt.dialect.MigrationsSubdir(); got != tt.subdir {
				t.Errorf("MigrationsSubdir() = %v, want %v", got, tt.subdir)
			}
			if got := tt.dialect.DSN(tt.dsnConfig); got != tt.wantDSN {
				t.Errorf("DSN() = %v, want %v", got, tt.wantDSN)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "sqlite3"},
		{in: "SQLite", want: "sqlite3"},
		{in: "sqlite-pure", want: "sqlite"},
		{in: "postgresql", want: "postgres"},
		{in: "mysql", want: "mysql"},
		{in: "oracle", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := DialectFor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DialectFor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && d.DriverName() != tt.want {
				t.Errorf("DialectFor(%q) driver = %v, want %v", tt.in, d.DriverName(), tt.want)
			}
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM mastery_records WHERE user_id = ?",
			expected: "SELECT * FROM mastery_records WHERE user_id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM mastery_records WHERE user_id = ?",
			expected: "SELECT * FROM mastery_records WHERE user_id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "UPDATE mastery_records SET version = ? WHERE user_id = ? AND sound_id = ?",
			expected: "UPDATE mastery_records SET version = $1 WHERE user_id = $2 AND sound_id = $3",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE exercises SET benchmark_audio_url = ? WHERE sound_id = ?",
			expected: "UPDATE exercises SET benchmark_audio_url = ? WHERE sound_id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestInsertIgnoreQuery(t *testing.T) {
	cols := []string{"user_id", "sound_id"}
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{dialect: NewSQLiteDialect(), want: "INSERT INTO mastery_records (user_id, sound_id) VALUES (?, ?) ON CONFLICT DO NOTHING"},
		{dialect: NewPostgresDialect(), want: "INSERT INTO mastery_records (user_id, sound_id) VALUES (?, ?) ON CONFLICT DO NOTHING"},
		{dialect: NewMySQLDialect(), want: "INSERT IGNORE INTO mastery_records (user_id, sound_id) VALUES (?, ?)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.MigrationsSubdir(), func(t *testing.T) {
			if got := tt.dialect.InsertIgnoreQuery("mastery_records", cols); got != tt.want {
				t.Errorf("InsertIgnoreQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpsertQuery(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{dialect: NewSQLiteDialect(), want: "INSERT INTO sound_modules (sound_id, name, phoneme_ipa) VALUES (?, ?, ?) ON CONFLICT (sound_id) DO UPDATE SET name = excluded.name, phoneme_ipa = excluded.phoneme_ipa"},
		{dialect: NewMySQLDialect(), want: "INSERT INTO sound_modules (sound_id, name, phoneme_ipa) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), phoneme_ipa = VALUES(phoneme_ipa)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.MigrationsSubdir(), func(t *testing.T) {
			got := tt.dialect.UpsertQuery("sound_modules", []string{"sound_id"}, []string{"name", "phoneme_ipa"})
			if got != tt.want {
				t.Errorf("UpsertQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (id TEXT);

-- second
CREATE INDEX i ON a(id);
`
	want := []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX i ON a(id)"}
	if got := splitStatements(content); !reflect.DeepEqual(got, want) {
		t.Errorf("splitStatements() = %q, want %q", got, want)
	}
}
