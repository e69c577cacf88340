package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	crmsync "github.com/goliatone/go-crmsync"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems(nil)
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesDialects(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		if label != SourceLabel {
			t.Fatalf("expected source label %q, got %q", SourceLabel, label)
		}
		calls = append(calls, dialect)
		return nil
	}, WithDialects(" SQLite ", DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(reg.Schemas) != 1 || reg.Schemas[0].Path != "data/sql/migrations/sqlite" {
		t.Fatalf("expected sqlite schema in registration, got %#v", reg.Schemas)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_DefaultsToBothDialects(t *testing.T) {
	var calls []string
	if _, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if strings.Join(calls, ",") != "postgres,sqlite" {
		t.Fatalf("expected postgres then sqlite, got %v", calls)
	}
}

func TestRegister_RejectsUnknownDialect(t *testing.T) {
	called := false
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		called = true
		return nil
	}, WithDialects("mysql"))
	if err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Fatalf("expected unsupported dialect error, got %v", err)
	}
	if called {
		t.Fatalf("expected no registration for unsupported dialect")
	}
}

func TestRegister_RejectsIncompleteSchema(t *testing.T) {
	source := completeSchemaFS(t)
	delete(source, "data/sql/migrations/sqlite/00003_crmsync_webhook_logs.down.sql")

	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		t.Fatalf("expected no registration for an incomplete schema")
		return nil
	}, WithSource(source))
	if err == nil || !strings.Contains(err.Error(), "00003_crmsync_webhook_logs.down.sql") {
		t.Fatalf("expected missing down file error, got %v", err)
	}
}

func TestVerify_ChecksTablesAndUnknownFiles(t *testing.T) {
	source := completeSchemaFS(t)
	postgres, err := fs.Sub(source, "data/sql/migrations")
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := Verify(DialectPostgres, postgres); err != nil {
		t.Fatalf("expected complete schema to verify: %v", err)
	}

	source["data/sql/migrations/00004_extra.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	if err := Verify(DialectPostgres, postgres); err == nil || !strings.Contains(err.Error(), "00004_extra.up.sql") {
		t.Fatalf("expected unknown migration error, got %v", err)
	}
	delete(source, "data/sql/migrations/00004_extra.up.sql")

	source["data/sql/migrations/00002_crmsync_gateway_state.up.sql"] = &fstest.MapFile{
		Data: []byte("CREATE TABLE IF NOT EXISTS crm_api_keys (id INTEGER);"),
	}
	if err := Verify(DialectPostgres, postgres); err == nil || !strings.Contains(err.Error(), "crm_rate_windows") {
		t.Fatalf("expected missing table error, got %v", err)
	}
}

func completeSchemaFS(t *testing.T) fstest.MapFS {
	t.Helper()
	source := fstest.MapFS{}
	err := fs.WalkDir(crmsync.GetMigrationsFS(), "data/sql/migrations", func(name string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		content, readErr := fs.ReadFile(crmsync.GetMigrationsFS(), name)
		if readErr != nil {
			return readErr
		}
		source[name] = &fstest.MapFile{Data: content}
		return nil
	})
	if err != nil {
		t.Fatalf("copy embedded schema: %v", err)
	}
	return source
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := crmsync.GetMigrationsFS()
	names := []string{
		"00001_crmsync_contacts",
		"00002_crmsync_gateway_state",
		"00003_crmsync_webhook_logs",
	}
	for _, name := range names {
		for _, dir := range []string{"data/sql/migrations", "data/sql/migrations/sqlite"} {
			for _, suffix := range []string{".up.sql", ".down.sql"} {
				migrationPath := dir + "/" + name + suffix
				content, err := fs.ReadFile(root, migrationPath)
				if err != nil {
					t.Fatalf("read migration %s: %v", migrationPath, err)
				}
				if strings.TrimSpace(string(content)) == "" {
					t.Fatalf("expected migration %s to have SQL content", migrationPath)
				}
			}
		}
	}
}

func TestSQLiteContactsMigration_EnforcesIdentityUniqueness(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-contacts-uniqueness?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	sqliteMigrations, err := fs.Sub(crmsync.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_crmsync_contacts.up.sql"); err != nil {
		t.Fatalf("apply contacts migration: %v", err)
	}

	insert := `INSERT INTO crm_contacts (email, phone_digits) VALUES (?, ?)`
	if _, err := db.ExecContext(ctx, insert, "a@x.com", "15551234567"); err != nil {
		t.Fatalf("insert first contact: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "a@x.com", nil); err == nil {
		t.Fatalf("expected duplicate email to be rejected")
	}
	if _, err := db.ExecContext(ctx, insert, "b@x.com", "15551234567"); err == nil {
		t.Fatalf("expected duplicate phone digits to be rejected")
	}
	if _, err := db.ExecContext(ctx, insert, "c@x.com", nil); err != nil {
		t.Fatalf("contacts without phone must coexist: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "d@x.com", nil); err != nil {
		t.Fatalf("contacts without phone must coexist: %v", err)
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_crmsync_contacts.down.sql"); err != nil {
		t.Fatalf("apply contacts migration down: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'crm_contacts'`,
	).Scan(&count); err != nil {
		t.Fatalf("inspect sqlite master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected crm_contacts to be dropped on rollback")
	}
}

func TestSQLiteRateWindowsMigration_AtomicUpsert(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-rate-windows?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	sqliteMigrations, err := fs.Sub(crmsync.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00002_crmsync_gateway_state.up.sql"); err != nil {
		t.Fatalf("apply gateway state migration: %v", err)
	}

	upsert := `INSERT INTO crm_rate_windows (bucket_key, window_start, hits) VALUES (?, ?, 1)
		ON CONFLICT (bucket_key, window_start) DO UPDATE SET hits = crm_rate_windows.hits + 1
		WHERE crm_rate_windows.hits < ?
		RETURNING hits`
	for want := 1; want <= 2; want++ {
		var hits int
		if err := db.QueryRowContext(ctx, upsert, "rl_a", 1000, 2).Scan(&hits); err != nil {
			t.Fatalf("upsert %d: %v", want, err)
		}
		if hits != want {
			t.Fatalf("expected hits=%d, got %d", want, hits)
		}
	}
	var hits int
	if err := db.QueryRowContext(ctx, upsert, "rl_a", 1000, 2).Scan(&hits); err != sql.ErrNoRows {
		t.Fatalf("expected exhausted window to return no row, got hits=%d err=%v", hits, err)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
