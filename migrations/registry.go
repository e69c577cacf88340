// Package migrations resolves the embedded crmsync schema for each SQL dialect
// and checks it is complete before a migration runner sees it.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	crmsync "github.com/goliatone/go-crmsync"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	SourceLabel = "go-crmsync"

	schemaRoot = "data/sql/migrations"
)

// Step is one migration pair and the tables its up file creates and its down
// file drops.
type Step struct {
	Name   string
	Tables []string
}

// Schema is the full crmsync migration set, in apply order. Both dialects
// ship the same steps.
var Schema = []Step{
	{
		Name:   "00001_crmsync_contacts",
		Tables: []string{"crm_contacts", "crm_tags", "crm_contact_tags", "crm_notes", "crm_activities"},
	},
	{
		Name:   "00002_crmsync_gateway_state",
		Tables: []string{"crm_api_keys", "crm_rate_windows", "crm_response_cache"},
	},
	{
		Name:   "00003_crmsync_webhook_logs",
		Tables: []string{"crm_webhook_logs"},
	},
}

type DialectSchema struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	Dialects []string
	Schemas  []DialectSchema
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type registerOptions struct {
	dialects []string
	source   fs.FS
}

type Option func(*registerOptions)

// WithDialects limits registration to the named dialects. Unknown names fail
// Register.
func WithDialects(dialects ...string) Option {
	return func(o *registerOptions) {
		next := make([]string, 0, len(dialects))
		for _, dialect := range dialects {
			trimmed := strings.TrimSpace(strings.ToLower(dialect))
			if trimmed != "" && !slices.Contains(next, trimmed) {
				next = append(next, trimmed)
			}
		}
		if len(next) > 0 {
			o.dialects = next
		}
	}
}

// WithSource reads the schema from fsys instead of the embedded tree. fsys
// must hold data/sql/migrations.
func WithSource(fsys fs.FS) Option {
	return func(o *registerOptions) {
		if fsys != nil {
			o.source = fsys
		}
	}
}

// Filesystems returns the verified postgres and sqlite schemas found under
// data/sql/migrations in source, or in the embedded tree when source is nil.
func Filesystems(source fs.FS) ([]DialectSchema, error) {
	if source == nil {
		source = crmsync.GetMigrationsFS()
	}
	postgresFS, err := fs.Sub(source, schemaRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", schemaRoot, err)
	}
	sqliteFS, err := fs.Sub(postgresFS, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}

	schemas := []DialectSchema{
		{Dialect: DialectPostgres, Path: schemaRoot, FS: postgresFS},
		{Dialect: DialectSQLite, Path: path.Join(schemaRoot, DialectSQLite), FS: sqliteFS},
	}
	for _, schema := range schemas {
		if err := Verify(schema.Dialect, schema.FS); err != nil {
			return nil, err
		}
	}
	return schemas, nil
}

// Verify checks that fsys holds exactly the Schema steps, each with an up file
// creating its tables and a down file dropping them.
func Verify(dialect string, fsys fs.FS) error {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("migrations: list %s schema: %w", dialect, err)
	}
	expected := make([]string, 0, len(Schema)*2)
	for _, step := range Schema {
		up, err := readStep(fsys, dialect, step.Name+".up.sql")
		if err != nil {
			return err
		}
		down, err := readStep(fsys, dialect, step.Name+".down.sql")
		if err != nil {
			return err
		}
		for _, table := range step.Tables {
			if !strings.Contains(up, "create table if not exists "+table) {
				return fmt.Errorf("migrations: %s %s.up.sql does not create %s", dialect, step.Name, table)
			}
			if !strings.Contains(down, "drop table if exists "+table) {
				return fmt.Errorf("migrations: %s %s.down.sql does not drop %s", dialect, step.Name, table)
			}
		}
		expected = append(expected, step.Name+".up.sql", step.Name+".down.sql")
	}
	for _, file := range files {
		if !slices.Contains(expected, file) {
			return fmt.Errorf("migrations: %s schema has unknown migration %s", dialect, file)
		}
	}
	return nil
}

// Register hands each selected dialect schema to registerFn, postgres first.
// By default both dialects are registered.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	options := registerOptions{dialects: []string{DialectPostgres, DialectSQLite}}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	reg := Registration{Dialects: options.dialects}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	for _, dialect := range options.dialects {
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}

	schemas, err := Filesystems(options.source)
	if err != nil {
		return reg, err
	}
	for _, schema := range schemas {
		if !slices.Contains(options.dialects, schema.Dialect) {
			continue
		}
		if err := registerFn(ctx, schema.Dialect, SourceLabel, schema.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", schema.Dialect, schema.Path, err)
		}
		reg.Schemas = append(reg.Schemas, schema)
	}
	return reg, nil
}

func readStep(fsys fs.FS, dialect string, name string) (string, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("migrations: %s schema is missing %s: %w", dialect, name, err)
	}
	text := strings.ToLower(strings.Join(strings.Fields(string(content)), " "))
	if text == "" {
		return "", fmt.Errorf("migrations: %s %s is empty", dialect, name)
	}
	return text, nil
}
