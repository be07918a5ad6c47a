// Package migrations hands the embedded settings schema to a host migration
// runner, one filesystem per dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	marketo "github.com/goliatone/go-marketo"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-marketo"

	migrationsDir = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory below data/sql/migrations.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "."},
	{dialect: DialectSQLite, dir: "sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
	// Files lists the *.up.sql migrations in apply order.
	Files []string
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Filesystems []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*registerOptions)

type registerOptions struct {
	sourceLabel string
	dialects    []string
	root        fs.FS
}

func WithSourceLabel(label string) Option {
	return func(o *registerOptions) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			o.sourceLabel = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(o *registerOptions) {
		if next := normalizeDialects(dialects); len(next) > 0 {
			o.dialects = next
		}
	}
}

// WithMigrationsFS replaces the embedded tree. The tree must carry the
// data/sql/migrations layout.
func WithMigrationsFS(root fs.FS) Option {
	return func(o *registerOptions) {
		if root != nil {
			o.root = root
		}
	}
}

// Filesystems resolves the per dialect migration directories of root, or of
// the embedded tree when root is nil.
func Filesystems(root fs.FS) ([]FilesystemSpec, error) {
	if root == nil {
		root = marketo.GetMigrationsFS()
	}
	base, err := fs.Sub(root, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}

	out := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		dialectFS := base
		if entry.dir != "." {
			if dialectFS, err = fs.Sub(base, entry.dir); err != nil {
				return nil, fmt.Errorf("migrations: resolve %s filesystem: %w", entry.dialect, err)
			}
		}
		dir := path.Join(migrationsDir, entry.dir)
		files, err := upMigrations(dialectFS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s filesystem %q: %w", entry.dialect, dir, err)
		}
		out = append(out, FilesystemSpec{
			Dialect: entry.dialect,
			Path:    dir,
			FS:      dialectFS,
			Files:   files,
		})
	}
	return out, nil
}

// Register calls registerFn once per selected dialect, in dialect order.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	options := registerOptions{
		sourceLabel: DefaultSourceLabel,
		dialects:    []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	reg := Registration{SourceLabel: options.sourceLabel, Dialects: options.dialects}

	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	filesystems, err := Filesystems(options.root)
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, dialect := range reg.Dialects {
		if !knownDialect(dialect) {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}
	for _, fsys := range reg.Filesystems {
		if !slices.Contains(reg.Dialects, fsys.Dialect) {
			continue
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}
	return reg, nil
}

func upMigrations(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	slices.Sort(ups)
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(fsys, down); err != nil {
			return nil, fmt.Errorf("%s has no matching %s", up, down)
		}
	}
	return ups, nil
}

func knownDialect(dialect string) bool {
	for _, entry := range dialectDirs {
		if entry.dialect == dialect {
			return true
		}
	}
	return false
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
