// Package indexdb is the catalog of ingested objects, one row per source
// file keyed by absolute path.
package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Meta keys written alongside each commit.
const (
	MetaSchemaVersion  = "schema_version"
	MetaRegistryDigest = "registry_digest"
	MetaToolVersions   = "tool_versions"
)

// Object is one catalog row. MeshCachePath is empty for objects without a
// mesh and is stored as NULL.
type Object struct {
	Path          string
	Format        string
	SHA256        string
	Valid         bool
	ParseMode     string
	DX, DY, DZ    int
	BlockCount    int
	UniqueBlocks  int
	UnknownBlocks int
	Author        string
	Description   string
	WarningsJSON  string
	ErrorsJSON    string

	ThumbPath     string
	MeshCachePath string
	ReportPath    string

	SourceMtimeMs int64
	SourceSize    int64

	CreatedAt string
	UpdatedAt string
}

// Batch is everything one scan writes. It is applied in a single
// transaction.
type Batch struct {
	Upserts []Object
	Deletes []string
	Meta    map[string]string
}

func (b Batch) Empty() bool {
	return len(b.Upserts) == 0 && len(b.Deletes) == 0 && len(b.Meta) == 0
}

type Stats struct {
	Total    int
	Valid    int
	Invalid  int
	ByFormat map[string]int
}

type SQLiteCatalog struct {
	db   *sql.DB
	once sync.Once

	now func() time.Time
}

func OpenSQLite(path string) (*SQLiteCatalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteCatalog{db: db, now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL lets readers (inspect) run while a scan commits.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS objects (
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			format TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			valid INTEGER NOT NULL,
			parse_mode TEXT NOT NULL,
			dx INTEGER NOT NULL,
			dy INTEGER NOT NULL,
			dz INTEGER NOT NULL,
			block_count INTEGER NOT NULL,
			unique_blocks INTEGER NOT NULL,
			unknown_blocks INTEGER NOT NULL,
			author TEXT NOT NULL,
			description TEXT NOT NULL,
			warnings_json TEXT NOT NULL,
			errors_json TEXT NOT NULL,
			source_mtime_ms INTEGER NOT NULL,
			source_size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assets (
			object_id INTEGER PRIMARY KEY REFERENCES objects(id) ON DELETE CASCADE,
			thumb_path TEXT NOT NULL,
			mesh_cache_path TEXT,
			ingest_report_path TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_format ON objects(format);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_valid ON objects(valid);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_sha256 ON objects(sha256);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteCatalog) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

const selectObjects = `SELECT o.path,o.format,o.sha256,o.valid,o.parse_mode,o.dx,o.dy,o.dz,
	o.block_count,o.unique_blocks,o.unknown_blocks,o.author,o.description,o.warnings_json,o.errors_json,
	o.source_mtime_ms,o.source_size,o.created_at,o.updated_at,
	COALESCE(a.thumb_path,''),a.mesh_cache_path,COALESCE(a.ingest_report_path,'')
	FROM objects o LEFT JOIN assets a ON a.object_id=o.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(sc scanner) (Object, error) {
	var (
		o     Object
		valid int
		mesh  sql.NullString
	)
	err := sc.Scan(
		&o.Path, &o.Format, &o.SHA256, &valid, &o.ParseMode, &o.DX, &o.DY, &o.DZ,
		&o.BlockCount, &o.UniqueBlocks, &o.UnknownBlocks, &o.Author, &o.Description, &o.WarningsJSON, &o.ErrorsJSON,
		&o.SourceMtimeMs, &o.SourceSize, &o.CreatedAt, &o.UpdatedAt,
		&o.ThumbPath, &mesh, &o.ReportPath,
	)
	if err != nil {
		return Object{}, err
	}
	o.Valid = valid != 0
	o.MeshCachePath = mesh.String
	return o, nil
}

// Rows returns every catalog row keyed by path.
func (s *SQLiteCatalog) Rows(ctx context.Context) (map[string]Object, error) {
	rows, err := s.db.QueryContext(ctx, selectObjects)
	if err != nil {
		return nil, fmt.Errorf("indexdb: list: %w", err)
	}
	defer rows.Close()
	out := map[string]Object{}
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("indexdb: scan row: %w", err)
		}
		out[o.Path] = o
	}
	return out, rows.Err()
}

// Paths lists catalog paths in sorted order.
func (s *SQLiteCatalog) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM objects ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns the row for path; ok is false when there is none.
func (s *SQLiteCatalog) Get(ctx context.Context, path string) (Object, bool, error) {
	o, err := scanObject(s.db.QueryRowContext(ctx, selectObjects+` WHERE o.path=?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, false, nil
	}
	if err != nil {
		return Object{}, false, fmt.Errorf("indexdb: get %s: %w", path, err)
	}
	return o, true, nil
}

// Meta returns a meta value, or "" when unset.
func (s *SQLiteCatalog) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *SQLiteCatalog) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByFormat: map[string]int{}}
	rows, err := s.db.QueryContext(ctx, `SELECT format,valid,COUNT(*) FROM objects GROUP BY format,valid`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			format string
			valid  int
			n      int
		)
		if err := rows.Scan(&format, &valid, &n); err != nil {
			return st, err
		}
		st.Total += n
		st.ByFormat[format] += n
		if valid != 0 {
			st.Valid += n
		} else {
			st.Invalid += n
		}
	}
	return st, rows.Err()
}

// Commit applies b atomically. Deletes cascade to assets; upserts keep the
// row id and created_at of an existing path.
func (s *SQLiteCatalog) Commit(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, MetaSchemaVersion, schemaVersion); err != nil {
		return err
	}
	keys := make([]string, 0, len(b.Meta))
	for k := range b.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, k, b.Meta[k]); err != nil {
			return err
		}
	}

	if len(b.Deletes) > 0 {
		del, err := tx.PrepareContext(ctx, `DELETE FROM objects WHERE path=?`)
		if err != nil {
			return err
		}
		defer del.Close()
		for _, p := range b.Deletes {
			if _, err := del.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("indexdb: delete %s: %w", p, err)
			}
		}
	}

	if len(b.Upserts) > 0 {
		upsert, err := tx.PrepareContext(ctx, `INSERT INTO objects(path,format,sha256,valid,parse_mode,dx,dy,dz,
			block_count,unique_blocks,unknown_blocks,author,description,warnings_json,errors_json,
			source_mtime_ms,source_size,created_at,updated_at)
			VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(path) DO UPDATE SET
				format=excluded.format, sha256=excluded.sha256, valid=excluded.valid,
				parse_mode=excluded.parse_mode, dx=excluded.dx, dy=excluded.dy, dz=excluded.dz,
				block_count=excluded.block_count, unique_blocks=excluded.unique_blocks,
				unknown_blocks=excluded.unknown_blocks, author=excluded.author,
				description=excluded.description, warnings_json=excluded.warnings_json,
				errors_json=excluded.errors_json, source_mtime_ms=excluded.source_mtime_ms,
				source_size=excluded.source_size, updated_at=excluded.updated_at
			RETURNING id`)
		if err != nil {
			return err
		}
		defer upsert.Close()
		asset, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO assets(object_id,thumb_path,mesh_cache_path,ingest_report_path) VALUES(?,?,?,?)`)
		if err != nil {
			return err
		}
		defer asset.Close()

		for _, o := range b.Upserts {
			valid := 0
			if o.Valid {
				valid = 1
			}
			var id int64
			err := upsert.QueryRowContext(ctx,
				o.Path, o.Format, o.SHA256, valid, o.ParseMode, o.DX, o.DY, o.DZ,
				o.BlockCount, o.UniqueBlocks, o.UnknownBlocks, o.Author, o.Description,
				orEmptyList(o.WarningsJSON), orEmptyList(o.ErrorsJSON),
				o.SourceMtimeMs, o.SourceSize, now, now,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("indexdb: upsert %s: %w", o.Path, err)
			}
			mesh := sql.NullString{String: o.MeshCachePath, Valid: o.MeshCachePath != ""}
			if _, err := asset.ExecContext(ctx, id, o.ThumbPath, mesh, o.ReportPath); err != nil {
				return fmt.Errorf("indexdb: assets %s: %w", o.Path, err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.Commit()
}

func orEmptyList(s string) string {
	if s == "" {
		return "[]"
	}
	return s
}
