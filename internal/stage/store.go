// Package stage implements the intermediate record store that sits between
// extraction and graph composition. Each entity and relationship kind is
// staged in its own collection; entity collections enforce a unique natural
// key (qualified name) so that re-staging the same entity is detected rather
// than duplicated.
package stage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

// ErrDuplicateKey reports an insert whose natural key already exists in the
// collection. Callers log and skip; the conflict is never fatal.
var ErrDuplicateKey = errors.New("duplicate natural key")

// Store is a SQLite-backed document store with one table per collection.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the staging database at path and ensures every
// collection exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open staging db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping staging db %s: %w", path, err)
	}

	s := &Store{db: db, log: logger}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init staging schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema(ctx context.Context) error {
	for _, kind := range graph.EntityKinds {
		q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			qualified_name TEXT NOT NULL UNIQUE,
			access TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL
		)`, kind.Collection())
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create collection %s: %w", kind.Collection(), err)
		}
	}
	for _, kind := range graph.RelationKinds {
		q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			from_type TEXT NOT NULL,
			from_qualified_name TEXT NOT NULL,
			to_type TEXT NOT NULL,
			to_qualified_name TEXT NOT NULL,
			props TEXT NOT NULL DEFAULT '{}'
		)`, kind.Collection())
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create collection %s: %w", kind.Collection(), err)
		}
	}
	return nil
}

// Reset drops and recreates every collection. The driver calls this at the
// start of a run; the staging store holds exactly one analysis at a time.
func (s *Store) Reset(ctx context.Context) error {
	for _, kind := range graph.EntityKinds {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, kind.Collection())); err != nil {
			return fmt.Errorf("drop collection %s: %w", kind.Collection(), err)
		}
	}
	for _, kind := range graph.RelationKinds {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, kind.Collection())); err != nil {
			return fmt.Errorf("drop collection %s: %w", kind.Collection(), err)
		}
	}
	return s.initSchema(ctx)
}

// InsertRecord stages a record in its kind's collection.
func (s *Store) InsertRecord(ctx context.Context, rec graph.Record) error {
	switch r := rec.(type) {
	case *graph.EntityRecord:
		return s.InsertEntity(ctx, r)
	case *graph.RelationshipRecord:
		return s.InsertRelationship(ctx, r)
	default:
		return fmt.Errorf("unknown record type %T", rec)
	}
}

// InsertEntity stages an entity record. A natural-key conflict is returned
// as ErrDuplicateKey.
func (s *Store) InsertEntity(ctx context.Context, rec *graph.EntityRecord) error {
	q := fmt.Sprintf(`INSERT INTO %q (kind, name, qualified_name, access, file_path)
		VALUES (?, ?, ?, ?, ?)`, rec.Kind.Collection())
	_, err := s.db.ExecContext(ctx, q,
		string(rec.Kind), rec.Name, rec.QualifiedName, string(rec.Access), rec.FilePath)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("entity %s in %s: %w", rec.QualifiedName, rec.Kind.Collection(), ErrDuplicateKey)
		}
		return fmt.Errorf("insert entity %s: %w", rec.QualifiedName, err)
	}
	return nil
}

// InsertRelationship stages a relationship record. Relationship collections
// have no natural key; repeated syntactic references are distinct records.
func (s *Store) InsertRelationship(ctx context.Context, rec *graph.RelationshipRecord) error {
	props := "{}"
	if len(rec.Props) > 0 {
		data, err := json.Marshal(rec.Props)
		if err != nil {
			return fmt.Errorf("marshal props for %s: %w", rec.Kind, err)
		}
		props = string(data)
	}
	q := fmt.Sprintf(`INSERT INTO %q (kind, from_type, from_qualified_name, to_type, to_qualified_name, props)
		VALUES (?, ?, ?, ?, ?, ?)`, rec.Kind.Collection())
	_, err := s.db.ExecContext(ctx, q,
		string(rec.Kind), string(rec.FromType), rec.FromQualifiedName,
		string(rec.ToType), rec.ToQualifiedName, props)
	if err != nil {
		return fmt.Errorf("insert relationship %s: %w", rec.Kind, err)
	}
	return nil
}

// Entities streams every entity in the kind's collection, in insertion
// order, to fn. Iteration stops on the first error.
func (s *Store) Entities(ctx context.Context, kind graph.EntityKind, fn func(*graph.EntityRecord) error) error {
	q := fmt.Sprintf(`SELECT kind, name, qualified_name, access, file_path FROM %q ORDER BY id`, kind.Collection())
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query collection %s: %w", kind.Collection(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec graph.EntityRecord
		var k, access string
		if err := rows.Scan(&k, &rec.Name, &rec.QualifiedName, &access, &rec.FilePath); err != nil {
			return fmt.Errorf("scan entity from %s: %w", kind.Collection(), err)
		}
		rec.Kind = graph.EntityKind(k)
		rec.Access = graph.Access(access)
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Relationships streams every relationship in the kind's collection, in
// insertion order, to fn.
func (s *Store) Relationships(ctx context.Context, kind graph.RelationKind, fn func(*graph.RelationshipRecord) error) error {
	q := fmt.Sprintf(`SELECT kind, from_type, from_qualified_name, to_type, to_qualified_name, props FROM %q ORDER BY id`, kind.Collection())
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query collection %s: %w", kind.Collection(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec graph.RelationshipRecord
		var k, fromType, toType, props string
		if err := rows.Scan(&k, &fromType, &rec.FromQualifiedName, &toType, &rec.ToQualifiedName, &props); err != nil {
			return fmt.Errorf("scan relationship from %s: %w", kind.Collection(), err)
		}
		rec.Kind = graph.RelationKind(k)
		rec.FromType = graph.EntityKind(fromType)
		rec.ToType = graph.EntityKind(toType)
		if props != "" && props != "{}" {
			if err := json.Unmarshal([]byte(props), &rec.Props); err != nil {
				return fmt.Errorf("unmarshal props from %s: %w", kind.Collection(), err)
			}
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// DistinctExternalTargets aggregates the distinct target qualified names in
// a relationship collection that do not belong to any of the given project
// prefixes. A name belongs to a prefix when it equals the prefix or starts
// with the prefix followed by a dot.
func (s *Store) DistinctExternalTargets(ctx context.Context, kind graph.RelationKind, prefixes []string) ([]string, error) {
	var conds []string
	var args []any
	for _, p := range prefixes {
		conds = append(conds, `(to_qualified_name = ? OR to_qualified_name LIKE ? ESCAPE '\')`)
		args = append(args, p, escapeLike(p)+".%")
	}
	q := fmt.Sprintf(`SELECT DISTINCT to_qualified_name FROM %q`, kind.Collection())
	if len(conds) > 0 {
		q += ` WHERE NOT (` + strings.Join(conds, " OR ") + `)`
	}
	q += ` ORDER BY to_qualified_name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate external targets in %s: %w", kind.Collection(), err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var qn string
		if err := rows.Scan(&qn); err != nil {
			return nil, fmt.Errorf("scan external target: %w", err)
		}
		targets = append(targets, qn)
	}
	return targets, rows.Err()
}

// Counts returns the number of staged records per collection, for run
// summaries.
func (s *Store) Counts(ctx context.Context) (entities, relationships int64, err error) {
	for _, kind := range graph.EntityKinds {
		n, err := s.count(ctx, kind.Collection())
		if err != nil {
			return 0, 0, err
		}
		entities += n
	}
	for _, kind := range graph.RelationKinds {
		n, err := s.count(ctx, kind.Collection())
		if err != nil {
			return 0, 0, err
		}
		relationships += n
	}
	return entities, relationships, nil
}

func (s *Store) count(ctx context.Context, collection string) (int64, error) {
	var n int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, collection)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
