package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps every document in one table keyed by (collection, id)
// with the body in a JSON column.
type SQLiteStore struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps :memory: databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("document store initialized")
	return &SQLiteStore{DB: db, path: path, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            collection TEXT NOT NULL,
            id TEXT NOT NULL,
            data TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (collection, id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Path returns the database file the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw string
	err := s.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	doc, err := decodeDoc(collection, id, []byte(raw))
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Document, error) {
	return s.Query(ctx, Query{Collection: collection})
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Document, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDoc(q.Collection, id, []byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", q.Collection, err)
	}
	return docs, nil
}

func buildQuery(q Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)

	for _, f := range q.Where {
		if err := validField(f.Field); err != nil {
			return "", nil, err
		}
		v := normalizeValue(f.Value)
		if v == nil {
			fmt.Fprintf(&sb, ` AND json_type(data, '$.%s') = 'null'`, f.Field)
			continue
		}
		fmt.Fprintf(&sb, ` AND json_extract(data, '$.%s') = ?`, f.Field)
		args = append(args, v)
	}

	dir, op := "ASC", ">"
	if q.Desc {
		dir, op = "DESC", "<"
	}

	if q.OrderBy != "" {
		if err := validField(q.OrderBy); err != nil {
			return "", nil, err
		}
		field := fmt.Sprintf(`json_extract(data, '$.%s')`, q.OrderBy)
		sb.WriteString(` AND ` + field + ` IS NOT NULL`)
		if q.StartAfter != nil {
			v := normalizeValue(q.StartAfter.Data[q.OrderBy])
			fmt.Fprintf(&sb, ` AND (%s %s ? OR (%s = ? AND id %s ?))`, field, op, field, op)
			args = append(args, v, v, q.StartAfter.ID)
		}
		fmt.Fprintf(&sb, ` ORDER BY %s %s, id %s`, field, dir, dir)
	} else {
		if q.StartAfter != nil {
			fmt.Fprintf(&sb, ` AND id %s ?`, op)
			args = append(args, q.StartAfter.ID)
		}
		fmt.Fprintf(&sb, ` ORDER BY id %s`, dir)
	}

	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}
	return sb.String(), args, nil
}

func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return count, nil
}

func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	return s.Batch(ctx, []Write{{Op: OpSet, Collection: collection, ID: id, Data: data}})
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return s.Batch(ctx, []Write{{Op: OpUpdate, Collection: collection, ID: id, Data: patch}})
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	return s.Batch(ctx, []Write{{Op: OpDelete, Collection: collection, ID: id}})
}

func (s *SQLiteStore) Batch(ctx context.Context, writes []Write) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, w := range writes {
		if err := validID(w.ID); err != nil {
			return err
		}
		if w.Collection == "" {
			return ErrInvalidPath
		}
		if err := applyWrite(ctx, tx, w); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyWrite(ctx context.Context, tx *sql.Tx, w Write) error {
	now := time.Now()
	switch w.Op {
	case OpSet:
		_, raw, err := normalize(w.Data)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO documents (collection, id, data, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(collection, id) DO UPDATE SET
                data = excluded.data,
                updated_at = excluded.updated_at`,
			w.Collection, w.ID, string(raw), now, now)
		if err != nil {
			return fmt.Errorf("failed to set %s/%s: %w", w.Collection, w.ID, err)
		}
	case OpUpdate:
		var prev string
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE collection = ? AND id = ?`, w.Collection, w.ID).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s/%s: %w", w.Collection, w.ID, err)
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(prev), &data); err != nil {
			return fmt.Errorf("unmarshal document: %w", err)
		}
		_, raw, err := normalize(merge(data, w.Data))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			string(raw), now, w.Collection, w.ID)
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", w.Collection, w.ID, err)
		}
	case OpDelete:
		_, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, w.Collection, w.ID)
		if err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", w.Collection, w.ID, err)
		}
	default:
		return fmt.Errorf("unknown write op %d", w.Op)
	}
	return nil
}
