package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calls (
		id               TEXT PRIMARY KEY,
		deal_id          INTEGER NOT NULL DEFAULT 0,
		deal_name        TEXT NOT NULL DEFAULT '',
		audio_path       TEXT NOT NULL DEFAULT '',
		transcription    TEXT NOT NULL DEFAULT '',
		summary          TEXT NOT NULL DEFAULT '',
		checklist        TEXT NOT NULL DEFAULT '[]',
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL DEFAULT 'processing',
		error            TEXT NOT NULL DEFAULT '',
		note_id          INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calls_created ON calls(created_at);
	CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path 返回数据库文件路径 / Path returns the database file path
func (s *SQLiteStore) Path() string { return s.path }

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const callColumns = `id, deal_id, deal_name, audio_path, transcription, summary, checklist,
	duration_seconds, status, error, note_id, created_at, updated_at`

// --- Call Operations ---

func (s *SQLiteStore) CreateCall(ctx context.Context, rec CallRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("call id is empty")
	}
	now := nowUTC()
	if strings.TrimSpace(rec.CreatedAt) == "" {
		rec.CreatedAt = now
	}
	if strings.TrimSpace(rec.UpdatedAt) == "" {
		rec.UpdatedAt = now
	}
	if rec.Status == "" {
		rec.Status = StatusProcessing
	}
	checklist, err := encodeChecklist(rec.Checklist)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls (`+callColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DealID, rec.DealName, rec.AudioPath, rec.Transcription, rec.Summary, checklist,
		rec.DurationSeconds, string(rec.Status), rec.Error, rec.NoteID, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadCall(ctx context.Context, id string) (CallRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CallRecord{}, fmt.Errorf("call id is empty")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id=?`, id)
	rec, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, fmt.Errorf("load call %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("load call: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	query := `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateCall 在事务中读取、合并并写回记录
// UpdateCall reads, patches and writes back a record inside one transaction
func (s *SQLiteStore) UpdateCall(ctx context.Context, id string, patch CallPatch) (CallRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CallRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanCall(tx.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, fmt.Errorf("update call %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("load call: %w", err)
	}
	patch.Apply(&rec)
	checklist, err := encodeChecklist(rec.Checklist)
	if err != nil {
		return CallRecord{}, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE calls SET deal_id=?, deal_name=?, audio_path=?, transcription=?, summary=?, checklist=?,
			duration_seconds=?, status=?, error=?, note_id=?, updated_at=?
		WHERE id=?`,
		rec.DealID, rec.DealName, rec.AudioPath, rec.Transcription, rec.Summary, checklist,
		rec.DurationSeconds, string(rec.Status), rec.Error, rec.NoteID, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return CallRecord{}, fmt.Errorf("update call: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return CallRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) DeleteCall(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calls WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete call: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete call %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var rec CallRecord
	var status, checklist string
	err := row.Scan(&rec.ID, &rec.DealID, &rec.DealName, &rec.AudioPath, &rec.Transcription, &rec.Summary,
		&checklist, &rec.DurationSeconds, &status, &rec.Error, &rec.NoteID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return CallRecord{}, err
	}
	rec.Status = Status(status)
	if checklist != "" {
		if err := json.Unmarshal([]byte(checklist), &rec.Checklist); err != nil {
			return CallRecord{}, fmt.Errorf("decode checklist: %w", err)
		}
	}
	return rec, nil
}

func encodeChecklist(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode checklist: %w", err)
	}
	return string(b), nil
}
