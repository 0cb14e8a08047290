package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// SQLiteStore は SQLite のテーブルに集合を保存します。position は新しい順の並び (0 が最新) です。
type SQLiteStore struct {
	conn   *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore はデータベースを開き、スキーマを初期化します。
// 既存のファイルが壊れている場合は <path>.corrupt に退避し、空のデータベースで開き直します。
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("状態ディレクトリの作成に失敗しました: %w", err)
		}
	}

	s, err := openSQLite(path, logger)
	if err == nil || !isCorruptDatabase(err) {
		return s, err
	}

	backup := path + ".corrupt"
	logger.Warn("状態データベースが壊れているため退避して空の集合で開始します",
		zap.String("path", path), zap.String("backup", backup), zap.Error(err))
	if err := os.Rename(path, backup); err != nil {
		return nil, fmt.Errorf("壊れた状態データベースの退避に失敗しました: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("壊れた状態データベースの削除に失敗しました: %w", err)
		}
	}
	return openSQLite(path, logger)
}

func openSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{conn: conn, logger: logger}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// isCorruptDatabase は SQLite がファイルを読めなかったことを示すエラーかを判定します。
func isCorruptDatabase(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	PRAGMA journal_mode=WAL;
	CREATE TABLE IF NOT EXISTS seen_ids (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_seen_ids_position ON seen_ids(position);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close はデータベース接続を閉じます。
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) types.IDSet {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM seen_ids ORDER BY position`)
	if err != nil {
		s.logger.Warn("既読IDを読み込めないため空の集合で開始します", zap.Error(err))
		return types.NewIDSet()
	}
	defer rows.Close()

	ids := types.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.logger.Warn("既読IDを読み込めないため空の集合で開始します", zap.Error(err))
			return types.NewIDSet()
		}
		ids.Add(id)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("既読IDを読み込めないため空の集合で開始します", zap.Error(err))
		return types.NewIDSet()
	}
	return ids
}

// Save はテーブルの内容を1つのトランザクションで置き換えます。
func (s *SQLiteStore) Save(ctx context.Context, ids types.IDSet, maxSize int) error {
	ordered := Order(ids, maxSize)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_ids`); err != nil {
		return fmt.Errorf("clear seen ids: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO seen_ids (id, position) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range ordered {
		if _, err := stmt.ExecContext(ctx, id, i); err != nil {
			return fmt.Errorf("insert seen id %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
