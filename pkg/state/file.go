package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// FileStore は {"seen_ids": [...]} 形式の JSON ファイルに集合を保存します。
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore は path を保存先とする FileStore を生成します。
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Path は保存先のパスを返します。
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) types.IDSet {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("状態ファイルを読み込めないため空の集合で開始します", zap.String("path", s.path), zap.Error(err))
		}
		return types.NewIDSet()
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn("状態ファイルが壊れているため空の集合で開始します", zap.String("path", s.path), zap.Error(err))
		return types.NewIDSet()
	}
	return fromRecord(record)
}

// Save は一時ファイルに書き込んでからリネームすることで、保存途中のファイルが残らないようにします。
func (s *FileStore) Save(_ context.Context, ids types.IDSet, maxSize int) error {
	data, err := json.MarshalIndent(Record{SeenIDs: Order(ids, maxSize)}, "", "  ")
	if err != nil {
		return fmt.Errorf("状態のエンコードに失敗しました: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("状態ディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("状態の書き込みに失敗しました: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("状態の書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("状態の書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("状態ファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}
