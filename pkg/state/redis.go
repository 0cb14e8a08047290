package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// DefaultRedisKey は集合を保存する既定のキーです。
const DefaultRedisKey = "notice-bot:seen_ids"

// RedisConfig は Redis への接続設定です。
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Key      string
}

// RedisStore は1つのキーに Record の JSON を保存します。ファイル形式と同じ内容になります。
type RedisStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisStore は設定から Redis クライアントを生成します。接続は最初のコマンド実行時に行われます。
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.Key, logger)
}

// NewRedisStoreWithClient は既存のクライアントを使って RedisStore を生成します。
func NewRedisStoreWithClient(client *redis.Client, key string, logger *zap.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, key: key, logger: logger}
}

// Close はクライアントを閉じます。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context) types.IDSet {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Redisから既読IDを読み込めないため空の集合で開始します", zap.String("key", s.key), zap.Error(err))
		}
		return types.NewIDSet()
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn("Redisの既読IDが壊れているため空の集合で開始します", zap.String("key", s.key), zap.Error(err))
		return types.NewIDSet()
	}
	return fromRecord(record)
}

func (s *RedisStore) Save(ctx context.Context, ids types.IDSet, maxSize int) error {
	data, err := json.Marshal(Record{SeenIDs: Order(ids, maxSize)})
	if err != nil {
		return fmt.Errorf("状態のエンコードに失敗しました: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("Redisへの保存に失敗しました: %w", err)
	}
	return nil
}
