package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/internal/pipeline"
	"github.com/shouni/go-notice-bot/pkg/config"
	"github.com/shouni/go-notice-bot/pkg/discord"
	"github.com/shouni/go-notice-bot/pkg/extract"
	"github.com/shouni/go-notice-bot/pkg/feed"
	"github.com/shouni/go-notice-bot/pkg/httpclient"
	"github.com/shouni/go-notice-bot/pkg/state"
)

// newSource は設定に応じて HTML 抽出またはフィード解析のソースを返します。
func newSource(cfg *config.Config, fetcher *httpclient.Client, log *zap.Logger) (pipeline.Source, error) {
	switch cfg.BoardSource {
	case config.SourceRSS:
		return feed.NewParser(fetcher, log, cfg.Now), nil
	default:
		extractor, err := extract.NewExtractor(fetcher, extract.WithLogger(log), extract.WithClock(cfg.Now))
		if err != nil {
			return nil, fmt.Errorf("Extractorの初期化エラー: %w", err)
		}
		return extractor, nil
	}
}

// newStore は設定されたバックエンドの Store と、その後始末をする関数を返します。
func newStore(cfg *config.Config, log *zap.Logger) (state.Store, func(), error) {
	switch cfg.StateBackend {
	case config.BackendSQLite:
		s, err := state.NewSQLiteStore(cfg.StatePath, log)
		if err != nil {
			return nil, nil, fmt.Errorf("SQLiteの初期化に失敗しました: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case config.BackendRedis:
		s := state.NewRedisStore(state.RedisConfig{Addr: cfg.RedisAddr, Key: cfg.RedisKey}, log)
		return s, func() { _ = s.Close() }, nil
	default:
		return state.NewFileStore(cfg.StatePath, log), func() {}, nil
	}
}

// newRunner は設定から1サイクル分の Runner を組み立てます。dryRun の場合は Webhook を必要としません。
func newRunner(cfg *config.Config, fetcher *httpclient.Client, log *zap.Logger, dryRun bool) (*pipeline.Runner, func(), error) {
	var sink pipeline.Sink
	if !dryRun {
		if err := cfg.ValidateDelivery(); err != nil {
			return nil, nil, err
		}
		hook, err := discord.NewWebhook(cfg.WebhookURL,
			discord.WithHTTPClient(fetcher.HTTPClient()),
			discord.WithTitlePrefix(cfg.TitlePrefix),
			discord.WithLogger(log),
		)
		if err != nil {
			return nil, nil, err
		}
		sink = hook
	}

	source, err := newSource(cfg, fetcher, log)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := newStore(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	runner, err := pipeline.NewRunner(source, store, sink, pipeline.Options{
		ListURL:           cfg.ListURL,
		MaxSeenIDs:        cfg.MaxSeenIDs,
		FilterByRecency:   cfg.FilterByDate,
		RecencyWindowDays: cfg.RecencyWindowDays,
		DryRun:            dryRun,
	}, pipeline.WithLogger(log), pipeline.WithClock(cfg.Now))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return runner, closeStore, nil
}

// requireInitialized は PersistentPreRunE で共有の依存性が初期化済みであることを確認します。
func requireInitialized() error {
	if appConfig == nil || globalFetcher == nil {
		return fmt.Errorf("設定またはHTTPクライアントが初期化されていません")
	}
	return nil
}
