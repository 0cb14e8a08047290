package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// Extractor は、Fetcher を使って掲示板ページの取得とお知らせの抽出を管理します。
type Extractor struct {
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// Option は Extractor の設定を行うための関数型です。
type Option func(*Extractor)

// WithLogger は行のスキップなどを記録するロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithClock は「今日」を決める時計を設定します。返される時刻のロケーションが日付の基準になります。
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(fetcher Fetcher, opts ...Option) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("extract.NewExtractor: Fetcher cannot be nil")
	}
	e := &Extractor{
		fetcher: fetcher,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// FetchNotices は掲示板の一覧ページを取得し、お知らせを文書順で返します。
// 取得の失敗はエラーとして返し、行単位の解析失敗はスキップします。
func (e *Extractor) FetchNotices(ctx context.Context, listURL string) ([]types.Notice, error) {
	htmlBytes, err := e.fetcher.FetchBytes(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("掲示板の取得に失敗しました: %w", err)
	}
	return e.ParseNotices(htmlBytes, listURL)
}

// ParseNotices は HTML を解析し、baseURL を基準にリンクを解決したお知らせを返します。
// 行が見つからない場合は警告を記録し、空のスライスを返します。
func (e *Extractor) ParseNotices(html []byte, baseURL string) ([]types.Notice, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}

	rows, strategy := FindRows(doc)
	if len(rows) == 0 {
		e.logger.Warn("既知のどのHTML構造からもお知らせの行が見つかりませんでした", zap.String("url", baseURL))
		return []types.Notice{}, nil
	}
	e.logger.Debug("お知らせの行を検出しました", zap.String("strategy", strategy), zap.Int("rows", len(rows)))

	now := e.now()
	notices := make([]types.Notice, 0, len(rows))
	for i, row := range rows {
		notice, dateFound, err := parseRow(row, base, now)
		if err != nil {
			if errors.Is(err, errRowWithoutLink) {
				e.logger.Debug("リンクのない行をスキップします", zap.Int("row", i))
			} else {
				e.logger.Warn("行の解析に失敗したためスキップします", zap.Int("row", i), zap.Error(err))
			}
			continue
		}
		if !dateFound {
			e.logger.Warn("日付が見つからないため今日の日付を使用します", zap.String("id", notice.ID))
		}
		notices = append(notices, notice)
	}
	return notices, nil
}
