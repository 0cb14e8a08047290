package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/novelty"
	"github.com/shouni/go-notice-bot/pkg/state"
	"github.com/shouni/go-notice-bot/pkg/types"
)

// MaxRateLimitRetries は1件のお知らせに対してレート制限で再送する最大回数です。
const MaxRateLimitRetries = 5

// Source は掲示板からお知らせの一覧を取得します。extract.Extractor と feed.Parser が満たします。
type Source interface {
	FetchNotices(ctx context.Context, listURL string) ([]types.Notice, error)
}

// Sink はお知らせを1件ずつ配信します。
type Sink interface {
	Deliver(ctx context.Context, n types.Notice) error
}

// retryAfterError はレート制限によって一時的に配信できなかったことを示すエラーです。
type retryAfterError interface {
	error
	RetryAfter() time.Duration
}

// Options は Runner の動作設定です。
type Options struct {
	ListURL           string
	MaxSeenIDs        int
	FilterByRecency   bool
	RecencyWindowDays int
	// DryRun が true の場合、新着の判定までを行い、配信と保存は行いません。
	DryRun bool
}

// Result は1回の実行結果です。
type Result struct {
	Fetched   int
	New       []types.Notice
	Delivered []types.Notice
}

// Runner は取得、新着判定、配信、状態保存の1サイクルを実行します。
type Runner struct {
	source Source
	store  state.Store
	sink   Sink
	opts   Options
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option は Runner の設定を行うための関数型です。
type Option func(*Runner)

// WithClock は新着判定の基準日を決める時計を設定します。
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithSleep はレート制限時の待機処理を差し替えます。
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner は新しい Runner を生成します。DryRun の場合 sink は nil でも構いません。
func NewRunner(source Source, store state.Store, sink Sink, opts Options, options ...Option) (*Runner, error) {
	if source == nil || store == nil {
		return nil, fmt.Errorf("pipeline.NewRunner: source and store cannot be nil")
	}
	if sink == nil && !opts.DryRun {
		return nil, fmt.Errorf("pipeline.NewRunner: sink cannot be nil")
	}
	r := &Runner{
		source: source,
		store:  store,
		sink:   sink,
		opts:   opts,
		logger: zap.NewNop(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Run は1サイクルを実行します。
// 取得に失敗した場合は状態を保存せずにエラーを返します。
// 配信に失敗した場合は、それまでに配信できたお知らせのIDを保存してからエラーを返します。
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	notices, err := r.source.FetchNotices(ctx, r.opts.ListURL)
	if err != nil {
		return nil, err
	}
	result := &Result{Fetched: len(notices)}

	seen := r.store.Load(ctx)
	result.New = novelty.Select(notices, seen, novelty.Options{
		FilterByRecency: r.opts.FilterByRecency,
		WindowDays:      r.opts.RecencyWindowDays,
		ReferenceDate:   r.now(),
	})

	if len(result.New) == 0 {
		r.logger.Info("新しいお知らせはありません", zap.Int("fetched", result.Fetched))
		return result, nil
	}
	if r.opts.DryRun {
		r.logger.Info("ドライランのため配信と保存を行いません", zap.Int("new", len(result.New)))
		return result, nil
	}

	delivered, deliverErr := r.deliverAll(ctx, result.New)
	result.Delivered = delivered

	if len(delivered) > 0 {
		updated := seen.Clone()
		for _, n := range delivered {
			updated.Add(n.ID)
		}
		if err := r.store.Save(ctx, updated, r.opts.MaxSeenIDs); err != nil {
			return result, errors.Join(deliverErr, fmt.Errorf("既読IDの保存に失敗しました: %w", err))
		}
	}

	if deliverErr != nil {
		return result, deliverErr
	}
	r.logger.Info("新しいお知らせを配信しました", zap.Int("delivered", len(delivered)))
	return result, nil
}

// deliverAll は古い順に配信し、失敗した時点で停止します。配信できたお知らせを返します。
func (r *Runner) deliverAll(ctx context.Context, notices []types.Notice) ([]types.Notice, error) {
	delivered := make([]types.Notice, 0, len(notices))
	for _, n := range notices {
		if err := r.deliver(ctx, n); err != nil {
			r.logger.Error("お知らせの配信に失敗しました", zap.String("id", n.ID), zap.Error(err))
			return delivered, fmt.Errorf("お知らせ %s の配信に失敗しました: %w", n.ID, err)
		}
		delivered = append(delivered, n)
	}
	return delivered, nil
}

// deliver はレート制限の場合に指定された時間だけ待って同じお知らせを再送します。
func (r *Runner) deliver(ctx context.Context, n types.Notice) error {
	for attempt := 0; ; attempt++ {
		err := r.sink.Deliver(ctx, n)
		if err == nil {
			return nil
		}

		var rateLimited retryAfterError
		if !errors.As(err, &rateLimited) || attempt >= MaxRateLimitRetries {
			return err
		}

		wait := rateLimited.RetryAfter()
		r.logger.Warn("レート制限のため待機して再送します",
			zap.String("id", n.ID), zap.Duration("wait", wait), zap.Int("attempt", attempt+1))
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
