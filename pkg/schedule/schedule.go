// Package schedule は cron 式に従ってジョブを定期実行します。前回の実行が終わっていない場合はスキップします。
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job は定期実行される処理です。ctx は Run に渡されたものです。
type Job func(ctx context.Context)

// Scheduler は1つのジョブを cron 式で実行します。
type Scheduler struct {
	spec   string
	loc    *time.Location
	job    Job
	logger *zap.Logger
}

// New は spec を検証して Scheduler を生成します。loc が nil の場合はローカルタイムです。
func New(spec string, loc *time.Location, job Job, logger *zap.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("不正なスケジュールです (%s): %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{spec: spec, loc: loc, job: job, logger: logger}, nil
}

// Run はスケジュールを開始し、ctx が終了するまでブロックします。
// runOnStart が true の場合は開始前に1回実行します。終了時は実行中のジョブの完了を待ちます。
func (s *Scheduler) Run(ctx context.Context, runOnStart bool) error {
	if runOnStart {
		s.job(ctx)
		if ctx.Err() != nil {
			return nil
		}
	}

	cronLogger := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.job(ctx) }); err != nil {
		return fmt.Errorf("ジョブの登録に失敗しました: %w", err)
	}

	c.Start()
	s.logger.Info("スケジュール実行を開始しました", zap.String("schedule", s.spec), zap.String("timezone", s.loc.String()))

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("スケジュール実行を停止しました")
	return nil
}

// cronLogger は cron.Logger を zap に接続します。
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
