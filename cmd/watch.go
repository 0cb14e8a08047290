package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/schedule"
)

var runOnStart bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "スケジュールに従って巡回を繰り返します",
	Long: `WATCH_SCHEDULE の cron 式 (既定は10分ごと) に従って run と同じ巡回を繰り返します。
前回の巡回が終わっていない場合、その回はスキップされます。SIGINT/SIGTERM で停止します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		defer syncLogger()

		if err := requireInitialized(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, closeStore, err := newRunner(appConfig, globalFetcher, appLogger, false)
		if err != nil {
			return err
		}
		defer closeStore()

		job := func(ctx context.Context) {
			if _, err := runner.Run(ctx); err != nil {
				// 失敗した巡回は次回のスケジュールでやり直す
				appLogger.Error("巡回に失敗しました", zap.Error(err))
			}
		}

		scheduler, err := schedule.New(appConfig.WatchSchedule, appConfig.Location, job, appLogger)
		if err != nil {
			return err
		}
		return scheduler.Run(ctx, runOnStart)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&runOnStart, "run-now", true, "スケジュール開始前に1回巡回する")
}
