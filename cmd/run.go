package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "掲示板を1回巡回し、新しいお知らせを Discord に通知します",
	Long: `掲示板の一覧ページを取得して新しいお知らせを古い順に送信し、送信できたお知らせを既読として保存します。
--dry-run を指定すると送信と保存を行わずに新着の一覧のみを表示します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		defer syncLogger()

		if err := requireInitialized(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, closeStore, err := newRunner(appConfig, globalFetcher, appLogger, dryRun)
		if err != nil {
			return err
		}
		defer closeStore()

		result, err := runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("巡回の実行エラー: %w", err)
		}

		if dryRun {
			renderNotices(cmd.OutOrStdout(), result.New)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "取得 %d 件 / 新着 %d 件 / 送信 %d 件\n", result.Fetched, len(result.New), len(result.Delivered))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "送信と保存を行わず、新着のお知らせを表示するだけにする")
}
