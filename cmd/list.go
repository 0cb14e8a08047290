package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/shouni/go-notice-bot/pkg/types"
)

const titleColumnWidth = 60

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "掲示板のお知らせを解析して一覧表示します",
	Long:  `掲示板の一覧ページを取得・解析し、既読かどうかに関係なくすべてのお知らせを表で表示します。Webhook の設定は不要です。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		defer syncLogger()

		if err := requireInitialized(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		source, err := newSource(appConfig, globalFetcher, appLogger)
		if err != nil {
			return err
		}
		notices, err := source.FetchNotices(ctx, appConfig.ListURL)
		if err != nil {
			return fmt.Errorf("お知らせの取得エラー (URL: %s): %w", appConfig.ListURL, err)
		}

		renderNotices(cmd.OutOrStdout(), notices)
		return nil
	},
}

// renderNotices はお知らせを表形式で w に出力します。
func renderNotices(w io.Writer, notices []types.Notice) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "タイトル", WidthMax: titleColumnWidth},
	})
	t.AppendHeader(table.Row{"ID", "日付", "分類", "タイトル", "作成者", "閲覧数", "添付"})

	for _, n := range notices {
		attachment := ""
		if n.HasAttachment {
			attachment = "○"
		}
		t.AppendRow(table.Row{n.ID, n.DateText(), n.Category, n.Title, n.Writer, n.ViewsText("-"), attachment})
	}

	t.AppendFooter(table.Row{"合計", len(notices)})
	t.Render()
}
