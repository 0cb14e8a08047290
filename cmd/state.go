package cmd

import (
	"context"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/shouni/go-notice-bot/pkg/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "保存されている既読のお知らせIDを表示します",
	Long:  `設定されたバックエンド (file, sqlite, redis) から既読IDを読み込み、新しい順に表示します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		defer syncLogger()

		if err := requireInitialized(); err != nil {
			return err
		}

		store, closeStore, err := newStore(appConfig, appLogger)
		if err != nil {
			return err
		}
		defer closeStore()

		seen := store.Load(context.Background())
		renderSeenIDs(cmd.OutOrStdout(), state.Order(seen, len(seen)), appConfig.StateBackend)
		return nil
	},
}

// renderSeenIDs は既読IDを保存順 (新しい順) で w に出力します。
func renderSeenIDs(w io.Writer, ids []string, backend string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "ID"})

	for i, id := range ids {
		t.AppendRow(table.Row{i + 1, id})
	}

	t.AppendFooter(table.Row{"合計", len(ids)})
	t.SetCaption("backend: %s", backend)
	t.Render()
}
