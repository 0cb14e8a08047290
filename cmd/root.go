package cmd

import (
	"fmt"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/config"
	"github.com/shouni/go-notice-bot/pkg/httpclient"
	"github.com/shouni/go-notice-bot/pkg/logger"
)

// --- グローバル定数 ---

const (
	appName = "notice-bot"
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	EnvFile      string // --env-file .env ファイルのパス
	ListURL      string // --url 掲示板の一覧URL
	Source       string // --source html または rss
	StateBackend string // --state-backend file, sqlite, redis
	StatePath    string // --state-path 状態ファイルのパス
	TimeoutSec   int    // --timeout タイムアウト
	MaxRetries   int    // --max-retries リトライ回数
}

var (
	Flags AppFlags // アプリケーション固有フラグにアクセスするためのグローバル変数

	persistentFlags *pflag.FlagSet
	appConfig       *config.Config
	appLogger       = zap.NewNop()
	globalFetcher   *httpclient.Client
)

// flagBindings は永続フラグと設定キーの対応です。フラグが指定された場合は環境変数より優先されます。
var flagBindings = map[string]string{
	"url":           config.KeyListURL,
	"source":        config.KeyBoardSource,
	"state-backend": config.KeyStateBackend,
	"state-path":    config.KeyStatePath,
	"timeout":       config.KeyHTTPTimeoutSec,
	"max-retries":   config.KeyHTTPMaxRetries,
}

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.Short = "大学の掲示板を巡回し、新しいお知らせを Discord に通知します"
	rootCmd.Long = `掲示板の一覧ページを取得してお知らせを抽出し、未通知のものを古い順に Discord Webhook へ送信します。
設定は環境変数または .env ファイルで行い、フラグで上書きできます。`

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&Flags.EnvFile, "env-file", ".env", "読み込む .env ファイルのパス")
	flags.StringVar(&Flags.ListURL, "url", "", "掲示板の一覧URL (NOTICE_LIST_URL)")
	flags.StringVar(&Flags.Source, "source", "", "掲示板の取得方法: html または rss (BOARD_SOURCE)")
	flags.StringVar(&Flags.StateBackend, "state-backend", "", "既読IDの保存先: file, sqlite, redis (STATE_BACKEND)")
	flags.StringVar(&Flags.StatePath, "state-path", "", "状態ファイルまたはSQLiteのパス (STATE_PATH)")
	flags.IntVar(&Flags.TimeoutSec, "timeout", config.DefaultHTTPTimeoutSec, "HTTPリクエストのタイムアウト時間（秒） (HTTP_TIMEOUT_SEC)")
	flags.IntVar(&Flags.MaxRetries, "max-retries", 0, "掲示板取得のリトライ最大回数 (HTTP_MAX_RETRIES)")
	persistentFlags = flags
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	l, err := logger.New(logger.Config{Level: logger.LevelFor(clibase.Flags.Verbose)})
	if err != nil {
		return err
	}
	appLogger = l

	if err := config.LoadEnvFiles(Flags.EnvFile); err != nil {
		return err
	}

	v := viper.New()
	config.SetDefaults(v)
	for name, key := range flagBindings {
		if err := v.BindPFlag(key, persistentFlags.Lookup(name)); err != nil {
			return fmt.Errorf("フラグ %s のバインドに失敗しました: %w", name, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	appConfig = cfg

	appLogger.Debug("設定を読み込みました",
		zap.String("url", cfg.ListURL),
		zap.String("source", cfg.BoardSource),
		zap.String("state_backend", cfg.StateBackend),
		zap.Duration("timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.HTTPMaxRetries),
	)

	// 共有フェッチャーの初期化
	globalFetcher = httpclient.New(
		cfg.HTTPTimeout,
		httpclient.WithMaxRetries(uint64(cfg.HTTPMaxRetries)),
		httpclient.WithLogger(appLogger),
	)
	return nil
}

// syncLogger はバッファされたログを書き出します。
// clibase はコマンドのエラー時にプロセスを終了するため、各 RunE の defer で呼び出します。
func syncLogger() {
	if appLogger != nil {
		_ = appLogger.Sync()
	}
}

// --- エントリポイント ---

// Execute は、rootCmd を実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		runCmd,
		listCmd,
		watchCmd,
		stateCmd,
	)
}
