package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv はテスト中に設定キーの環境変数を未設定にし、終了後に元へ戻します。
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		KeyWebhookURL, KeyListURL, KeyMaxSeenIDs, KeyFilterByDate, KeyRecencyWindowDays,
		KeyStateBackend, KeyStatePath, KeyRedisAddr, KeyRedisKey, KeyBoardSource,
		KeyTimezone, KeyTitlePrefix, KeyWatchSchedule, KeyHTTPTimeoutSec, KeyHTTPMaxRetries,
	}
	for _, key := range keys {
		t.Setenv(envName(key), "")
		require.NoError(t, os.Unsetenv(envName(key)))
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "", cfg.WebhookURL)
	assert.Equal(t, DefaultListURL, cfg.ListURL)
	assert.Equal(t, 500, cfg.MaxSeenIDs)
	assert.False(t, cfg.FilterByDate)
	assert.Equal(t, 1, cfg.RecencyWindowDays)
	assert.Equal(t, BackendFile, cfg.StateBackend)
	assert.Equal(t, "state.json", cfg.StatePath)
	assert.Equal(t, SourceHTML, cfg.BoardSource)
	assert.Equal(t, "Asia/Seoul", cfg.Location.String())
	assert.Equal(t, "[학사공지]", cfg.TitlePrefix)
	assert.Equal(t, "*/10 * * * *", cfg.WatchSchedule)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0, cfg.HTTPMaxRetries)

	assert.ErrorIs(t, cfg.ValidateDelivery(), ErrInvalidConfig, "Webhook URLは配信時に必須")
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_WEBHOOK_URL", " https://discord.com/api/webhooks/1/abc ")
	t.Setenv("NOTICE_LIST_URL", "www.tukorea.ac.kr/tukorea/1096/subview.do")
	t.Setenv("MAX_SEEN_IDS", "50")
	t.Setenv("FILTER_BY_DATE", "true")
	t.Setenv("RECENCY_WINDOW_DAYS", "3")
	t.Setenv("STATE_BACKEND", "SQLite")
	t.Setenv("BOARD_SOURCE", "rss")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", cfg.WebhookURL)
	assert.Equal(t, "https://www.tukorea.ac.kr/tukorea/1096/subview.do", cfg.ListURL, "スキームを補完する")
	assert.Equal(t, 50, cfg.MaxSeenIDs)
	assert.True(t, cfg.FilterByDate)
	assert.Equal(t, 3, cfg.RecencyWindowDays)
	assert.Equal(t, BackendSQLite, cfg.StateBackend)
	assert.Equal(t, SourceRSS, cfg.BoardSource)
	assert.NoError(t, cfg.ValidateDelivery())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"整数でないMAX_SEEN_IDS", "MAX_SEEN_IDS", "many"},
		{"0のMAX_SEEN_IDS", "MAX_SEEN_IDS", "0"},
		{"真偽値でないFILTER_BY_DATE", "FILTER_BY_DATE", "sometimes"},
		{"0のRECENCY_WINDOW_DAYS", "RECENCY_WINDOW_DAYS", "0"},
		{"負のHTTP_MAX_RETRIES", "HTTP_MAX_RETRIES", "-1"},
		{"不明なバックエンド", "STATE_BACKEND", "mysql"},
		{"不明なソース", "BOARD_SOURCE", "json"},
		{"不明なタイムゾーン", "TIMEZONE", "Mars/Olympus"},
		{"不正なスキーム", "NOTICE_LIST_URL", "ftp://example.com/list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load(newViper())
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TITLE_PREFIX=[장학공지]\nMAX_SEEN_IDS=20\n"), 0o644))
	t.Setenv("MAX_SEEN_IDS", "30")

	require.NoError(t, LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "[장학공지]", cfg.TitlePrefix)
	assert.Equal(t, 30, cfg.MaxSeenIDs, "既存の環境変数が優先される")
}

func TestEnsureScheme(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"https://example.com", "https://example.com", false},
		{"http://example.com", "http://example.com", false},
		{"example.com/list", "https://example.com/list", false},
		{"ftp://example.com", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := EnsureScheme(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
