// Package config は環境変数、.env ファイル、コマンドラインフラグから設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // tzdata を持たないコンテナでも TIMEZONE を解決する

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 設定キー。環境変数名はキーを大文字にしたものです。
const (
	KeyWebhookURL        = "discord_webhook_url"
	KeyListURL           = "notice_list_url"
	KeyMaxSeenIDs        = "max_seen_ids"
	KeyFilterByDate      = "filter_by_date"
	KeyRecencyWindowDays = "recency_window_days"
	KeyStateBackend      = "state_backend"
	KeyStatePath         = "state_path"
	KeyRedisAddr         = "redis_addr"
	KeyRedisKey          = "redis_key"
	KeyBoardSource       = "board_source"
	KeyTimezone          = "timezone"
	KeyTitlePrefix       = "title_prefix"
	KeyWatchSchedule     = "watch_schedule"
	KeyHTTPTimeoutSec    = "http_timeout_sec"
	KeyHTTPMaxRetries    = "http_max_retries"
)

const (
	DefaultListURL           = "https://www.tukorea.ac.kr/tukorea/1096/subview.do"
	DefaultMaxSeenIDs        = 500
	DefaultRecencyWindowDays = 1
	DefaultStatePath         = "state.json"
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisKey          = "notice-bot:seen_ids"
	DefaultTimezone          = "Asia/Seoul"
	DefaultTitlePrefix       = "[학사공지]"
	DefaultWatchSchedule     = "*/10 * * * *"
	DefaultHTTPTimeoutSec    = 10

	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	SourceHTML = "html"
	SourceRSS  = "rss"
)

// ErrInvalidConfig は設定値が不正であることを示します。
var ErrInvalidConfig = errors.New("設定エラー")

// Config はアプリケーション全体の設定です。
type Config struct {
	WebhookURL        string
	ListURL           string
	MaxSeenIDs        int
	FilterByDate      bool
	RecencyWindowDays int
	StateBackend      string
	StatePath         string
	RedisAddr         string
	RedisKey          string
	BoardSource       string
	Location          *time.Location
	TitlePrefix       string
	WatchSchedule     string
	HTTPTimeout       time.Duration
	HTTPMaxRetries    int
}

// SetDefaults は v に既定値を設定し、環境変数の自動参照を有効にします。
func SetDefaults(v *viper.Viper) {
	v.AutomaticEnv()

	v.SetDefault(KeyListURL, DefaultListURL)
	v.SetDefault(KeyMaxSeenIDs, DefaultMaxSeenIDs)
	v.SetDefault(KeyFilterByDate, false)
	v.SetDefault(KeyRecencyWindowDays, DefaultRecencyWindowDays)
	v.SetDefault(KeyStateBackend, BackendFile)
	v.SetDefault(KeyStatePath, DefaultStatePath)
	v.SetDefault(KeyRedisAddr, DefaultRedisAddr)
	v.SetDefault(KeyRedisKey, DefaultRedisKey)
	v.SetDefault(KeyBoardSource, SourceHTML)
	v.SetDefault(KeyTimezone, DefaultTimezone)
	v.SetDefault(KeyTitlePrefix, DefaultTitlePrefix)
	v.SetDefault(KeyWatchSchedule, DefaultWatchSchedule)
	v.SetDefault(KeyHTTPTimeoutSec, DefaultHTTPTimeoutSec)
	v.SetDefault(KeyHTTPMaxRetries, 0)
}

// LoadEnvFiles は存在する .env ファイルを読み込みます。既に設定されている環境変数は上書きしません。
// paths が空の場合はカレントディレクトリの .env を対象にします。
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf(".envファイルの読み込みに失敗しました (%s): %w", path, err)
		}
	}
	return nil
}

// Load は v から設定を読み込み、検証します。Webhook URL の必須チェックは ValidateDelivery で行います。
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		WebhookURL:    strings.TrimSpace(v.GetString(KeyWebhookURL)),
		StatePath:     strings.TrimSpace(v.GetString(KeyStatePath)),
		RedisAddr:     strings.TrimSpace(v.GetString(KeyRedisAddr)),
		RedisKey:      strings.TrimSpace(v.GetString(KeyRedisKey)),
		TitlePrefix:   strings.TrimSpace(v.GetString(KeyTitlePrefix)),
		WatchSchedule: strings.TrimSpace(v.GetString(KeyWatchSchedule)),
	}

	var err error
	if cfg.ListURL, err = EnsureScheme(strings.TrimSpace(v.GetString(KeyListURL))); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, envName(KeyListURL), err)
	}
	if cfg.MaxSeenIDs, err = positiveInt(v, KeyMaxSeenIDs); err != nil {
		return nil, err
	}
	if cfg.RecencyWindowDays, err = positiveInt(v, KeyRecencyWindowDays); err != nil {
		return nil, err
	}
	timeoutSec, err := positiveInt(v, KeyHTTPTimeoutSec)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = time.Duration(timeoutSec) * time.Second
	if cfg.HTTPMaxRetries, err = nonNegativeInt(v, KeyHTTPMaxRetries); err != nil {
		return nil, err
	}
	if cfg.FilterByDate, err = boolValue(v, KeyFilterByDate); err != nil {
		return nil, err
	}
	if cfg.StateBackend, err = oneOf(v, KeyStateBackend, BackendFile, BackendSQLite, BackendRedis); err != nil {
		return nil, err
	}
	if cfg.BoardSource, err = oneOf(v, KeyBoardSource, SourceHTML, SourceRSS); err != nil {
		return nil, err
	}

	tz := strings.TrimSpace(v.GetString(KeyTimezone))
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w: %s: 不明なタイムゾーンです: %q", ErrInvalidConfig, envName(KeyTimezone), tz)
	}

	if cfg.StateBackend != BackendRedis && cfg.StatePath == "" {
		return nil, fmt.Errorf("%w: %s は空にできません", ErrInvalidConfig, envName(KeyStatePath))
	}
	return cfg, nil
}

// ValidateDelivery は配信を行うコマンドに必要な設定を検証します。
func (c *Config) ValidateDelivery() error {
	if c.WebhookURL == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, envName(KeyWebhookURL))
	}
	if _, err := EnsureScheme(c.WebhookURL); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, envName(KeyWebhookURL), err)
	}
	return nil
}

// Now は設定されたタイムゾーンでの現在時刻を返します。
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location)
}

func positiveInt(v *viper.Viper, key string) (int, error) {
	n, err := intValue(v, key)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s must be greater than 0: %d", ErrInvalidConfig, envName(key), n)
	}
	return n, nil
}

func nonNegativeInt(v *viper.Viper, key string) (int, error) {
	n, err := intValue(v, key)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative: %d", ErrInvalidConfig, envName(key), n)
	}
	return n, nil
}

// intValue は viper の暗黙の変換 (不正値が 0 になる) を避けるため、文字列から厳密に変換します。
func intValue(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer: %q", ErrInvalidConfig, envName(key), raw)
	}
	return n, nil
}

func boolValue(v *viper.Viper, key string) (bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean: %q", ErrInvalidConfig, envName(key), raw)
	}
	return b, nil
}

func oneOf(v *viper.Viper, key string, allowed ...string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v.GetString(key)))
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s must be one of %s: %q", ErrInvalidConfig, envName(key), strings.Join(allowed, ", "), value)
}

func envName(key string) string {
	return strings.ToUpper(key)
}
