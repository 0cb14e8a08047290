// Package logger は zap の構造化ロガーを生成します。
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel は既定のログレベルです。
const DefaultLevel = "info"

// Config はロガーの設定です。
type Config struct {
	// Level は出力する最小レベル (debug, info, warn, error)。
	Level string
	// OutputPaths はログの出力先です。空の場合は stderr。
	OutputPaths []string
}

// New は JSON エンコーダー、ISO8601 時刻、短い呼び出し元表記の zap.Logger を生成します。
func New(cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zapCfg.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	// 1回の実行で出るログは少ないため、サンプリングで間引かない
	zapCfg.Sampling = nil

	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	z, err := zapCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return z, nil
}

// ParseLevel は文字列のレベルを zapcore.Level に変換します。不明な値は info です。
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LevelFor は verbose フラグに応じたレベル名を返します。
func LevelFor(verbose bool) string {
	if verbose {
		return "debug"
	}
	return DefaultLevel
}
