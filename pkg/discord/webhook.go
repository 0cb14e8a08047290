// Package discord は Discord の Webhook にお知らせを Embed として送信します。
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/httpclient"
	"github.com/shouni/go-notice-bot/pkg/types"
)

const (
	DefaultTitlePrefix = "[학사공지]"
	DefaultRetryAfter  = time.Second

	viewsFallback = "N/A"
	maxErrorBody  = 512
)

// RateLimitError は Webhook が 429 を返したことを示します。RetryAfter だけ待ってから同じお知らせを再送できます。
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Discordのレート制限に達しました (retry after %s)", e.Wait)
}

// RetryAfter は再送までの待機時間を返します。
func (e *RateLimitError) RetryAfter() time.Duration {
	return e.Wait
}

// DeliveryError は 2xx と 429 以外のステータスで送信に失敗したことを示します。
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("Discord Webhookの送信に失敗しました: ステータスコード %d, ボディ: %s", e.StatusCode, e.Body)
}

// Embed は Discord の Embed オブジェクトのうち、使用するフィールドのみを表します。
type Embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// Payload は Webhook に POST する JSON の本体です。
type Payload struct {
	Embeds []Embed `json:"embeds"`
}

// Webhook は1つの Webhook URL への送信を行います。
type Webhook struct {
	url         string
	client      httpclient.Doer
	titlePrefix string
	logger      *zap.Logger
}

// Option は Webhook の設定を行うための関数型です。
type Option func(*Webhook)

// WithHTTPClient は送信に使う Doer を設定します。
func WithHTTPClient(doer httpclient.Doer) Option {
	return func(w *Webhook) {
		w.client = doer
	}
}

// WithTitlePrefix は Embed タイトルの接頭辞を設定します。
func WithTitlePrefix(prefix string) Option {
	return func(w *Webhook) {
		w.titlePrefix = prefix
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Webhook) {
		w.logger = logger
	}
}

// NewWebhook は新しい Webhook を生成します。
func NewWebhook(webhookURL string, opts ...Option) (*Webhook, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, errors.New("discord.NewWebhook: webhook URL cannot be empty")
	}
	w := &Webhook{
		url:         webhookURL,
		client:      &http.Client{Timeout: httpclient.DefaultHTTPTimeout},
		titlePrefix: DefaultTitlePrefix,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// BuildPayload はお知らせを1つの Embed を持つ Payload に変換します。
func (w *Webhook) BuildPayload(n types.Notice) Payload {
	attachment := "없음"
	if n.HasAttachment {
		attachment = "있음"
	}
	title := n.Title
	if w.titlePrefix != "" {
		title = w.titlePrefix + " " + n.Title
	}
	return Payload{Embeds: []Embed{{
		Title:       title,
		URL:         n.URL,
		Description: fmt.Sprintf("%s · %s · %s", n.Category, n.DateText(), n.Writer),
		Footer: &EmbedFooter{
			Text: fmt.Sprintf("조회수 %s / 첨부파일 %s", n.ViewsText(viewsFallback), attachment),
		},
	}}}
}

// Deliver はお知らせを1件送信します。
// 429 の場合は *RateLimitError、その他の 2xx 以外は *DeliveryError を返します。
func (w *Webhook) Deliver(ctx context.Context, n types.Notice) error {
	body, err := json.Marshal(w.BuildPayload(n))
	if err != nil {
		return fmt.Errorf("Payloadのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POSTリクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("Discord Webhookへのリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, httpclient.MaxBodySize))
	if err != nil {
		w.logger.Debug("レスポンスボディの読み込みに失敗しました",
			zap.String("id", n.ID), zap.Int("status", resp.StatusCode), zap.Error(err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		w.logger.Debug("Discordへ送信しました", zap.String("id", n.ID))
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Wait: retryAfter(resp.Header, respBody)}
	default:
		text := strings.TrimSpace(string(respBody))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody] + "..."
		}
		return &DeliveryError{StatusCode: resp.StatusCode, Body: text}
	}
}

// retryAfter は JSON ボディの retry_after (秒)、Retry-After ヘッダー (秒) の順に待機時間を決定します。
func retryAfter(header http.Header, body []byte) time.Duration {
	var rateLimit struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &rateLimit); err == nil && rateLimit.RetryAfter != nil && *rateLimit.RetryAfter >= 0 {
		return seconds(*rateLimit.RetryAfter)
	}
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return seconds(secs)
		}
	}
	return DefaultRetryAfter
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
