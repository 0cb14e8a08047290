package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/shouni/go-notice-bot/pkg/extract"
	"github.com/shouni/go-notice-bot/pkg/types"
)

// Parserが依存すべきインターフェース
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Parser は掲示板の RSS/Atom フィードをお知らせの一覧に変換します。
type Parser struct {
	client Fetcher // インターフェースに依存
	logger *zap.Logger
	now    func() time.Time
}

// NewParser は新しい Parser インスタンスを初期化し、依存関係を注入します。
// now のロケーションが掲載日の基準になります。
func NewParser(client Fetcher, logger *zap.Logger, now func() time.Time) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{client: client, logger: logger, now: now}
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := p.client.FetchBytes(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s): %w", feedURL, err)
	}

	fp := gofeed.NewParser()
	feed, parseErr := fp.Parse(bytes.NewReader(body))
	if parseErr != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, parseErr)
	}
	return feed, nil
}

// FetchNotices はフィードを取得し、各アイテムをお知らせに変換します。
// IDを決定できないアイテムはスキップします。閲覧数はフィードに含まれないため常に nil です。
func (p *Parser) FetchNotices(ctx context.Context, feedURL string) ([]types.Notice, error) {
	feed, err := p.FetchAndParse(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードURLのパースに失敗しました: %w", err)
	}

	now := p.now()
	notices := make([]types.Notice, 0, len(feed.Items))
	for _, item := range feed.Items {
		notice, ok := p.toNotice(item, base, now)
		if !ok {
			continue
		}
		notices = append(notices, notice)
	}
	return notices, nil
}

func (p *Parser) toNotice(item *gofeed.Item, base *url.URL, now time.Time) (types.Notice, bool) {
	id, ok := itemID(item)
	if !ok {
		p.logger.Warn("フィードのアイテムからお知らせIDを抽出できません", zap.String("link", item.Link), zap.String("guid", item.GUID))
		return types.Notice{}, false
	}

	link := strings.TrimSpace(item.Link)
	if ref, err := url.Parse(link); err == nil {
		link = base.ResolveReference(ref).String()
	}

	var category string
	if len(item.Categories) > 0 {
		category = strings.TrimSpace(item.Categories[0])
	}

	return types.Notice{
		ID:            id,
		Title:         strings.TrimSpace(item.Title),
		URL:           link,
		Category:      category,
		Writer:        itemWriter(item),
		Date:          p.itemDate(item, now),
		HasAttachment: len(item.Enclosures) > 0,
	}, true
}

// itemID はリンク、GUID の順でお知らせIDを探します。
func itemID(item *gofeed.Item) (string, bool) {
	if id, ok := extract.ExtractID(item.Link); ok {
		return id, true
	}
	guid := strings.TrimSpace(item.GUID)
	if types.IsNumericID(guid) {
		return guid, true
	}
	return extract.ExtractID(guid)
}

func itemWriter(item *gofeed.Item) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			return strings.TrimSpace(author.Name)
		}
	}
	return ""
}

// itemDate は公開日時、更新日時の順に now のロケーションでの日付へ変換します。どちらもなければ今日です。
func (p *Parser) itemDate(item *gofeed.Item, now time.Time) time.Time {
	ts := item.PublishedParsed
	if ts == nil {
		ts = item.UpdatedParsed
	}
	if ts == nil {
		p.logger.Warn("日付が見つからないため今日の日付を使用します", zap.String("link", item.Link))
		ts = &now
	}
	y, m, d := ts.In(now.Location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
