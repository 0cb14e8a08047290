package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (フィールド解析関連)
// ----------------------------------------------------------------------

const (
	// titleContainerSelectors はリンク内でタイトルだけを保持する要素です。
	titleContainerSelectors = "strong, .tit, .title, .subject"
	// attachmentSelectors は添付ファイルのアイコンや表示に使われる要素です。
	attachmentSelectors = "img, span, i, em"
)

var (
	categoryClassHints   = []string{"category", "cate"}
	writerClassHints     = []string{"writer", "name"}
	dateClassHints       = []string{"date"}
	viewsClassHints      = []string{"view", "hit"}
	attachmentKeywords   = []string{"file", "attach", "첨부", "파일"}
	fileCountClassHints  = []string{"file"}
	errRowWithoutLink    = errors.New("リンクを含まない行です")
	errRowWithoutID      = errors.New("hrefからお知らせIDを抽出できません")
	errRowWithInvalidURL = errors.New("hrefをURLとして解釈できません")
)

// parseRow は1行を Notice に変換します。ID やリンクが見つからない行はエラーを返し、呼び出し側でスキップされます。
// dateFound が false の場合、日付は now の日付で補完されています。
func parseRow(row Row, base *url.URL, now time.Time) (notice types.Notice, dateFound bool, err error) {
	link := row.Find("a[href]").First()
	if link.Length() == 0 {
		return types.Notice{}, false, errRowWithoutLink
	}

	href := strings.TrimSpace(link.AttrOr("href", ""))
	id, ok := ExtractID(href)
	if !ok {
		return types.Notice{}, false, fmt.Errorf("%w: %s", errRowWithoutID, href)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return types.Notice{}, false, fmt.Errorf("%w: %s: %v", errRowWithInvalidURL, href, err)
	}

	cells := row.Cells()
	date, dateFound := extractDate(row, cells, now)

	return types.Notice{
		ID:            id,
		Title:         extractTitle(link),
		URL:           base.ResolveReference(ref).String(),
		Category:      extractCategory(cells),
		Writer:        extractWriter(cells),
		Date:          date,
		Views:         extractViews(cells),
		HasAttachment: hasAttachment(row),
	}, dateFound, nil
}

// extractTitle はリンク内のタイトル要素、なければリンク全体のテキストを返します。
func extractTitle(link *goquery.Selection) string {
	if container := link.Find(titleContainerSelectors).First(); container.Length() > 0 {
		if title := cellText(container); title != "" {
			return title
		}
	}
	return cellText(link)
}

// extractCategory は分類セル、なければ2番目のセルのテキストを返します。
func extractCategory(cells []*goquery.Selection) string {
	if cell := findByClassHint(cells, categoryClassHints); cell != nil {
		return cellText(cell)
	}
	if len(cells) >= 2 {
		return cellText(cells[1])
	}
	return ""
}

// extractWriter は作成者セル、なければ末尾から3番目、さらになければ最後のセルのテキストを返します。
func extractWriter(cells []*goquery.Selection) string {
	if cell := findByClassHint(cells, writerClassHints); cell != nil {
		return cellText(cell)
	}
	if len(cells) >= 3 {
		return cellText(cells[len(cells)-3])
	}
	if len(cells) > 0 {
		return cellText(cells[len(cells)-1])
	}
	return ""
}

// extractDate は日付セル、行全体のテキスト、今日の順で日付を決定します。
func extractDate(row Row, cells []*goquery.Selection, now time.Time) (time.Time, bool) {
	cell := findByClassHint(cells, dateClassHints)
	if cell == nil {
		switch {
		case len(cells) >= 2:
			cell = cells[len(cells)-2]
		case len(cells) == 1:
			cell = cells[0]
		}
	}
	if cell != nil {
		if date, ok := parseDate(cellText(cell), now); ok {
			return date, true
		}
	}
	if date, ok := findDateInText(row.Text(), now); ok {
		return date, true
	}
	return today(now), false
}

// extractViews は閲覧数セル、なければ最後のセルを数値として解釈します。桁区切りのカンマは無視します。
func extractViews(cells []*goquery.Selection) *int {
	cell := findByClassHint(cells, viewsClassHints)
	if cell == nil && len(cells) > 0 {
		cell = cells[len(cells)-1]
	}
	if cell == nil {
		return nil
	}
	views, err := strconv.Atoi(strings.ReplaceAll(cellText(cell), ",", ""))
	if err != nil || views < 0 {
		return nil
	}
	return &views
}

// hasAttachment は添付ファイルを示すアイコンや表示が行に含まれるかを判定します。
// 件数を表示する要素 (class に file を含み、テキストが整数) は件数が正の場合のみ添付ありとします。
func hasAttachment(row Row) bool {
	found := false
	row.Find(attachmentSelectors).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(cellText(s))
		if hasClassHint(s, fileCountClassHints) {
			if count, err := strconv.Atoi(text); err == nil {
				found = count > 0
				return !found
			}
		}

		attrs := []string{
			strings.ToLower(s.AttrOr("alt", "")),
			strings.ToLower(s.AttrOr("title", "")),
			strings.ToLower(s.AttrOr("class", "")),
			text,
		}
		for _, attr := range attrs {
			if containsAny(attr, attachmentKeywords) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func findByClassHint(cells []*goquery.Selection, hints []string) *goquery.Selection {
	for _, cell := range cells {
		if hasClassHint(cell, hints) {
			return cell
		}
	}
	return nil
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(textUtils.NormalizeText(s.Text()))
}
