package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Row は掲示板の1件分のエントリ (tr, li, div など) を表します。
type Row struct {
	*goquery.Selection
}

// Cells はフィールド抽出の対象となるセルを返します。
// td があればそれを、なければ定義リスト風の span/div/dd を文書順で返します。
func (r Row) Cells() []*goquery.Selection {
	cells := r.Find("td")
	if cells.Length() == 0 {
		cells = r.Find("span, div, dd")
	}
	return selections(cells)
}

// rowStrategy は行の探索戦略です。最初に1行以上を返した戦略が採用されます。
type rowStrategy struct {
	name string
	find func(doc *goquery.Document) *goquery.Selection
}

var (
	boardClassHints   = []string{"board", "list", "notice", "bbs"}
	divListClassHints = []string{"board-list", "notice-list", "bbs-list"}
	divItemClassHints = []string{"item", "row", "tr"}
)

// newLayoutSelectors は改修後の掲示板で使うリストコンテナです。
// 現行の一覧ページには存在しないため、サイト側のマークアップが確定したらここを差し替えます。
const newLayoutSelectors = "ul.board-list-new, ol.board-list-new, div.board-list-new > ul"

// rowStrategies は既知のレイアウトを新しいものから順に並べたものです。
var rowStrategies = []rowStrategy{
	{name: "new-layout", find: newLayoutRows},
	{name: "tbody", find: tbodyRows},
	{name: "board-table", find: boardTableRows},
	{name: "board-list", find: boardListRows},
	{name: "div-list", find: divListRows},
	{name: "fallback-table", find: fallbackTableRows},
}

// FindRows は HTML ドキュメントからお知らせの行を文書順で探します。
// 見つからない場合は空のスライスと、採用した戦略名として空文字を返します。
func FindRows(doc *goquery.Document) ([]Row, string) {
	for _, strategy := range rowStrategies {
		found := strategy.find(doc)
		if found == nil || found.Length() == 0 {
			continue
		}
		rows := make([]Row, 0, found.Length())
		found.Each(func(_ int, s *goquery.Selection) {
			rows = append(rows, Row{Selection: s})
		})
		return rows, strategy.name
	}
	return []Row{}, ""
}

// newLayoutRows は新レイアウトのリストコンテナ直下の項目を返します。
func newLayoutRows(doc *goquery.Document) *goquery.Selection {
	return doc.Find(newLayoutSelectors).First().ChildrenFiltered("li")
}

// tbodyRows は、IDを取り出せるリンクを含む最初の tbody の行を返します。ヘッダー行は除外します。
// HTML パーサーはすべての table に tbody を補うため、レイアウト用のテーブルはリンクの有無で読み飛ばします。
func tbodyRows(doc *goquery.Document) *goquery.Selection {
	var rows *goquery.Selection
	doc.Find("tbody").EachWithBreak(func(_ int, tbody *goquery.Selection) bool {
		found := withoutHeaderRows(tbody.Find("tr"))
		if found.Length() == 0 || !hasIdentifiableLink(found) {
			return true
		}
		rows = found
		return false
	})
	return rows
}

// hasIdentifiableLink は行のいずれかが ExtractID で解釈できるリンクを持つかを判定します。
func hasIdentifiableLink(rows *goquery.Selection) bool {
	found := false
	rows.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		_, found = ExtractID(a.AttrOr("href", ""))
		return !found
	})
	return found
}

// boardTableRows は掲示板らしいクラスを持つ最初のテーブルから、ヘッダー行を除いた行を返します。
func boardTableRows(doc *goquery.Document) *goquery.Selection {
	table := firstWithClassHint(doc.Find("table"), boardClassHints)
	if table == nil {
		return nil
	}
	return withoutHeaderRows(table.Find("tr"))
}

// boardListRows は掲示板らしいクラスを持つ最初の ul の項目を返します。
func boardListRows(doc *goquery.Document) *goquery.Selection {
	list := firstWithClassHint(doc.Find("ul"), boardClassHints)
	if list == nil {
		return nil
	}
	return list.Find("li")
}

// divListRows は div ベースのリストから項目らしい div を返します。
func divListRows(doc *goquery.Document) *goquery.Selection {
	container := firstWithClassHint(doc.Find("div"), divListClassHints)
	if container == nil {
		return nil
	}
	return container.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasClassHint(s, divItemClassHints)
	})
}

// fallbackTableRows は最後の手段として、リンクを含みヘッダーセルを含まない行を持つ最初のテーブルを探します。
func fallbackTableRows(doc *goquery.Document) *goquery.Selection {
	var rows *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		found := withoutHeaderRows(table.Find("tr")).FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Find("a[href]").Length() > 0
		})
		if found.Length() == 0 {
			return true
		}
		rows = found
		return false
	})
	return rows
}

func withoutHeaderRows(rows *goquery.Selection) *goquery.Selection {
	return rows.FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Find("th").Length() == 0
	})
}

// firstWithClassHint はクラス名にヒントのいずれかを含む最初の要素を返します。
func firstWithClassHint(candidates *goquery.Selection, hints []string) *goquery.Selection {
	var found *goquery.Selection
	candidates.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if hasClassHint(s, hints) {
			found = s
			return false
		}
		return true
	})
	return found
}

// hasClassHint は要素のいずれかのクラス名がヒントのいずれかを部分文字列として含むかを判定します。
func hasClassHint(s *goquery.Selection, hints []string) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	for _, name := range strings.Fields(strings.ToLower(class)) {
		for _, hint := range hints {
			if strings.Contains(name, hint) {
				return true
			}
		}
	}
	return false
}

func selections(s *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		out = append(out, item)
	})
	return out
}
