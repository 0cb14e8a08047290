package types

import (
	"strconv"
	"strings"
	"time"
)

// Notice は掲示板の1件のお知らせを正規化した値です。
// 生成後に変更されることはなく、常に値としてやり取りします。
type Notice struct {
	ID            string    // 掲示物の識別子 (数値風だが比較は文字列として行う)
	Title         string    // 表示用タイトル (前後の空白は除去済み)
	URL           string    // ボードのベースURLで解決済みの絶対URL
	Category      string    // 分類 (レイアウトによっては空)
	Writer        string    // 作成者 (ベストエフォート)
	Date          time.Time // 掲載日 (時刻成分は 00:00)
	Views         *int      // 閲覧数 (解析できない場合は nil)
	HasAttachment bool      // 添付ファイルの有無 (ベストエフォート)
}

// ViewsText は閲覧数を表示用の文字列に変換します。閲覧数がない場合は fallback を返します。
func (n Notice) ViewsText(fallback string) string {
	if n.Views == nil {
		return fallback
	}
	return strconv.Itoa(*n.Views)
}

// DateText は掲載日を YYYY-MM-DD 形式で返します。
func (n Notice) DateText() string {
	return n.Date.Format(time.DateOnly)
}

// IDSet は既読のお知らせIDの集合です。
type IDSet map[string]struct{}

// NewIDSet は与えられたIDから集合を生成します。IDは前後の空白を除去して格納され、空のIDは無視されます。
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add はIDを正規化して集合に追加します。
func (s IDSet) Add(id string) {
	id = NormalizeID(id)
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Has は正規化したIDが集合に含まれているかを返します。
func (s IDSet) Has(id string) bool {
	_, ok := s[NormalizeID(id)]
	return ok
}

// Clone は集合のコピーを返します。
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// NormalizeID は比較用にIDの前後の空白を除去します。
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// IsNumericID はIDが空でなく、すべてASCII数字で構成されているかを判定します。
func IsNumericID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// CompareNumericIDs は数字のみで構成された2つのIDを数値として比較します。
// 桁数で比較するため、int64 に収まらないIDでも正しく比較できます。
func CompareNumericIDs(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
