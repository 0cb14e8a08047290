package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// idQueryKeyTokens はIDを保持していると見なすクエリキーの部分文字列です。
var idQueryKeyTokens = []string{"artcl", "article", "id", "idx", "no", "seq"}

var artclViewPattern = regexp.MustCompile(`/(\d+)/artclView\.do`)

// ExtractID はリンクの href からお知らせIDを取り出します。
// 優先順位は (1) IDらしいキーを持つクエリ値、(2) /<数字>/artclView.do、(3) 最も長い数字のみのパスセグメントです。
// いずれにも該当しない場合は false を返します。
func ExtractID(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	parsed, err := url.Parse(href)
	if err == nil {
		if id, ok := idFromQuery(parsed.RawQuery); ok {
			return id, true
		}
	}

	if m := artclViewPattern.FindStringSubmatch(href); m != nil {
		return m[1], true
	}

	if err == nil {
		if id, ok := longestDigitSegment(parsed.Path); ok {
			return id, true
		}
	}
	return "", false
}

// idFromQuery はクエリ文字列を出現順に走査します。url.ParseQuery は順序を保持しないため自前で分割します。
func idFromQuery(rawQuery string) (string, bool) {
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}

		if !containsAny(strings.ToLower(key), idQueryKeyTokens) {
			continue
		}
		if candidate := strings.TrimSpace(value); types.IsNumericID(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// longestDigitSegment は数字のみのパスセグメントのうち最長のものを返します (同じ長さなら先のもの)。
// "107" のような掲示板IDより記事IDの方が長いことを前提にしています。
func longestDigitSegment(path string) (string, bool) {
	best := ""
	for _, seg := range strings.Split(path, "/") {
		if types.IsNumericID(seg) && len(seg) > len(best) {
			best = seg
		}
	}
	return best, best != ""
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
