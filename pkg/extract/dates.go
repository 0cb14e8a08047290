package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts は日付セルに対して順に試すレイアウトです。月日のみの形式は今年として扱います。
var dateLayouts = []string{
	"2006.1.2",
	"2006-1-2",
	"2006/1/2",
	"06.1.2",
	"06-1-2",
	"1.2",
	"1-2",
}

var datePattern = regexp.MustCompile(`(\d{4})[.\-/](\d{1,2})[.\-/](\d{1,2})`)

// parseDate は日付セルの文字列を now のロケーションにおける日付 (00:00) に変換します。
func parseDate(text string, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		year := parsed.Year()
		if year == 0 {
			year = now.Year()
		}
		return civilDate(year, parsed.Month(), parsed.Day(), now.Location()), true
	}
	return time.Time{}, false
}

// findDateInText は行全体のテキストから YYYY[.-/]MM[.-/]DD を探します。実在しない日付は無視します。
func findDateInText(text string, now time.Time) (time.Time, bool) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	date := civilDate(year, time.Month(month), day, now.Location())
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

// today は now の日付部分を返します。
func today(now time.Time) time.Time {
	return civilDate(now.Year(), now.Month(), now.Day(), now.Location())
}

func civilDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
