// Package novelty は解析済みのお知らせから未読のものを選び出します。
package novelty

import (
	"sort"
	"time"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// DefaultWindowDays は直近期間フィルタの既定の日数です (今日のみ)。
const DefaultWindowDays = 1

// Options は新着判定の設定です。
type Options struct {
	// FilterByRecency が true の場合、ReferenceDate から WindowDays 日以内の掲載日のみを残します。
	FilterByRecency bool
	// WindowDays は 1 以上。0 以下は DefaultWindowDays として扱います。
	WindowDays int
	// ReferenceDate は「今日」。ゼロ値の場合は time.Now() を使用します。
	ReferenceDate time.Time
}

// Select は候補のうち seen に含まれないものを、数値IDの昇順 (古い順) で返します。
// 入力は変更せず、同じ入力に対して常に同じ結果を返します。
// seen に含まれるIDは直近期間内であっても除外されます。
func Select(candidates []types.Notice, seen types.IDSet, opts Options) []types.Notice {
	var cutoff string
	if opts.FilterByRecency {
		cutoff = dayKey(Cutoff(opts.ReferenceDate, opts.WindowDays))
	}

	selected := make([]types.Notice, 0, len(candidates))
	for _, n := range candidates {
		n.ID = types.NormalizeID(n.ID)
		if seen.Has(n.ID) {
			continue
		}
		if opts.FilterByRecency && dayKey(n.Date) < cutoff {
			continue
		}
		selected = append(selected, n)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return less(selected[i].ID, selected[j].ID)
	})
	return selected
}

// Cutoff は直近期間の最初の日 (reference - (windowDays - 1)) を返します。
func Cutoff(reference time.Time, windowDays int) time.Time {
	if reference.IsZero() {
		reference = time.Now()
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	y, m, d := reference.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, reference.Location()).AddDate(0, 0, -(windowDays - 1))
}

// less は数値IDを先に数値の昇順で並べ、数値でないIDはその後ろに元の順序で並べます。
func less(a, b string) bool {
	aNum, bNum := types.IsNumericID(a), types.IsNumericID(b)
	switch {
	case aNum && bNum:
		return types.CompareNumericIDs(a, b) < 0
	case aNum:
		return true
	default:
		return false
	}
}

// dayKey は日付を暦日として比較するためのキーです。各値が持つロケーションでの日付を使います。
func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
