package extract_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-notice-bot/pkg/extract"
	"github.com/shouni/go-notice-bot/pkg/types"
)

// ======================================================================
// モック (Mock) の定義
// ======================================================================

// MockFetcher はテスト用の extract.Fetcher インターフェースの実装です。
type MockFetcher struct {
	htmlContent string
	fetchError  error
	requested   []string
}

func (m *MockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.requested = append(m.requested, url)
	if m.fetchError != nil {
		return nil, m.fetchError
	}
	return []byte(m.htmlContent), nil
}

var kst = time.FixedZone("KST", 9*60*60)

func fixedClock() time.Time {
	return time.Date(2024, 5, 3, 15, 30, 0, 0, kst)
}

func newTestExtractor(t *testing.T, html string) *extract.Extractor {
	t.Helper()
	extractor, err := extract.NewExtractor(&MockFetcher{htmlContent: html}, extract.WithClock(fixedClock))
	require.NoError(t, err)
	return extractor
}

func ids(notices []types.Notice) []string {
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.ID)
	}
	return out
}

const sampleHTML = `
<table class="board-list">
  <tbody>
    <tr>
      <td class="no">공지</td>
      <td class="category">일반공지</td>
      <td class="title">
        <a href="/bbs/tukorea/107/145435/artclView.do">첫 번째 공지</a>
        <span class="ico-file">첨부</span>
      </td>
      <td class="writer">교무팀</td>
      <td class="date">2024.05.01</td>
      <td class="views">123</td>
    </tr>
    <tr>
      <td class="no">2</td>
      <td class="category">장학공지</td>
      <td class="title">
        <a href="/bbs/tukorea/107/145434/artclView.do">두 번째 공지</a>
      </td>
      <td class="writer">학생지원팀</td>
      <td class="date">2024.04.30</td>
      <td class="views">-</td>
    </tr>
  </tbody>
</table>
`

// ======================================================================
// テスト関数
// ======================================================================

func TestNewExtractor(t *testing.T) {
	t.Run("success_with_valid_fetcher", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{})
		assert.NoError(t, err)
		assert.NotNil(t, extractor)
	})

	t.Run("error_with_nil_fetcher", func(t *testing.T) {
		extractor, err := extract.NewExtractor(nil)
		assert.Error(t, err)
		assert.Nil(t, extractor)
		assert.Contains(t, err.Error(), "Fetcher cannot be nil")
	})
}

func TestParseNotices_ExtractsFields(t *testing.T) {
	notices, err := newTestExtractor(t, "").ParseNotices([]byte(sampleHTML), "https://www.tukorea.ac.kr")
	require.NoError(t, err)
	require.Len(t, notices, 2)

	first, second := notices[0], notices[1]

	assert.Equal(t, "145435", first.ID)
	assert.Equal(t, "첫 번째 공지", first.Title)
	assert.Equal(t, "https://www.tukorea.ac.kr/bbs/tukorea/107/145435/artclView.do", first.URL)
	assert.Equal(t, "일반공지", first.Category)
	assert.Equal(t, "교무팀", first.Writer)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, kst), first.Date)
	require.NotNil(t, first.Views)
	assert.Equal(t, 123, *first.Views)
	assert.True(t, first.HasAttachment)

	assert.Equal(t, "145434", second.ID)
	assert.Equal(t, "두 번째 공지", second.Title)
	assert.Equal(t, "https://www.tukorea.ac.kr/bbs/tukorea/107/145434/artclView.do", second.URL)
	assert.Equal(t, "장학공지", second.Category)
	assert.Equal(t, "학생지원팀", second.Writer)
	assert.Equal(t, time.Date(2024, 4, 30, 0, 0, 0, 0, kst), second.Date)
	assert.Nil(t, second.Views)
	assert.False(t, second.HasAttachment)
}

func TestParseNotices_LayoutVariants(t *testing.T) {
	testCases := []struct {
		name        string
		html        string
		expectedIDs []string
	}{
		{
			name: "新レイアウト_ul直下のli",
			html: `<div class="wrap"><ul class="board-list-new">
				<li><a href="/bbs/tukorea/107/145500/artclView.do"><strong class="tit">새 공지</strong></a><span class="date">2024.05.02</span></li>
				<li><a href="/bbs/tukorea/107/145501/artclView.do"><strong class="tit">새 공지 2</strong></a><span class="date">2024.05.03</span></li>
			</ul></div>`,
			expectedIDs: []string{"145500", "145501"},
		},
		{
			name: "theadなしテーブル_ヘッダー行は除外",
			html: `<table class="bbs">
				<tr><th>번호</th><th>제목</th><th>날짜</th></tr>
				<tr><td>1</td><td><a href="/bbs/notice/100/artclView.do">A</a></td><td>2024.05.01</td></tr>
				<tr><td>2</td><td><a href="/bbs/notice/101/artclView.do">B</a></td><td>2024.05.02</td></tr>
			</table>`,
			expectedIDs: []string{"100", "101"},
		},
		{
			name: "先頭のレイアウト用テーブルより掲示板テーブルを優先",
			html: `<table class="layout"><tr>
					<td><a href="/tukorea/index.do">홈</a></td>
					<td><a href="/tukorea/login.do">로그인</a></td>
				</tr></table>
				<table class="board-table">
				<tr><th>번호</th><th>제목</th><th>날짜</th></tr>
				<tr><td>1</td><td><a href="/bbs/tukorea/107/145435/artclView.do">첫 번째 공지</a></td><td>2024.05.01</td></tr>
			</table>`,
			expectedIDs: []string{"145435"},
		},
		{
			name: "ulリスト",
			html: `<ul class="notice-list">
				<li><a href="/board/view.do?idx=2001">첫째</a><span>2024-05-01</span></li>
				<li><a href="/board/view.do?idx=2002">둘째</a><span>2024-05-02</span></li>
			</ul>`,
			expectedIDs: []string{"2001", "2002"},
		},
		{
			name: "divリスト",
			html: `<div class="bbs-list">
				<div class="item"><a href="/notice/view?seq=31">가</a><div class="info">2024/05/01</div></div>
				<div class="notice-row"><a href="/notice/view?seq=32">나</a><div class="info">2024/05/02</div></div>
				<div class="banner">광고</div>
			</div>`,
			expectedIDs: []string{"31", "32"},
		},
		{
			name:        "行が見つからない場合は空",
			html:        `<html><body><p>공지사항이 없습니다</p></body></html>`,
			expectedIDs: []string{},
		},
		{
			name: "リンクやIDのない行はスキップ",
			html: `<table class="board"><tbody>
				<tr><td colspan="3">등록된 공지가 없습니다</td></tr>
				<tr><td>1</td><td><a href="#">바로가기</a></td><td>2024.05.01</td></tr>
				<tr><td>2</td><td><a href="/bbs/tukorea/107/145436/artclView.do">C</a></td><td>2024.05.01</td></tr>
			</tbody></table>`,
			expectedIDs: []string{"145436"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			notices, err := newTestExtractor(t, "").ParseNotices([]byte(tc.html), "https://www.tukorea.ac.kr/tukorea/1096/subview.do")
			require.NoError(t, err)
			assert.Equal(t, tc.expectedIDs, ids(notices))
		})
	}
}

func TestParseNotices_DateFallbacks(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected time.Time
	}{
		{
			name: "日付セルの書式",
			html: `<table><tbody><tr><td>1</td><td><a href="/a/1/artclView.do">t</a></td><td class="date">24.05.01</td><td>9</td></tr></tbody></table>`,
			expected: time.Date(2024, 5, 1, 0, 0, 0, 0, kst),
		},
		{
			name: "月日のみは今年",
			html: `<table><tbody><tr><td>1</td><td><a href="/a/1/artclView.do">t</a></td><td class="date">04.15</td><td>9</td></tr></tbody></table>`,
			expected: time.Date(2024, 4, 15, 0, 0, 0, 0, kst),
		},
		{
			name: "行テキストから日付を探す",
			html: `<table><tbody><tr><td><a href="/a/1/artclView.do">t</a> 작성일 2023-12-24 (일)</td></tr></tbody></table>`,
			expected: time.Date(2023, 12, 24, 0, 0, 0, 0, kst),
		},
		{
			name: "日付がなければ今日",
			html: `<table><tbody><tr><td><a href="/a/1/artclView.do">t</a></td><td>교무팀</td></tr></tbody></table>`,
			expected: time.Date(2024, 5, 3, 0, 0, 0, 0, kst),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			notices, err := newTestExtractor(t, "").ParseNotices([]byte(tc.html), "https://example.ac.kr/")
			require.NoError(t, err)
			require.Len(t, notices, 1)
			assert.Equal(t, tc.expected, notices[0].Date)
		})
	}
}

func TestParseNotices_ViewsAndAttachment(t *testing.T) {
	const html = `<table><tbody>
		<tr><td><a href="/a/1/artclView.do">a</a></td><td>2024.05.01</td><td class="hit">1,234</td></tr>
		<tr><td><a href="/a/2/artclView.do">b</a><span class="file-cnt">0</span></td><td>2024.05.01</td><td class="hit">7</td></tr>
		<tr><td><a href="/a/3/artclView.do">c</a><span class="file-cnt">2</span></td><td>2024.05.01</td><td class="hit">-3</td></tr>
		<tr><td><a href="/a/4/artclView.do">d</a><img src="/i.png" alt="첨부파일"></td><td>2024.05.01</td></tr>
	</tbody></table>`

	notices, err := newTestExtractor(t, "").ParseNotices([]byte(html), "https://example.ac.kr/")
	require.NoError(t, err)
	require.Len(t, notices, 4)

	require.NotNil(t, notices[0].Views)
	assert.Equal(t, 1234, *notices[0].Views)
	assert.False(t, notices[0].HasAttachment)

	assert.False(t, notices[1].HasAttachment, "件数0は添付なし")
	assert.True(t, notices[2].HasAttachment)
	assert.Nil(t, notices[2].Views, "負の閲覧数は不明扱い")
	assert.True(t, notices[3].HasAttachment)
}

func TestFetchNotices(t *testing.T) {
	const listURL = "https://www.tukorea.ac.kr/tukorea/1096/subview.do"

	t.Run("fetch_and_parse", func(t *testing.T) {
		fetcher := &MockFetcher{htmlContent: sampleHTML}
		extractor, err := extract.NewExtractor(fetcher, extract.WithClock(fixedClock))
		require.NoError(t, err)

		notices, err := extractor.FetchNotices(context.Background(), listURL)
		require.NoError(t, err)
		assert.Equal(t, []string{"145435", "145434"}, ids(notices))
		assert.Equal(t, []string{listURL}, fetcher.requested)
	})

	t.Run("fetch_error", func(t *testing.T) {
		fetchErr := errors.New("network timeout")
		extractor, err := extract.NewExtractor(&MockFetcher{fetchError: fetchErr})
		require.NoError(t, err)

		notices, err := extractor.FetchNotices(context.Background(), listURL)
		assert.Nil(t, notices)
		assert.ErrorIs(t, err, fetchErr)
	})
}

func TestExtractID(t *testing.T) {
	testCases := []struct {
		name     string
		href     string
		expected string
		ok       bool
	}{
		{"artclViewパス", "/bbs/tukorea/107/145435/artclView.do", "145435", true},
		{"クエリ_article", "/bbs/artclView.do?article=777", "777", true},
		{"クエリ_idx", "view.do?page=2&idx=12345", "12345", true},
		{"クエリがパスより優先", "/bbs/tukorea/107/145435/artclView.do?articleNo=999", "999", true},
		{"数字でないクエリ値は無視", "/bbs/tukorea/107/145435/artclView.do?seq=abc", "145435", true},
		{"最長の数字セグメント", "/board/107/20240501/view", "20240501", true},
		{"同じ長さなら先のもの", "/board/111/222/view", "111", true},
		{"IDなし", "#", "", false},
		{"javascript", "javascript:void(0)", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := extract.ExtractID(tc.href)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, id)
		})
	}
}
