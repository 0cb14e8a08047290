// Package state は既読お知らせIDの集合を永続化します。
// バックエンドはファイル (JSON)、SQLite、Redis から選択できます。
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/shouni/go-notice-bot/pkg/types"
)

// DefaultMaxSeenIDs は保存するIDの既定の上限です。
const DefaultMaxSeenIDs = 500

// Store は既読IDの集合の読み込みと保存を行います。
type Store interface {
	// Load は保存済みの集合を返します。存在しない、または壊れている場合は空の集合を返し、失敗しません。
	Load(ctx context.Context) types.IDSet
	// Save は Order で並べた先頭 maxSize 件を保存します。
	Save(ctx context.Context, ids types.IDSet, maxSize int) error
}

// Record は永続化されるドキュメントの形式です。
type Record struct {
	SeenIDs IDList `json:"seen_ids"`
}

// IDList は文字列または数値で書かれたIDのリストです。数値は文字列として読み込みます。
type IDList []string

func (l *IDList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	ids := make(IDList, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			ids = append(ids, id)
		case json.Number:
			ids = append(ids, id.String())
		}
	}
	*l = ids
	return nil
}

// Order はIDを新しい順に並べ、先頭 maxSize 件を返します。
// すべて数値IDなら数値の降順、1件でも数値でないIDがあれば文字列の降順になります。
// maxSize が 0 以下の場合は DefaultMaxSeenIDs を使用します。
func Order(ids types.IDSet, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSeenIDs
	}

	ordered := make([]string, 0, len(ids))
	allNumeric := true
	for id := range ids {
		id = types.NormalizeID(id)
		if id == "" {
			continue
		}
		if !types.IsNumericID(id) {
			allNumeric = false
		}
		ordered = append(ordered, id)
	}

	if allNumeric {
		sort.Slice(ordered, func(i, j int) bool {
			if c := types.CompareNumericIDs(ordered[i], ordered[j]); c != 0 {
				return c > 0
			}
			return ordered[i] > ordered[j]
		})
	} else {
		sort.Sort(sort.Reverse(sort.StringSlice(ordered)))
	}

	if len(ordered) > maxSize {
		ordered = ordered[:maxSize]
	}
	return ordered
}

// fromRecord は読み込んだ Record を集合に変換します。
func fromRecord(r Record) types.IDSet {
	return types.NewIDSet(r.SeenIDs...)
}
