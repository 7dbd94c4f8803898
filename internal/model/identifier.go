// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
)

// Category はプレイヤー識別子の種別を表す。
type Category string

const (
	CategorySteam   Category = "steam"
	CategoryLicense Category = "license"
	CategoryDiscord Category = "discord"
	CategoryXBL     Category = "xbl"
	CategoryLive    Category = "live"
	CategoryFiveM   Category = "fivem"
	CategoryIP      Category = "ip"
)

// Categories は認識される識別子種別の一覧。
// JSONシリアライズ時のキー順序もこの順に従う。
var Categories = []Category{
	CategorySteam,
	CategoryLicense,
	CategoryDiscord,
	CategoryXBL,
	CategoryLive,
	CategoryFiveM,
	CategoryIP,
}

// Valid は種別が認識済みの7種のいずれかであるかを返す。
// 大文字小文字は区別する。
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// GroupedIdentifiers は種別ごとに分類された識別子の集合。
// 7種すべてのキーが常に存在し、各リストは入力順を保持する。
type GroupedIdentifiers map[Category][]string

// NewGroupedIdentifiers は全種別のキーを空リストで初期化したGroupedIdentifiersを返す。
func NewGroupedIdentifiers() GroupedIdentifiers {
	g := make(GroupedIdentifiers, len(Categories))
	for _, c := range Categories {
		g[c] = []string{}
	}
	return g
}

// Total は全種別に含まれる識別子の合計数を返す。
func (g GroupedIdentifiers) Total() int {
	n := 0
	for _, c := range Categories {
		n += len(g[c])
	}
	return n
}

// MarshalJSON はCategoriesの順序でキーを出力する。
// 空の種別は null ではなく [] として出力する。
// 部分一致検索の対象になるため、<, >, & はエスケープしない。
func (g GroupedIdentifiers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, string(c)); err != nil {
			return nil, err
		}
		buf.WriteByte(':')

		ids := g[c]
		if ids == nil {
			ids = []string{}
		}
		if err := writeJSON(&buf, ids); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encodeが付与する末尾の改行を除く
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON は保存済みJSONを復元する。
// 欠けている種別は空リストで補い、未知のキーは無視する。
func (g *GroupedIdentifiers) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := NewGroupedIdentifiers()
	for key, ids := range raw {
		c := Category(key)
		if !c.Valid() {
			continue
		}
		if ids == nil {
			ids = []string{}
		}
		out[c] = ids
	}
	*g = out
	return nil
}
