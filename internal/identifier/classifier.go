// Package identifier は "<category>:<value>" 形式のプレイヤー識別子を種別ごとに分類する。
package identifier

import (
	"strings"

	"github.com/hitoshi/warnman/internal/model"
)

// Parse は識別子を最初の ":" で種別と値に分割する。
// 区切り文字がない場合、または種別が未知の場合は ok=false を返す。
func Parse(raw string) (category model.Category, value string, ok bool) {
	cat, val, found := strings.Cut(raw, ":")
	if !found {
		return "", "", false
	}
	c := model.Category(cat)
	if !c.Valid() {
		return "", "", false
	}
	return c, val, true
}

// Classify は識別子リストを種別ごとに分類する。
// 不正な形式や未知の種別の識別子はエラーにせず黙って破棄する。
// 受理された識別子は入力文字列そのままで、入力順に格納される。
func Classify(identifiers []string) model.GroupedIdentifiers {
	grouped := model.NewGroupedIdentifiers()
	for _, raw := range identifiers {
		c, _, ok := Parse(raw)
		if !ok {
			continue
		}
		grouped[c] = append(grouped[c], raw)
	}
	return grouped
}

// SplitList はカンマ区切りの識別子文字列を分割する。
// 各要素の前後空白を除去し、空要素は除外する。
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
