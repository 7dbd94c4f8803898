package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/hitoshi/warnman/internal/model"
)

// Embedの色
const (
	colorGreen = 0x2ECC71
	colorRed   = 0xE74C3C
	colorBlue  = 0x3498DB
)

// Discordの上限値
const (
	maxFieldValueLength = 1024
	maxSelectOptions    = 25
	maxOptionLabel      = 100
)

// 表示に使う日時の書式
const timeLayout = "2006-01-02 15:04:05"

// createdEmbed は警告記録作成成功時のEmbedを生成する。
// 識別子は値のあるカテゴリのみ表示する。
func createdEmbed(record *model.WarnRecord) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "警告記錄新增成功",
		Color: colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Warn ID", Value: record.WarnID},
			{Name: "原因", Value: truncate(record.WarningReason, maxFieldValueLength)},
			{Name: "識別碼", Value: identifierLines(record.Data, false)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("記錄 ID: %d", record.ID)},
	}
}

// recordEmbed は検索結果1件分のEmbedを生成する。pageは0始まり。
// 識別子は全カテゴリを表示し、空のカテゴリは「無」とする。
func recordEmbed(record *model.WarnRecord, page, total int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "警告記錄",
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Warn ID", Value: record.WarnID},
			{Name: "原因", Value: truncate(record.WarningReason, maxFieldValueLength)},
			{Name: "時間", Value: record.CreatedAt.UTC().Format(timeLayout)},
			{Name: "識別碼", Value: identifierLines(record.Data, true)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d/%d", page+1, total)},
	}
}

// deletedEmbed は削除成功時のEmbedを生成する。
func deletedEmbed(warnID string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "刪除成功",
		Description: "已刪除 Warn ID: " + warnID,
		Color:       colorGreen,
	}
}

// errorEmbed は失敗時の赤いEmbedを生成する。
func errorEmbed(title, message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: truncate("錯誤: "+message, 4096),
		Color:       colorRed,
	}
}

// identifierLines は識別子を「カテゴリ: 値, 値」の行に整形する。
// showEmptyがfalseの場合は空のカテゴリを省き、1件もなければ「無」を返す。
func identifierLines(data model.GroupedIdentifiers, showEmpty bool) string {
	lines := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		values := data[c]
		switch {
		case len(values) > 0:
			lines = append(lines, fmt.Sprintf("%s: %s", c, strings.Join(values, ", ")))
		case showEmpty:
			lines = append(lines, fmt.Sprintf("%s: 無", c))
		}
	}
	if len(lines) == 0 {
		return "無"
	}
	return truncate(strings.Join(lines, "\n"), maxFieldValueLength)
}

// paginatorComponents はページ送りボタンと選択メニューを生成する。
func paginatorComponents(sessionID string, records []*model.WarnRecord, page int) []discordgo.MessageComponent {
	last := len(records) - 1

	buttons := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "⬅️ 上一頁",
				Style:    discordgo.PrimaryButton,
				CustomID: componentID(sessionID, actionPrev),
				Disabled: page <= 0,
			},
			discordgo.Button{
				Label:    "➡️ 下一頁",
				Style:    discordgo.PrimaryButton,
				CustomID: componentID(sessionID, actionNext),
				Disabled: page >= last,
			},
		},
	}

	start, end := selectWindow(page, len(records))
	options := make([]discordgo.SelectMenuOption, 0, end-start)
	for i := start; i < end; i++ {
		options = append(options, discordgo.SelectMenuOption{
			Label:   truncate(fmt.Sprintf("%d. %s", i+1, records[i].WarnID), maxOptionLabel),
			Value:   strconv.Itoa(i),
			Default: i == page,
		})
	}

	menu := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    componentID(sessionID, actionSelect),
				Placeholder: "選擇要查看的項目",
				Options:     options,
			},
		},
	}

	return []discordgo.MessageComponent{buttons, menu}
}

// selectWindow は選択メニューに載せるページ範囲[start, end)を返す。
// 件数が上限を超える場合は現在ページがなるべく中央に来るようにずらす。
func selectWindow(page, total int) (int, int) {
	if total <= maxSelectOptions {
		return 0, total
	}
	start := page - maxSelectOptions/2
	if start < 0 {
		start = 0
	}
	if start > total-maxSelectOptions {
		start = total - maxSelectOptions
	}
	return start, start + maxSelectOptions
}

// truncate はsをmaxRunes文字以内に切り詰める。切り詰めた場合は末尾を「…」にする。
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes-1]) + "…"
}
