package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// スラッシュコマンド名
const (
	commandAddWarn    = "addwarn"
	commandSearchWarn = "searchwarn"
	commandDeleteWarn = "deletewarn"
)

// オプション名
const (
	optionWarningReason = "warning_reason"
	optionIdentifiers   = "identifiers"
	optionKeyword       = "keyword"
	optionWarnID        = "warn_id"
)

// commandDefinitions はスラッシュコマンドの定義を返す。
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        commandAddWarn,
			Description: "新增一筆警告記錄",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionWarningReason,
					Description: "警告原因",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionIdentifiers,
					Description: "玩家識別碼 (以逗號分隔，例如 steam:xxx,license:yyy，可選)",
				},
			},
		},
		{
			Name:        commandSearchWarn,
			Description: "搜尋警告記錄",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionKeyword,
					Description: "關鍵字（Warn ID / 原因 / 識別碼）",
					Required:    true,
				},
			},
		},
		{
			Name:        commandDeleteWarn,
			Description: "刪除指定 Warn ID 的警告記錄",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionWarnID,
					Description: "要刪除的 Warn ID",
					Required:    true,
				},
			},
		},
	}
}

// registerCommands はスラッシュコマンドを登録する。
// guildIDが空の場合はグローバルコマンドとして登録する。
func (b *Bot) registerCommands() error {
	b.logger.Info("Registering slash commands", "guild", b.guildID)

	definitions := commandDefinitions()
	registered := make([]*discordgo.ApplicationCommand, 0, len(definitions))

	for _, cmd := range definitions {
		created, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, cmd)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registered = append(registered, created)
		b.logger.Debug("Registered command", "name", cmd.Name)
	}

	b.logger.Info("Slash commands registered", "count", len(registered))
	return nil
}

// optionMap はコマンドオプションを名前で引けるようにする。
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// stringOption は文字列オプションの値を返す。指定されていなければ空文字を返す。
func stringOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	opt, ok := options[name]
	if !ok || opt == nil {
		return ""
	}
	s, _ := opt.Value.(string)
	return s
}
