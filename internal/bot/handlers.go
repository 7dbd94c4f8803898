package bot

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hitoshi/warnman/internal/identifier"
	"github.com/hitoshi/warnman/internal/metrics"
	"github.com/hitoshi/warnman/internal/model"
)

// ユーザー向けの定型メッセージ
const (
	msgKeywordTooShort   = "請輸入至少 2 個字元的關鍵字"
	msgNoResults         = "❌ 找不到相關結果"
	msgSearchFailed      = "🚨 搜尋時發生錯誤"
	msgPaginatorExpired  = "此搜尋結果已過期，請重新搜尋"
	msgPaginatorNotOwner = "只有發起搜尋的使用者可以操作此頁面"
	msgInvalidSelection  = "無效的選擇"
)

// handleInteraction はdiscordgoから呼ばれるインタラクションのイベントハンドラー。
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := b.interactionContext()
	defer cancel()
	b.dispatch(ctx, i.Interaction)
}

// dispatch はインタラクションの種類に応じて処理を振り分ける。
// 処理中のpanicはここで回収し、Botのイベントループを止めない。
func (b *Bot) dispatch(ctx context.Context, i *discordgo.Interaction) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("panic recovered in interaction handler",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			b.respondEphemeral(i, model.NewInternalError().Message)
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(i)
	}
}

// handleCommand はスラッシュコマンドを実行し、結果をログとメトリクスに記録する。
func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	userID := interactionUserID(i)
	start := time.Now()

	var outcome string
	if b.limiter != nil && !b.limiter.Allow(userID) {
		b.respondEphemeral(i, model.NewRateLimitedError().Message)
		outcome = metrics.OutcomeRateLimited
	} else {
		options := optionMap(data.Options)
		switch data.Name {
		case commandAddWarn:
			outcome = b.handleAddWarn(ctx, i, options)
		case commandSearchWarn:
			outcome = b.handleSearchWarn(ctx, i, options)
		case commandDeleteWarn:
			outcome = b.handleDeleteWarn(ctx, i, options)
		default:
			b.logger.Warn("unknown command", "command", data.Name)
			return
		}
	}

	b.metrics.RecordBotCommand(data.Name, outcome, time.Since(start))
	b.logger.Info("bot command",
		"command", data.Name,
		"user", userID,
		"outcome", outcome,
	)
}

// handleAddWarn は /addwarn を処理する。
func (b *Bot) handleAddWarn(ctx context.Context, i *discordgo.Interaction, options map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	reason := stringOption(options, optionWarningReason)
	identifiers := identifier.SplitList(stringOption(options, optionIdentifiers))

	record, err := b.service.Create(ctx, identifiers, reason)
	if err != nil {
		message, outcome := b.describeError(commandAddWarn, err)
		title := "警告新增失敗"
		if outcome == metrics.OutcomeError {
			title = "錯誤"
		}
		b.respondEmbed(i, errorEmbed(title, message))
		return outcome
	}

	b.respondEmbed(i, createdEmbed(record))
	return metrics.OutcomeOK
}

// handleSearchWarn は /searchwarn を処理する。
// 結果が1件以上あればページ送り付きのメッセージで1件ずつ表示する。
func (b *Bot) handleSearchWarn(ctx context.Context, i *discordgo.Interaction, options map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	keyword := stringOption(options, optionKeyword)

	records, err := b.service.Search(ctx, keyword)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeKeywordTooShort {
			b.respondEphemeral(i, msgKeywordTooShort)
			return metrics.OutcomeUserError
		}
		b.logger.Error("bot search failed", "keyword", keyword, "error", err)
		b.respondEphemeral(i, msgSearchFailed)
		return metrics.OutcomeError
	}
	if len(records) == 0 {
		b.respondEphemeral(i, msgNoResults)
		return metrics.OutcomeOK
	}

	session := b.pages.create(interactionUserID(i), records, i)
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{recordEmbed(records[0], 0, len(records))},
			Components: paginatorComponents(session.id, records, 0),
		},
	})
	return metrics.OutcomeOK
}

// handleDeleteWarn は /deletewarn を処理する。
func (b *Bot) handleDeleteWarn(ctx context.Context, i *discordgo.Interaction, options map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	warnID := stringOption(options, optionWarnID)

	if _, err := b.service.Delete(ctx, warnID); err != nil {
		message, outcome := b.describeError(commandDeleteWarn, err)
		b.respondEmbed(i, errorEmbed("刪除失敗", message))
		return outcome
	}

	b.respondEmbed(i, deletedEmbed(strings.TrimSpace(warnID)))
	return metrics.OutcomeOK
}

// handleComponent は検索結果のボタンと選択メニューの操作を処理する。
func (b *Bot) handleComponent(i *discordgo.Interaction) {
	data := i.MessageComponentData()

	sessionID, action, ok := parseComponentID(data.CustomID)
	if !ok {
		b.logger.Debug("ignoring unknown component", "custom_id", data.CustomID)
		return
	}

	session, page, result := b.pages.move(sessionID, interactionUserID(i), action, data.Values)
	switch result {
	case moveExpired:
		b.respondEphemeral(i, msgPaginatorExpired)
		return
	case moveForbidden:
		b.respondEphemeral(i, msgPaginatorNotOwner)
		return
	case moveInvalid:
		b.respondEphemeral(i, msgInvalidSelection)
		return
	}

	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{recordEmbed(session.records[page], page, len(session.records))},
			Components: paginatorComponents(session.id, session.records, page),
		},
	})
}

// describeError はサービスのエラーをユーザー向けメッセージと結果種別に変換する。
// APIError以外は詳細をログにのみ残し、汎用メッセージを返す。
func (b *Bot) describeError(command string, err error) (string, string) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code != model.ErrCodeInternal {
		return apiErr.Message, metrics.OutcomeUserError
	}

	b.logger.Error("bot command failed", "command", command, "error", err)
	return model.NewInternalError().Message, metrics.OutcomeError
}

func (b *Bot) respondEmbed(i *discordgo.Interaction, embed *discordgo.MessageEmbed) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// respondEphemeral は実行したユーザーにだけ見えるメッセージを返す。
func (b *Bot) respondEphemeral(i *discordgo.Interaction, content string) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := b.responder.InteractionRespond(i, resp); err != nil {
		b.logger.Error("failed to respond to interaction", "interaction", i.ID, "error", err)
	}
}
