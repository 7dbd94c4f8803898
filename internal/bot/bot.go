// Package bot はDiscordのスラッシュコマンドで警告記録を操作するBotを提供する。
// HTTP APIを経由せず、warn.Serviceを直接呼び出す。
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hitoshi/warnman/internal/metrics"
	"github.com/hitoshi/warnman/internal/middleware"
	"github.com/hitoshi/warnman/internal/model"
)

// commandTimeout は1つのインタラクション処理に許す時間。
// Discordは3秒以内の応答を要求する。
const commandTimeout = 3 * time.Second

// WarnService はBotが必要とするサービスインターフェース。
type WarnService interface {
	Create(ctx context.Context, identifiers []string, reason string) (*model.WarnRecord, error)
	Search(ctx context.Context, keyword string) ([]*model.WarnRecord, error)
	Delete(ctx context.Context, warnID string) (string, error)
}

// interactionResponder はインタラクションへの応答を送る。*discordgo.Session が満たす。
type interactionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Config はBotの設定。
type Config struct {
	Token string
	// GuildID が空でなければコマンドをそのギルドにのみ登録する。
	GuildID string
}

// Bot はDiscord Botのインスタンス。
type Bot struct {
	session   *discordgo.Session
	responder interactionResponder
	guildID   string

	service WarnService
	limiter *middleware.RateLimiter
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	pages   *paginatorStore

	mu      sync.Mutex
	baseCtx context.Context
}

// New はDiscordセッションを生成し、Botを返す。接続はStartで行う。
// limiterがnilの場合はレート制限を行わない。
func New(cfg Config, service WarnService, limiter *middleware.RateLimiter, mc metrics.MetricsCollector) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord bot token is empty")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := newBot(session, service, limiter, mc)
	b.session = session
	b.guildID = cfg.GuildID

	session.AddHandler(b.handleInteraction)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("Discord bot is ready", "user", r.User.Username, "guilds", len(r.Guilds))
	})

	return b, nil
}

func newBot(responder interactionResponder, service WarnService, limiter *middleware.RateLimiter, mc metrics.MetricsCollector) *Bot {
	if mc == nil {
		mc = metrics.Nop{}
	}
	b := &Bot{
		responder: responder,
		service:   service,
		limiter:   limiter,
		metrics:   mc,
		logger:    slog.Default(),
		baseCtx:   context.Background(),
	}
	b.pages = newPaginatorStore(DefaultPaginatorTTL, b.expirePaginator)
	return b
}

// Start はDiscordに接続し、スラッシュコマンドを登録する。
// ctxはインタラクション処理の親コンテキストとして使われる。
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	b.baseCtx = ctx
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info("Connected to Discord", "user", b.session.State.User.Username)

	if err := b.registerCommands(); err != nil {
		_ = b.session.Close()
		return fmt.Errorf("failed to register commands: %w", err)
	}

	go b.pages.run(paginatorSweepInterval)
	return nil
}

// Stop はページ送りの掃除を止め、Discordセッションを閉じる。
// 登録済みのコマンドは次回起動時に上書きされるため削除しない。
func (b *Bot) Stop() error {
	b.pages.stop()
	if b.session != nil {
		return b.session.Close()
	}
	return nil
}

// expirePaginator は期限切れになった検索結果メッセージからボタンとメニューを取り除く。
func (b *Bot) expirePaginator(s *paginatorSession) {
	empty := []discordgo.MessageComponent{}
	if _, err := b.responder.InteractionResponseEdit(s.interaction, &discordgo.WebhookEdit{Components: &empty}); err != nil {
		b.logger.Warn("failed to remove paginator components", "session", s.id, "error", err)
	}
}

// interactionContext はインタラクション処理用のコンテキストを返す。
func (b *Bot) interactionContext() (context.Context, context.CancelFunc) {
	b.mu.Lock()
	parent := b.baseCtx
	b.mu.Unlock()
	return context.WithTimeout(parent, commandTimeout)
}

// interactionUserID は操作したユーザーのIDを返す。
// ギルド内ではMember.User、DMではUserに入っている。
func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
