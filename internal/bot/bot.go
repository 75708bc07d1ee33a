package bot

import (
	"context"
	"errors"
	"fmt"
	"rssgen/internal/model"
	"rssgen/internal/service"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/exp/slog"
)

const usage = `Send me a page or feed URL and I will keep an RSS feed of it.

/rss <url> - generate a feed
/refresh <feed id> - regenerate a feed
/delete <feed id> - delete a feed`

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type UpdateSource interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type FeedService interface {
	Create(ctx context.Context, sourceURL string) (model.FeedRecord, error)
	Refresh(ctx context.Context, id string) (model.FeedRecord, error)
	Delete(ctx context.Context, id string) (model.FeedRecord, error)
}

type ViewFunc func(ctx context.Context, bot Sender, update tgbotapi.Update) error

type Bot struct {
	api      UpdateSource
	cmdViews map[string]ViewFunc
	logger   *slog.Logger
}

func New(api UpdateSource, logger *slog.Logger) *Bot {
	return &Bot{api: api, logger: logger}
}

func (b *Bot) RegisterCmdView(cmd string, view ViewFunc) {
	if b.cmdViews == nil {
		b.cmdViews = make(map[string]ViewFunc)
	}

	b.cmdViews[cmd] = view
}

// RegisterFeedViews wires the feed commands to feeds.
func (b *Bot) RegisterFeedViews(feeds FeedService, publicURL string) {
	b.RegisterCmdView("start", ViewCmdStart())
	b.RegisterCmdView("help", ViewCmdStart())
	b.RegisterCmdView("rss", ViewCmdCreate(feeds, publicURL))
	b.RegisterCmdView("refresh", ViewCmdRefresh(feeds, publicURL))
	b.RegisterCmdView("delete", ViewCmdDelete(feeds))
}

func ViewCmdStart() ViewFunc {
	return func(ctx context.Context, bot Sender, update tgbotapi.Update) error {
		return reply(bot, update, usage)
	}
}

func ViewCmdCreate(feeds FeedService, publicURL string) ViewFunc {
	return func(ctx context.Context, bot Sender, update tgbotapi.Update) error {
		record, err := feeds.Create(ctx, strings.TrimSpace(update.Message.CommandArguments()))
		if err != nil {
			return err
		}

		return reply(bot, update, fmt.Sprintf("Feed %s created:\n%s", record.ID, model.FeedURL(publicURL, record.ID)))
	}
}

func ViewCmdRefresh(feeds FeedService, publicURL string) ViewFunc {
	return func(ctx context.Context, bot Sender, update tgbotapi.Update) error {
		record, err := feeds.Refresh(ctx, strings.TrimSpace(update.Message.CommandArguments()))
		if err != nil {
			return err
		}

		return reply(bot, update, fmt.Sprintf("Feed %s refreshed:\n%s", record.ID, model.FeedURL(publicURL, record.ID)))
	}
}

func ViewCmdDelete(feeds FeedService) ViewFunc {
	return func(ctx context.Context, bot Sender, update tgbotapi.Update) error {
		record, err := feeds.Delete(ctx, strings.TrimSpace(update.Message.CommandArguments()))
		if err != nil {
			return err
		}

		return reply(bot, update, fmt.Sprintf("Feed %s deleted.", record.ID))
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// a panicking view must not take the bot down
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("panic in view recovered", slog.String("panic", fmt.Sprint(p)))
		}
	}()

	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	command := update.Message.Command()

	view, ok := b.cmdViews[command]
	if !ok {
		return
	}

	viewErr := view(ctx, b.api, update)
	if viewErr == nil {
		return
	}

	var text string
	switch {
	case errors.Is(viewErr, service.ErrInvalidInput):
		text = usage
	case errors.Is(viewErr, model.ErrRecordNotFound):
		text = "Feed not found."
	default:
		b.logger.Error("execute view fail", slog.String("command", command), slog.String("err", viewErr.Error()))
		text = "Internal error"
	}

	if err := reply(b.api, update, text); err != nil {
		b.logger.Error("failed to send error message", slog.String("err", err.Error()))
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			updateCtx, updateCancel := context.WithTimeout(ctx, 5*time.Minute)
			b.handleUpdate(updateCtx, update)
			updateCancel()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func reply(bot Sender, update tgbotapi.Update, text string) error {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
	msg.ReplyToMessageID = update.Message.MessageID
	msg.DisableWebPagePreview = true

	_, err := bot.Send(msg)
	return err
}
