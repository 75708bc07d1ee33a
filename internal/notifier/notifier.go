package notifier

import (
	"context"
	"fmt"
	"rssgen/internal/model"
	"rssgen/internal/render"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts generated feeds to a Telegram channel.
type Notifier struct {
	bot       Sender
	channelID int64
	publicURL string
}

func New(bot Sender, channelID int64, publicURL string) *Notifier {
	return &Notifier{
		bot:       bot,
		channelID: channelID,
		publicURL: publicURL,
	}
}

func (n *Notifier) Announce(_ context.Context, record model.FeedRecord) error {
	title := record.OriginalURL
	items := 0

	if summary, err := render.Inspect(record.RenderedXML); err == nil {
		if summary.Title != "" {
			title = summary.Title
		}
		items = summary.Items
	}

	const msgFormat = "*%s*\n%s\n\n%s"

	msg := tgbotapi.NewMessage(n.channelID, fmt.Sprintf(
		msgFormat,
		EscapeForMarkdown(title),
		EscapeForMarkdown(fmt.Sprintf("%d items from %s", items, record.OriginalURL)),
		EscapeForMarkdown(model.FeedURL(n.publicURL, record.ID)),
	))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}

	return nil
}

var (
	replacer = strings.NewReplacer(
		"\\",
		"\\\\",
		"-",
		"\\-",
		"_",
		"\\_",
		"*",
		"\\*",
		"[",
		"\\[",
		"]",
		"\\]",
		"(",
		"\\(",
		")",
		"\\)",
		"~",
		"\\~",
		"`",
		"\\`",
		">",
		"\\>",
		"#",
		"\\#",
		"+",
		"\\+",
		"=",
		"\\=",
		"|",
		"\\|",
		"{",
		"\\{",
		"}",
		"\\}",
		".",
		"\\.",
		"!",
		"\\!",
	)
)

func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}
