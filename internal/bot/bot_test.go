package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"rssgen/internal/model"
	"rssgen/internal/service"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/exp/slog"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		a.sent = append(a.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (a *fakeAPI) sentSnapshot() []tgbotapi.MessageConfig {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]tgbotapi.MessageConfig(nil), a.sent...)
}

func (a *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return a.updates
}

type fakeFeeds struct {
	args []string
	err  error
}

func (f *fakeFeeds) record(arg string) (model.FeedRecord, error) {
	f.args = append(f.args, arg)
	if f.err != nil {
		return model.FeedRecord{}, f.err
	}
	return model.FeedRecord{ID: "feed-1", OriginalURL: arg}, nil
}

func (f *fakeFeeds) Create(_ context.Context, u string) (model.FeedRecord, error) { return f.record(u) }
func (f *fakeFeeds) Refresh(_ context.Context, id string) (model.FeedRecord, error) {
	return f.record(id)
}
func (f *fakeFeeds) Delete(_ context.Context, id string) (model.FeedRecord, error) {
	return f.record(id)
}

func command(text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.Index(text, " "); i >= 0 {
		cmdLen = i
	}

	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 7,
			Text:      text,
			Chat:      &tgbotapi.Chat{ID: 42},
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
		},
	}
}

func newTestBot(feeds FeedService) (*Bot, *fakeAPI) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 1)}
	b := New(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.RegisterFeedViews(feeds, "https://feeds.example")
	return b, api
}

func TestCreateCommand(t *testing.T) {
	feeds := &fakeFeeds{}
	b, api := newTestBot(feeds)

	b.handleUpdate(context.Background(), command("/rss https://blog.example/"))

	if len(feeds.args) != 1 || feeds.args[0] != "https://blog.example/" {
		t.Fatalf("unexpected service calls: %v", feeds.args)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(api.sent))
	}
	reply := api.sent[0]
	if reply.ChatID != 42 || reply.ReplyToMessageID != 7 {
		t.Fatalf("reply sent to the wrong place: %+v", reply)
	}
	if !strings.Contains(reply.Text, "https://feeds.example/rss/feed-1.xml") {
		t.Fatalf("reply lacks feed url: %q", reply.Text)
	}
}

func TestCommandErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", service.ErrInvalidInput), "/rss <url>"},
		{fmt.Errorf("wrap: %w", model.ErrRecordNotFound), "Feed not found."},
		{errors.New("db down"), "Internal error"},
	}
	for _, tc := range cases {
		b, api := newTestBot(&fakeFeeds{err: tc.err})
		b.handleUpdate(context.Background(), command("/refresh abc"))

		if len(api.sent) != 1 || !strings.Contains(api.sent[0].Text, tc.want) {
			t.Fatalf("error %v: unexpected replies %+v", tc.err, api.sent)
		}
	}
}

func TestIgnoresNonCommands(t *testing.T) {
	feeds := &fakeFeeds{}
	b, api := newTestBot(feeds)

	b.handleUpdate(context.Background(), tgbotapi.Update{})
	b.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}}})
	b.handleUpdate(context.Background(), command("/unknown"))

	if len(feeds.args) != 0 || len(api.sent) != 0 {
		t.Fatalf("unexpected activity: calls=%v replies=%d", feeds.args, len(api.sent))
	}
}

func TestPanickingViewRecovered(t *testing.T) {
	b, _ := newTestBot(&fakeFeeds{})
	b.RegisterCmdView("boom", func(context.Context, Sender, tgbotapi.Update) error {
		panic("boom")
	})

	b.handleUpdate(context.Background(), command("/boom"))
}

func TestRunStopsOnCancel(t *testing.T) {
	feeds := &fakeFeeds{}
	b, api := newTestBot(feeds)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- command("/delete feed-1")

	deadline := time.After(2 * time.Second)
	for len(api.sentSnapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("update was not handled")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
