package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"rssgen/internal/bot"
	"rssgen/internal/config"
	"rssgen/internal/converter"
	"rssgen/internal/extract"
	"rssgen/internal/model"
	"rssgen/internal/notifier"
	"rssgen/internal/render"
	"rssgen/internal/server"
	"rssgen/internal/service"
	"rssgen/internal/source"
	"rssgen/internal/storage"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/exp/slog"
)

func main() {
	cmd := "serve"
	var args []string
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	var err error
	switch cmd {
	case "--help", "-h", "help":
		printHelp()
		return
	case "serve":
		err = cmdServe(args)
	case "create":
		err = cmdCreate(args)
	case "refresh":
		err = cmdRefresh(args)
	case "delete":
		err = cmdDelete(args)
	case "show":
		err = cmdShow(args)
	default:
		fmt.Printf("unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`Usage:
  rssgen COMMAND [OPTIONS]

Commands:
   serve      run the HTTP API (and the Telegram bot when a token is configured)
   create     generate a feed from --url
   refresh    regenerate the feed --id from its original URL
   delete     delete the feed --id
   show       print the stored document of feed --id
`)
}

type app struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sqlx.DB
	feeds  *service.Feeds
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Get()
	logger := newLogger(cfg.LogLevel)

	db, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var (
		client = &http.Client{Timeout: cfg.FetchTimeout}
		conv   = converter.New(
			source.NewFeedSource(client, cfg.UserAgent),
			source.NewPageSource(client, cfg.UserAgent),
			extract.New(cfg.ReadabilityFallback),
			logger,
		)
		feeds = service.New(storage.NewFeedStorage(db), conv, logger)
	)

	return &app{cfg: cfg, logger: logger, db: db, feeds: feeds}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("close storage", slog.String("err", err.Error()))
	}
}

// publicBase is where feed links point outside of an HTTP request.
func (a *app) publicBase() string {
	if a.cfg.PublicURL != "" {
		return a.cfg.PublicURL
	}
	if strings.HasPrefix(a.cfg.ListenAddr, ":") {
		return "http://localhost" + a.cfg.ListenAddr
	}
	return "http://" + a.cfg.ListenAddr
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func cmdServe(args []string) error {
	fset := flag.NewFlagSet("serve", flag.ContinueOnError)
	var addr string
	fset.StringVar(&addr, "addr", "", "listen address (overrides listen_addr)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr != "" {
		a.cfg.ListenAddr = addr
	}

	if a.cfg.TelegramBotToken != "" {
		if err := a.startTelegram(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           server.NewServer(a.feeds, a.cfg.PublicURL, a.cfg.CacheMaxAge, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown", slog.String("err", err.Error()))
		}
	}()

	a.logger.Info("http server started", slog.String("addr", a.cfg.ListenAddr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	a.logger.Info("http server has stopped")
	return nil
}

func (a *app) startTelegram(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(a.cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("create bot api: %w", err)
	}

	if a.cfg.TelegramChannelID != 0 {
		a.feeds.WithAnnouncer(notifier.New(botAPI, a.cfg.TelegramChannelID, a.publicBase()))
	}

	b := bot.New(botAPI, a.logger)
	b.RegisterFeedViews(a.feeds, a.publicBase())

	go func(ctx context.Context) {
		if err := b.Run(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				a.logger.Error("failed to run bot", slog.String("err", err.Error()))
				return
			}

			a.logger.Info("bot has stopped")
		}
	}(ctx)

	return nil
}

func cmdCreate(args []string) error {
	fset := flag.NewFlagSet("create", flag.ContinueOnError)
	var url string
	fset.StringVar(&url, "url", "", "page or feed URL")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("--url is required")
	}

	return withApp(func(ctx context.Context, a *app) error {
		record, err := a.feeds.Create(ctx, url)
		if err != nil {
			return err
		}
		fmt.Printf("Feed %s created\n   URL: %s\n", record.ID, model.FeedURL(a.publicBase(), record.ID))
		return nil
	})
}

func cmdRefresh(args []string) error {
	id, err := parseID("refresh", args)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		record, err := a.feeds.Refresh(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Feed %s refreshed from %s\n", record.ID, record.OriginalURL)
		return nil
	})
}

func cmdDelete(args []string) error {
	id, err := parseID("delete", args)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		record, err := a.feeds.Delete(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Feed %s deleted\n", record.ID)
		return nil
	})
}

func cmdShow(args []string) error {
	fset := flag.NewFlagSet("show", flag.ContinueOnError)
	var id string
	var raw bool
	fset.StringVar(&id, "id", "", "feed id")
	fset.BoolVar(&raw, "raw", false, "print the document instead of a summary")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("--id is required")
	}

	return withApp(func(ctx context.Context, a *app) error {
		record, err := a.feeds.Read(ctx, id)
		if err != nil {
			return err
		}

		if raw {
			fmt.Println(record.RenderedXML)
			return nil
		}

		summary, err := render.Inspect(record.RenderedXML)
		if err != nil {
			return fmt.Errorf("inspect feed %s: %w", id, err)
		}
		fmt.Printf("Feed: %s\n   Source: %s\n   Items: %d (%d unique linked)\n   Updated: %s\n",
			summary.Title, record.OriginalURL, summary.Items, summary.LinkedItems, record.UpdatedAt.Format("2006-01-02 15:04"))
		return nil
	})
}

func parseID(name string, args []string) (string, error) {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	var id string
	fset.StringVar(&id, "id", "", "feed id")
	if err := fset.Parse(args); err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("--id is required")
	}
	return id, nil
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
