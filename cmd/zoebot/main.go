// Zoebot is a personal Slack assistant with long-term memory.
//
// It listens for DMs from its owner over Socket Mode, answers with an
// LLM that can call tools (memory, reminders, CDN files, web search,
// coding stats), and keeps memories synchronized into an external
// vector index. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	zoebot                   Run the bot
//	zoebot -config FILE      Run with an explicit config file
//	zoebot init [dir]        Write an example config and data dir
//	zoebot version           Print the version
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/isitzoe/zoebot/internal/agent"
	"github.com/isitzoe/zoebot/internal/ai"
	"github.com/isitzoe/zoebot/internal/cdn"
	"github.com/isitzoe/zoebot/internal/config"
	"github.com/isitzoe/zoebot/internal/hackatime"
	"github.com/isitzoe/zoebot/internal/memory"
	"github.com/isitzoe/zoebot/internal/queue"
	"github.com/isitzoe/zoebot/internal/reminders"
	"github.com/isitzoe/zoebot/internal/search"
	"github.com/isitzoe/zoebot/internal/settings"
	"github.com/isitzoe/zoebot/internal/slack"
	"github.com/isitzoe/zoebot/internal/tools"
	"github.com/isitzoe/zoebot/internal/vectorindex"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

const version = "1.0.0"

const (
	memorySyncInterval  = 2 * time.Minute
	reminderTickPeriod  = 1 * time.Minute
	dailyCheckinHour    = 20
	dailyCheckinMessage = "how was your day??? Go share on a yap pls :3"
)

func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. OS-level dependencies are injected so
// the lifecycle can be driven from tests.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "version":
			fmt.Fprintf(stdout, "zoebot %s\n", version)
			return nil
		case args[i] == "init":
			dir := "."
			if i+1 < len(args) {
				dir = args[i+1]
			}
			return runInit(stdout, dir)
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			fmt.Fprintln(stdout, "usage: zoebot [-config FILE] [init [dir] | version]")
			return nil
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, err = config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting zoebot", "version", version, "config", path)

	// SIGINT/SIGTERM trigger graceful shutdown.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	loc, err := time.LoadLocation(cfg.Reminders.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", cfg.Reminders.Timezone, err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Stores. Memories get their own database file; reminders and
	// settings share one.
	memStore, err := memory.NewStore(filepath.Join(cfg.DataDir, "memories.db"))
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer memStore.Close()

	db, err := sql.Open("sqlite3", filepath.Join(cfg.DataDir, "zoebot.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	remStore, err := reminders.NewStore(db)
	if err != nil {
		return fmt.Errorf("open reminder store: %w", err)
	}
	setStore, err := settings.NewStore(db)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	setCache, err := settings.NewCache(setStore, agent.DefaultSystemPrompt, cfg.AI.Model)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// External clients.
	aiClient := ai.New(ai.Config{
		BaseURL:        cfg.AI.BaseURL,
		APIKey:         cfg.AI.APIKey,
		EmbeddingModel: cfg.AI.EmbeddingModel,
	})
	vecClient := vectorindex.New(vectorindex.Config{
		URL:   cfg.Vector.URL,
		Token: cfg.Vector.Token,
	})
	slackClient := slack.NewClient(slack.Config{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
	}, logger)
	cdnClient := cdn.NewClient(cdn.Config{
		Endpoint:      cfg.CDN.Endpoint,
		ProjectID:     cfg.CDN.ProjectID,
		APIKey:        cfg.CDN.APIKey,
		BucketID:      cfg.CDN.BucketID,
		PublicBaseURL: cfg.CDN.PublicBaseURL,
	}, logger)
	searchClient := search.NewClient(search.Config{
		BaseURL: cfg.Search.BaseURL,
		APIKey:  cfg.Search.APIKey,
	}, logger)
	statsClient := hackatime.NewClient(hackatime.Config{
		BaseURL: cfg.Hackatime.BaseURL,
		APIKey:  cfg.Hackatime.APIKey,
		UserID:  cfg.Hackatime.UserID,
	}, logger)

	syncer := memory.NewSynchronizer(memStore, aiClient, vecClient, logger)
	scheduler := reminders.NewScheduler(remStore, slackClient, loc, logger)

	// Tool registry and dispatch pipeline. The queue executes queued
	// tools through the dispatcher, so they attach to each other.
	registry, err := tools.NewRegistry(concat(
		tools.MemoryTools(memStore, syncer, logger),
		tools.ReminderTools(scheduler, logger),
		tools.MessageTools(slackClient, tools.MessageToolsConfig{
			YapChannelID: cfg.Slack.ChannelID,
		}, logger),
		tools.CDNTools(cdnClient, slackClient, logger),
		tools.SearchTools(searchClient, logger),
		tools.StatsTools(statsClient, logger),
	)...)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	dispatcher := tools.NewDispatcher(registry, logger)
	jobs := queue.New(dispatcher, aiClient, slackClient, cfg.AI.SummaryModel,
		registry.SilentNames(), logger)
	dispatcher.AttachQueue(jobs)

	bot := agent.New(aiClient, syncer, memStore, slackClient, setCache,
		dispatcher, cfg.AI.MaxTokens, logger)

	// Startup sync pass, then background loops.
	if err := syncer.Sync(ctx); err != nil {
		logger.Warn("startup memory sync failed", "error", err)
	}

	go syncLoop(ctx, syncer, logger)
	go reminderLoop(ctx, scheduler, logger)
	go checkinLoop(ctx, slackClient, cfg.Slack.ChannelID, cfg.Slack.UserID, loc, logger)

	socket := slack.NewSocketMode(slackClient, logger)
	go receiveLoop(ctx, socket, bot, slackClient, cfg.Slack.UserID, logger)

	logger.Info("zoebot running")
	err = socket.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	jobs.Wait()
	logger.Info("zoebot stopped")
	return err
}

// receiveLoop turns inbound socket events into agent turns. Only DMs
// from the configured owner are handled.
func receiveLoop(ctx context.Context, socket *slack.SocketMode, bot *agent.Agent, client *slack.Client, ownerID string, logger *slog.Logger) {
	for ev := range socket.Messages() {
		if ev.ChannelType != "im" || ev.User != ownerID {
			continue
		}
		// Skip bot echoes and edits.
		if ev.BotID != "" || ev.Subtype != "" {
			continue
		}
		if ev.Text == "" && len(ev.Files) == 0 {
			continue
		}

		in := agent.Incoming{
			UserID:    ev.User,
			ChannelID: ev.Channel,
			ThreadTS:  ev.ThreadTS,
			MessageTS: ev.TS,
			Text:      ev.Text,
		}
		if len(ev.Files) > 0 {
			in.FileName = ev.Files[0].Name
			in.FileURL = ev.Files[0].URLPrivate
		}

		reply, err := bot.Turn(ctx, in)
		if err != nil {
			logger.Error("turn failed", "error", err)
			reply = fmt.Sprintf("Something went wrong :heavysob: %v", err)
		}
		if _, err := client.PostMessage(ctx, ev.Channel, ev.ThreadTS, reply); err != nil {
			logger.Error("failed to post reply", "error", err)
			continue
		}

		if err := bot.LogExchange(ev.Text, reply); err != nil {
			logger.Warn("failed to store conversation history", "error", err)
		}
	}
}

// syncLoop pushes unsynced memories to the vector index and reconciles
// deletions every couple of minutes.
func syncLoop(ctx context.Context, syncer *memory.Synchronizer, logger *slog.Logger) {
	ticker := time.NewTicker(memorySyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := syncer.Sync(ctx); err != nil {
				logger.Warn("periodic memory sync failed", "error", err)
			}
		}
	}
}

// reminderLoop fires due reminders once a minute.
func reminderLoop(ctx context.Context, scheduler *reminders.Scheduler, logger *slog.Logger) {
	ticker := time.NewTicker(reminderTickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := scheduler.ProcessDue(ctx, now); err != nil {
				logger.Warn("reminder check failed", "error", err)
			}
		}
	}
}

// checkinLoop posts the daily 20:00 check-in to the public channel,
// mentioning the owner, in the reference timezone.
func checkinLoop(ctx context.Context, client *slack.Client, channelID, ownerID string, loc *time.Location, logger *slog.Logger) {
	for {
		now := time.Now().In(loc)
		next := time.Date(now.Year(), now.Month(), now.Day(), dailyCheckinHour, 0, 0, 0, loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			text := fmt.Sprintf("<@%s> %s", ownerID, dailyCheckinMessage)
			if _, err := client.PostMessage(ctx, channelID, "", text); err != nil {
				logger.Warn("daily check-in failed", "error", err)
			}
		}
	}
}

func concat(groups ...[]*tools.Spec) []*tools.Spec {
	var all []*tools.Spec
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}
