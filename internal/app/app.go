// Package app wires the bot together: Slack client, store, directory and
// the three loops (poller, processor, scheduler).
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ebdekock/StaffSlackBot/internal/config"
	"github.com/ebdekock/StaffSlackBot/internal/directory"
	"github.com/ebdekock/StaffSlackBot/internal/game"
	"github.com/ebdekock/StaffSlackBot/internal/poller"
	"github.com/ebdekock/StaffSlackBot/internal/queue"
	"github.com/ebdekock/StaffSlackBot/internal/scheduler"
	"github.com/ebdekock/StaffSlackBot/internal/slack"
	"github.com/ebdekock/StaffSlackBot/internal/store"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	client  *slack.Client
	httpSrv *http.Server
	repo    store.Repo
}

func New(cfg config.Config, log *zap.Logger) *App {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{
		cfg:     cfg,
		log:     log,
		client:  slack.NewClient(cfg.SlackBotToken, log),
		httpSrv: srv,
	}
}

// Run starts the bot and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting staffbot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("poll_interval", a.cfg.PollInterval),
		zap.Duration("challenge_timeout", a.cfg.ChallengeTimeout),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	if err := a.client.Connect(ctx); err != nil {
		a.log.Error("slack connect failed", zap.Error(err))
		return err
	}
	defer func() { _ = a.client.Disconnect() }()
	a.log.Info("slack connected", zap.String("bot_id", a.client.BotID()))

	dir := directory.New(repo, a.client, a.cfg.EmailDomain, a.log)
	// Populate the directory before accepting any messages.
	if err := dir.Sync(ctx); err != nil {
		a.log.Error("initial directory sync failed", zap.Error(err))
		return err
	}

	q := queue.New()
	classifier := slack.NewClassifier(a.client.BotID(), dir, a.log)
	poll := poller.New(a.client, classifier, q, a.cfg.PollInterval, a.log)
	proc := game.NewProcessor(dir, repo, a.client, q, a.log, game.Options{
		PlayCommand:      a.cfg.PlayCommand,
		QueueTimeout:     a.cfg.QueueTimeout,
		ChallengeTimeout: a.cfg.ChallengeTimeout,
	})

	sched := scheduler.New(a.log)
	sched.Register("expire_challenges", a.cfg.ExpireInterval, proc.ExpireStale)
	sched.Register("directory_sync", a.cfg.SyncInterval, func(ctx context.Context) {
		if err := dir.Sync(ctx); err != nil {
			a.log.Error("directory sync failed", zap.Error(err))
		}
	})

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); poll.Run(ctx) }()
	go func() { defer wg.Done(); proc.Run(ctx) }()
	go func() { defer wg.Done(); sched.Run(ctx) }()

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	q.Close()
	wg.Wait()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}

	return a.repo.Close()
}

// SyncOnce performs a single roster sync and exits; used by the sync command.
func (a *App) SyncOnce(ctx context.Context) error {
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	dir := directory.New(repo, a.client, a.cfg.EmailDomain, a.log)
	return dir.Sync(ctx)
}
