package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/modhound/modhound/internal/bot"
	"github.com/modhound/modhound/internal/config"
	"github.com/modhound/modhound/internal/db/postgres"
	"github.com/modhound/modhound/internal/handlers"
	chat "github.com/modhound/modhound/internal/handlers/chat"
	moderation "github.com/modhound/modhound/internal/handlers/moderation"
	"github.com/modhound/modhound/internal/infra"
	"github.com/modhound/modhound/internal/lifecycle"
	"github.com/modhound/modhound/internal/observability"
	"github.com/modhound/modhound/internal/scheduler"
)

const (
	maxRecoveries   = 5
	shutdownTimeout = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg := config.Get()
	log.SetFormatter(&config.MhFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra.GoRecoverable(maxRecoveries, "main", func() {
		if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("bot stopped")
		}
		stop()
	})
	<-ctx.Done()
}

func run(ctx context.Context, cfg config.Config) error {
	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.WithMessage(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	log.WithField("context", "main").Infof("authorized as @%s", botAPI.Self.UserName)

	store, err := postgres.NewClient(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.WithMessage(err, "cant initialize store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("cant close store")
		}
	}()

	observability.Init()

	service := bot.NewService(botAPI, store)
	notifier := moderation.NewNotifier(botAPI, store)
	warnService := moderation.NewWarnService(botAPI, store, notifier, cfg.DefaultLanguage)

	bot.RegisterUpdateHandler("admin", handlers.NewAdmin(service))
	bot.RegisterUpdateHandler("gatekeeper", chat.NewGatekeeper(service, notifier, cfg.DefaultLanguage))
	bot.RegisterUpdateHandler("contentfilter", chat.NewContentFilter(service, warnService))

	runtime := lifecycle.NewRuntime()
	runtime.Register("scheduler", scheduler.New(botAPI, store, cfg.Scheduler.PollInterval, cfg.Scheduler.ClaimLimit))
	if err := runtime.Start(ctx); err != nil {
		return errors.WithMessage(err, "cant start components")
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Error("cant stop components")
		}
	}()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message", "edited_message", "chat_member", "my_chat_member"}
	updateProcessor := bot.NewUpdateProcessor(service)
	updates := botAPI.GetUpdatesChan(updateConfig)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-runCtx.Done()
		botAPI.StopReceivingUpdates()
		return runCtx.Err()
	})
	g.Go(func() error {
		for update := range updates {
			update := update
			if err := updateProcessor.Process(runCtx, &update); err != nil {
				log.WithError(err).Error("cant process update")
			}
		}
		return nil
	})
	return g.Wait()
}
