package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medication_reminder_bot/internal/app"
	"medication_reminder_bot/internal/domain/sms"
	"medication_reminder_bot/internal/domain/user"
	"medication_reminder_bot/internal/infra/config"
	idb "medication_reminder_bot/internal/infra/database"
	"medication_reminder_bot/internal/infra/httpapi"
	"medication_reminder_bot/internal/infra/logger"
	"medication_reminder_bot/internal/infra/redisstore"
	"medication_reminder_bot/internal/infra/scheduler"
	"medication_reminder_bot/internal/infra/telegram"
	"medication_reminder_bot/internal/infra/twilio"
	"medication_reminder_bot/internal/infra/webpush"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Alert marks outlive the sweep window by far; a breach is alerted at most once a day.
const alertMarkerTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load application configuration")
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
	}).Info("Medication reminder bot starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established")

	userRepo := idb.NewPostgresUserRepository(db)
	scheduleRepo := idb.NewPostgresScheduleRepository(db)
	attemptRepo := idb.NewPostgresReminderAttemptRepository(db)
	contactRepo := idb.NewPostgresContactRepository(db)
	smsLogRepo := idb.NewPostgresSMSLogRepository(db)
	pushRepo := idb.NewPostgresPushSubscriptionRepository(db)

	var gateway sms.Gateway = twilio.Disabled{}
	if cfg.SMSEnabled() {
		gateway = twilio.NewRateLimited(
			twilio.NewGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken),
			cfg.SMSRatePerSecond, cfg.SMSBurst)
	} else {
		mainLogger.Warn("Twilio credentials not set; family SMS will be logged as failed")
	}
	smsDeps := app.SMSDeps{
		Users:      userRepo,
		Contacts:   contactRepo,
		Gateway:    gateway,
		Logs:       smsLogRepo,
		FromNumber: cfg.TwilioPhoneNumber,
	}
	instant := app.NewInstantEscalator(smsDeps, logrus.NewEntry(logger.Log))

	var marker app.AlertMarker
	if cfg.SweepDedup {
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to redis")
		}
		defer rdb.Close()
		marker = redisstore.NewAlertMarker(rdb, alertMarkerTTL)
		mainLogger.Info("Sweep de-duplication enabled")
	}
	sweeper := app.NewThresholdSweeper(smsDeps, scheduleRepo, marker, app.SweepConfig{
		Window:           cfg.SweepWindow,
		DefaultThreshold: cfg.SweepDefaultThreshold,
	}, logrus.NewEntry(logger.Log))

	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	tgClient := telegram.NewTelebotAdapter(bot)

	var notifier app.Notifier
	if cfg.WebPushEnabled() {
		notifier = webpush.NewNotifier(pushRepo, webpush.Config{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subscriber: cfg.VAPIDSubscriber,
		}, logrus.NewEntry(logger.Log))
	}

	phrases := app.DefaultPhrasebook()
	sounds := telegram.SoundFiles{
		app.SoundAlarm:   cfg.AlarmSoundPath,
		app.SoundSuccess: cfg.SuccessSoundPath,
	}
	effectsFor := func(p *user.Profile) app.Effects {
		e := telegram.NewChatEffects(tgClient, p.TelegramChatID.Int64, sounds, phrases).Effects()
		e.Notifier = notifier
		return e
	}

	sessionCfg := app.SessionConfig{
		TickInterval: cfg.ReminderTickInterval,
		Detector: app.DetectorConfig{
			PreWindow:         cfg.ReminderPreWindow,
			DueWindow:         cfg.ReminderDueWindow,
			MaxAnnouncements:  cfg.ReminderMaxAnnouncements,
			PreWindowPreempts: cfg.ReminderPreWindowPreempt,
		},
		Presenter: app.PresenterConfig{
			SnoozeDelay: cfg.ReminderSnoozeDelay,
			MaxSnoozes:  cfg.ReminderMaxSnoozes,
		},
	}
	hub := app.NewHub(ctx, app.SessionDeps{
		Schedules: scheduleRepo,
		Attempts:  attemptRepo,
		Escalator: instant,
		Phrases:   phrases,
	}, effectsFor, sessionCfg, logrus.NewEntry(logger.Log))

	adminService := app.NewAdminService(userRepo, hub, sweeper, cfg.AdminTelegramID)

	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, cfg, userRepo, scheduleRepo, attemptRepo, adminService, hub, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.AdminTelegramID, handlerLogger)
	telegram.RegisterReminderHandlers(ctx, bot, userRepo, hub, handlerLogger)
	mainLogger.Info("Telegram handlers registered")

	if _, err := hub.OpenLinked(ctx, userRepo); err != nil {
		mainLogger.WithError(err).Error("Could not open sessions for linked profiles")
	}

	sweepScheduler := scheduler.NewSweepScheduler(sweeper, logrus.NewEntry(logger.Log), cfg.CronSpecSMSSweep)
	if err := sweepScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not schedule SMS sweep")
	}

	api := httpapi.NewHandler(instant, sweeper, hub, cfg.HTTPAPIToken, logrus.NewEntry(logger.Log))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	go bot.Start()
	mainLogger.Info("Application setup complete")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	sweepScheduler.Stop()
	hub.CloseAll()
	cancel()
	mainLogger.Info("Application shut down gracefully")
}
