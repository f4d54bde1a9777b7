// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medication_reminder_bot/internal/app"
	"medication_reminder_bot/internal/domain/reminder"
	"medication_reminder_bot/internal/domain/schedule"
	"medication_reminder_bot/internal/domain/user"
	"medication_reminder_bot/internal/infra/config"
	idb "medication_reminder_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminTelegramID
	users user.Repository,
	schedules schedule.Repository,
	attempts reminder.Repository,
	adminService *app.AdminService,
	hub *app.Hub,
	baseLogger *logrus.Entry,
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := startHelpLogger.WithFields(logrus.Fields{"command": "/start", "chat_id": chatID})
		logCtx.Info("Processing /start command")

		args := c.Args()
		if len(args) == 1 {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return c.Send("That does not look like a profile ID. Copy it from the app settings page.")
			}
			profile, err := adminService.LinkTelegram(ctx, userID, chatID)
			switch {
			case errors.Is(err, idb.ErrUserNotFound):
				logCtx.WithField("user_id", userID).Warn("Profile to link not found")
				return c.Send("No profile with that ID was found.")
			case errors.Is(err, app.ErrChatAlreadyLinked):
				return c.Send("This chat is already linked to another profile.")
			case errors.Is(err, app.ErrProfileLinkedElsewhere):
				logCtx.WithField("user_id", userID).Warn("Attempt to move a linked profile to another chat")
				return c.Send("This profile is already linked to another chat. Ask the administrator to move it.")
			case err != nil:
				logCtx.WithError(err).Error("Failed to link chat")
				return c.Send("Something went wrong while linking your profile. Please try again later.")
			}
			logCtx.WithField("user_id", profile.ID).Info("Chat linked to profile")
			return c.Send(fmt.Sprintf("Hi %s! Your medicine reminders will appear here.", profile.Name))
		}

		if chatID == cfg.AdminTelegramID {
			return c.Send("Hello, admin. Use /help for the list of commands.")
		}

		profile, err := users.GetByTelegramChatID(ctx, chatID)
		if err == nil {
			hub.Open(profile)
			return c.Send(fmt.Sprintf("Hi %s! Reminders are running. Use /status to see today's doses.", profile.Name))
		} else if !errors.Is(err, idb.ErrUserNotFound) {
			logCtx.WithError(err).Error("Error checking profile for /start command")
			return c.Send("Something went wrong. Please try again later.")
		}

		return c.Send("Hi! I send medicine reminders. Link your profile with /start <profile id>.")
	})

	b.Handle("/status", func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := startHelpLogger.WithFields(logrus.Fields{"command": "/status", "chat_id": chatID})

		profile, err := users.GetByTelegramChatID(ctx, chatID)
		if err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				return c.Send("This chat is not linked yet. Use /start <profile id>.")
			}
			logCtx.WithError(err).Error("Failed to resolve profile")
			return c.Send("Something went wrong. Please try again later.")
		}

		items, err := schedules.ListToday(ctx, profile.ID, time.Now())
		if err != nil {
			logCtx.WithError(err).Error("Failed to list today's schedule")
			return c.Send("Could not load today's schedule. Please try again later.")
		}
		missed := missedCounts(ctx, attempts, items, profile.ID, logCtx)

		var active *app.ActiveReminder
		running := false
		if s, err := hub.Get(profile.ID); err == nil {
			running = true
			if r, ok := s.ActiveReminder(); ok {
				active = &r
			}
		}
		return c.Send(formatStatus(items, missed, active, running))
	})

	b.Handle("/help", func(c telebot.Context) error {
		var helpText strings.Builder
		helpText.WriteString("I remind you to take your medicines and let your family know when a dose is missed.\n\n")
		helpText.WriteString("`/start <profile id>` - link this chat to your profile\n")
		helpText.WriteString("`/status` - today's doses and the active reminder\n")
		helpText.WriteString("`/help` - show this message\n")
		if c.Chat().ID == cfg.AdminTelegramID {
			helpText.WriteString("\nAdmin:\n")
			helpText.WriteString("`/sweep` - run the missed-dose SMS sweep now\n")
			helpText.WriteString("`/sessions` - list running reminder sessions\n")
			helpText.WriteString("`/relink <profile id> <chat id>` - move a profile to another chat\n")
		}
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// missedCounts looks up the miss counter of every missed dose. Lookup failures count as zero.
func missedCounts(ctx context.Context, attempts reminder.Repository, items []*schedule.Item, userID uuid.UUID, logCtx *logrus.Entry) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, it := range items {
		if it.Status != schedule.StatusMissed {
			continue
		}
		a, err := attempts.Get(ctx, it.ID, userID)
		if err != nil {
			if !errors.Is(err, idb.ErrAttemptNotFound) {
				logCtx.WithError(err).WithField("schedule_id", it.ID).Warn("Failed to load missed counter")
			}
			continue
		}
		counts[it.ID] = a.MissedCount
	}
	return counts
}

func formatStatus(items []*schedule.Item, missed map[uuid.UUID]int, active *app.ActiveReminder, running bool) string {
	if len(items) == 0 {
		return "No doses scheduled for today."
	}

	var b strings.Builder
	b.WriteString("Today's doses:\n")
	for _, it := range items {
		b.WriteString(fmt.Sprintf("%s  %s (%s) - %s", it.ScheduledTime.Format("15:04"), it.MedicineName, it.Dosage, it.Status))
		if n := missed[it.ID]; n > 0 {
			b.WriteString(fmt.Sprintf(", missed %d times", n))
		}
		b.WriteString("\n")
	}

	switch {
	case !running:
		b.WriteString("\nReminders are not running.")
	case active != nil:
		b.WriteString(fmt.Sprintf("\nActive reminder: %s (%s)", active.Item.MedicineName, active.Phase))
	}
	return b.String()
}
