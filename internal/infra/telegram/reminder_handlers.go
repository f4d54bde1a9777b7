// internal/infra/telegram/reminder_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medication_reminder_bot/internal/app"
	"medication_reminder_bot/internal/domain/user"
	idb "medication_reminder_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterReminderHandlers routes reminder card buttons to the user's session.
func RegisterReminderHandlers(ctx context.Context, b *telebot.Bot, users user.Repository, hub *app.Hub, baseLogger *logrus.Entry) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "reminder_callback", "chat_id": c.Chat().ID})

		if !strings.HasPrefix(data, callbackPrefix) {
			c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		parts := strings.Split(data, "_") // rem_take_<uuid>
		if len(parts) != 3 {
			c.Bot().OnError(fmt.Errorf("invalid reminder callback data: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Could not read this button."})
		}
		scheduleID, err := uuid.Parse(parts[2])
		if err != nil {
			c.Bot().OnError(fmt.Errorf("invalid schedule id '%s' in callback: %w", parts[2], err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Could not read this button."})
		}
		cmd, err := app.ParseCommand(parts[1], scheduleID)
		if err != nil {
			c.Bot().OnError(err, c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}
		logCtx = logCtx.WithFields(logrus.Fields{"action": cmd.Name(), "schedule_id": scheduleID})

		profile, err := users.GetByTelegramChatID(ctx, c.Chat().ID)
		if err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				return c.Respond(&telebot.CallbackResponse{Text: "This chat is not linked to a profile. Use /start <profile id>."})
			}
			logCtx.WithError(err).Error("Failed to resolve profile for callback")
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong. Please try again."})
		}

		session, err := hub.Get(profile.ID)
		if err != nil {
			logCtx.WithError(err).Warn("No running session for callback")
			return c.Respond(&telebot.CallbackResponse{Text: "Reminders are not running for you right now."})
		}

		switch err := session.Handle(ctx, cmd); {
		case err == nil:
			logCtx.Info("Reminder action handled")
			return c.Respond()
		case errors.Is(err, app.ErrNoActiveReminder), errors.Is(err, app.ErrStaleReminder):
			// Stale card, e.g. from before a restart.
			_ = c.Delete()
			return c.Respond(&telebot.CallbackResponse{Text: "This reminder is no longer active."})
		default:
			logCtx.WithError(err).Error("Reminder action failed")
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong. Please try again."})
		}
	})
}
