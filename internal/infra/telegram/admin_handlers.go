package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"medication_reminder_bot/internal/app"
	idb "medication_reminder_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/sweep", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sweep",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		report, err := adminService.RunSweep(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				return c.Send("Error: you are not allowed to run this command.")
			}
			handlerLogger.WithError(err).Error("Manual sweep failed")
			return c.Send(fmt.Sprintf("Sweep failed: %s", err.Error()))
		}

		return c.Send(fmt.Sprintf(
			"Sweep finished.\nUsers checked: %d\nBreaches: %d (suppressed %d)\nSMS sent: %d, failed: %d, skipped: %d\nUser errors: %d",
			report.Users, report.Breaches, report.Suppressed, report.Sent, report.Failed, report.Skipped, report.UserErrors))
	})

	b.Handle("/sessions", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sessions",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		sessions, err := adminService.ListSessions(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list sessions")
			return c.Send(fmt.Sprintf("Failed to list sessions: %s", err.Error()))
		}
		if len(sessions) == 0 {
			return c.Send("No reminder sessions are running.")
		}

		var response strings.Builder
		response.WriteString(fmt.Sprintf("--- Running sessions (%d) ---\n", len(sessions)))
		for _, s := range sessions {
			active := "idle"
			if s.Active != nil {
				active = fmt.Sprintf("%s (%s)", s.Active.Item.MedicineName, s.Active.Phase)
			}
			response.WriteString(fmt.Sprintf("%s [%s] since %s: %s\n",
				s.Name, s.UserID, s.StartedAt.Format("2006-01-02 15:04"), active))
		}
		return c.Send(response.String())
	})

	b.Handle("/relink", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/relink",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		if len(args) != 2 {
			return c.Send("Usage: /relink <profile id> <chat id>")
		}
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return c.Send("Error: invalid profile ID.")
		}
		chatID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return c.Send("Error: invalid chat ID.")
		}

		profile, err := adminService.RelinkTelegram(ctx, c.Sender().ID, userID, chatID)
		switch {
		case errors.Is(err, app.ErrAdminNotAuthorized):
			return c.Send("Error: you are not allowed to run this command.")
		case errors.Is(err, idb.ErrUserNotFound):
			return c.Send("Error: no profile with that ID.")
		case errors.Is(err, app.ErrChatAlreadyLinked):
			return c.Send("Error: that chat is linked to another profile.")
		case err != nil:
			handlerLogger.WithError(err).Error("Failed to relink profile")
			return c.Send(fmt.Sprintf("Relink failed: %s", err.Error()))
		}

		handlerLogger.WithFields(logrus.Fields{"user_id": userID, "chat_id": chatID}).Info("Profile moved to another chat")
		return c.Send(fmt.Sprintf("%s is now linked to chat %d.", profile.Name, chatID))
	})
}
