package telegram

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"medication_reminder_bot/internal/app"
	domaintg "medication_reminder_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// Callback data prefix for reminder buttons: rem_<action>_<schedule id>.
const callbackPrefix = "rem_"

// SoundFiles maps sound cues to audio files on disk.
type SoundFiles map[app.Sound]string

// ChatEffects renders one user's reminder session into their Telegram chat.
// Speech becomes a text message; sounds are sent as audio files.
type ChatEffects struct {
	client  domaintg.Client
	chatID  int64
	sounds  SoundFiles
	phrases app.Phrasebook

	speaking atomic.Bool

	mu        sync.Mutex
	lastText  string
	widgetIDs map[string]int // Schedule item ID -> message holding its buttons
}

func NewChatEffects(client domaintg.Client, chatID int64, sounds SoundFiles, phrases app.Phrasebook) *ChatEffects {
	return &ChatEffects{
		client:    client,
		chatID:    chatID,
		sounds:    sounds,
		phrases:   phrases,
		widgetIDs: make(map[string]int),
	}
}

// Effects exposes the chat as the services a session needs. Notifier is left to the caller.
func (e *ChatEffects) Effects() app.Effects {
	return app.Effects{Speaker: e, Sounds: e, Toaster: e, Renderer: e}
}

func (e *ChatEffects) Supported() bool { return true }

// Speaking is true while an utterance is being delivered.
func (e *ChatEffects) Speaking() bool { return e.speaking.Load() }

func (e *ChatEffects) Speak(ctx context.Context, text string) error {
	e.speaking.Store(true)
	defer e.speaking.Store(false)
	return e.send("🔊 "+text, text, nil)
}

// Toast skips a success banner that repeats the message just sent.
func (e *ChatEffects) Toast(ctx context.Context, message string, level app.ToastLevel) error {
	if level == app.ToastError {
		return e.send("⚠️ "+message, message, nil)
	}
	e.mu.Lock()
	dup := e.lastText == message
	e.mu.Unlock()
	if dup {
		return nil
	}
	return e.send("✅ "+message, message, nil)
}

func (e *ChatEffects) Play(ctx context.Context, sound app.Sound) error {
	if sound == app.SoundBeep {
		return e.send("🔔", "", nil)
	}
	path, ok := e.sounds[sound]
	if !ok || path == "" {
		return app.ErrSoundUnavailable
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", app.ErrSoundUnavailable, path)
	}
	return e.client.SendAudio(e.chatID, path, "")
}

// Show posts the reminder card with its action buttons.
func (e *ChatEffects) Show(ctx context.Context, r app.ActiveReminder) error {
	id := r.Item.ID.String()
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{{
		{Text: "✅ Take", Data: callbackPrefix + "take_" + id},
		{Text: "⏰ Snooze", Data: callbackPrefix + "snooze_" + id},
		{Text: "✖️ Dismiss", Data: callbackPrefix + "dismiss_" + id},
	}}

	msg, err := e.client.SendMessage(e.chatID, e.card(r), &telebot.SendOptions{ReplyMarkup: markup})
	if err != nil {
		return err
	}

	e.mu.Lock()
	prev, had := e.widgetIDs[id]
	e.widgetIDs[id] = msg.ID
	e.mu.Unlock()
	if had {
		_ = e.client.DeleteMessage(e.chatID, prev)
	}
	return nil
}

// Clear removes the reminder card so its buttons cannot be pressed twice.
func (e *ChatEffects) Clear(ctx context.Context, r app.ActiveReminder) error {
	id := r.Item.ID.String()
	e.mu.Lock()
	msgID, ok := e.widgetIDs[id]
	delete(e.widgetIDs, id)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return e.client.DeleteMessage(e.chatID, msgID)
}

func (e *ChatEffects) card(r app.ActiveReminder) string {
	text := fmt.Sprintf("💊 %s\n%s\nScheduled for %s",
		e.phrases.ReminderTitle, e.phrases.Body(r.Item), r.Item.ScheduledTime.Format("15:04"))
	if r.Phase == app.PhasePendingAgain {
		text += " (snoozed)"
	}
	return text
}

func (e *ChatEffects) send(text, key string, opts *telebot.SendOptions) error {
	if _, err := e.client.SendMessage(e.chatID, text, opts); err != nil {
		return err
	}
	if key != "" {
		e.mu.Lock()
		e.lastText = key
		e.mu.Unlock()
	}
	return nil
}
