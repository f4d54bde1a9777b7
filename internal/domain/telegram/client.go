package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for talking to a Telegram chat.
// This keeps the reminder effects decoupled from the specific bot library.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) (*telebot.Message, error)
	SendAudio(chatID int64, path string, caption string) error
	DeleteMessage(chatID int64, messageID int) error
}
