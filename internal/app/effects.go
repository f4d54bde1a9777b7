// internal/app/effects.go
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Speaker is the speech channel of a reminder session.
type Speaker interface {
	// Supported is probed once when the session starts.
	Supported() bool
	// Speaking reports whether an utterance is still in progress.
	Speaking() bool
	Speak(ctx context.Context, text string) error
}

// SystemNotification is the OS-level notification raised for a heads-up reminder.
type SystemNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"` // Schedule item ID, so repeated notifications replace each other
	Icon  string `json:"icon,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, n SystemNotification) error
}

// Sound identifies an audio cue.
type Sound string

const (
	SoundAlarm   Sound = "alarm"
	SoundSuccess Sound = "success"
	SoundBeep    Sound = "beep" // Built in, used when an asset is missing
)

// ErrSoundUnavailable is returned by a SoundPlayer whose asset cannot be found.
var ErrSoundUnavailable = fmt.Errorf("sound asset unavailable")

type SoundPlayer interface {
	Play(ctx context.Context, sound Sound) error
}

// ToastLevel controls how a transient banner is styled.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

type Toaster interface {
	Toast(ctx context.Context, message string, level ToastLevel) error
}

// Renderer shows the active reminder widget with its take/snooze/dismiss controls.
type Renderer interface {
	Show(ctx context.Context, r ActiveReminder) error
	Clear(ctx context.Context, r ActiveReminder) error
}

// Effects bundles the side-effect services injected into one session.
type Effects struct {
	Speaker  Speaker
	Notifier Notifier
	Sounds   SoundPlayer
	Toaster  Toaster
	Renderer Renderer
}

// withDefaults replaces missing services with silent ones.
func (e Effects) withDefaults() Effects {
	if e.Speaker == nil {
		e.Speaker = muteSpeaker{}
	}
	if e.Notifier == nil {
		e.Notifier = nopEffects{}
	}
	if e.Sounds == nil {
		e.Sounds = nopEffects{}
	}
	if e.Toaster == nil {
		e.Toaster = nopEffects{}
	}
	if e.Renderer == nil {
		e.Renderer = nopEffects{}
	}
	return e
}

type muteSpeaker struct{}

func (muteSpeaker) Supported() bool                      { return false }
func (muteSpeaker) Speaking() bool                       { return false }
func (muteSpeaker) Speak(context.Context, string) error { return nil }

type nopEffects struct{}

func (nopEffects) Notify(context.Context, uuid.UUID, SystemNotification) error { return nil }
func (nopEffects) Play(context.Context, Sound) error                          { return nil }
func (nopEffects) Toast(context.Context, string, ToastLevel) error            { return nil }
func (nopEffects) Show(context.Context, ActiveReminder) error                 { return nil }
func (nopEffects) Clear(context.Context, ActiveReminder) error                { return nil }
