package app

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Voice gates speech for a session: no-op when unsupported, never interrupts an
// utterance in progress, and can refuse to repeat the last utterance key.
type Voice struct {
	speaker    Speaker
	supported  bool
	logger     *logrus.Entry
	mu         sync.Mutex
	lastSpoken string
}

func NewVoice(speaker Speaker, logger *logrus.Entry) *Voice {
	if speaker == nil {
		speaker = muteSpeaker{}
	}
	v := &Voice{speaker: speaker, supported: speaker.Supported(), logger: logger}
	if !v.supported {
		logger.Info("Speech not supported; voice output disabled for this session")
	}
	return v
}

// Say speaks text unless the engine is busy. Returns whether speech was issued.
func (v *Voice) Say(ctx context.Context, text string) bool {
	return v.say(ctx, text, text, false)
}

// SayOnce is Say that also skips when key was the last thing spoken.
func (v *Voice) SayOnce(ctx context.Context, key, text string) bool {
	return v.say(ctx, key, text, true)
}

func (v *Voice) say(ctx context.Context, key, text string, dedupe bool) bool {
	if !v.supported {
		return false
	}

	v.mu.Lock()
	if dedupe && v.lastSpoken == key {
		v.mu.Unlock()
		return false
	}
	if v.speaker.Speaking() {
		v.mu.Unlock()
		v.logger.WithField("text", text).Debug("Speech suppressed, engine busy")
		return false
	}
	v.lastSpoken = key
	v.mu.Unlock()

	if err := v.speaker.Speak(ctx, text); err != nil {
		v.logger.WithError(err).Warn("Failed to speak")
		return false
	}
	return true
}

// LastSpoken returns the key of the most recent utterance.
func (v *Voice) LastSpoken() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSpoken
}
