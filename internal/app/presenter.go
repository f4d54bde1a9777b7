// internal/app/presenter.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"medication_reminder_bot/internal/domain/reminder"
	"medication_reminder_bot/internal/domain/schedule"
	"medication_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoActiveReminder is returned when an action arrives while the slot is empty.
var ErrNoActiveReminder = fmt.Errorf("no active reminder")

// PresenterConfig controls the snooze re-prompt loop.
type PresenterConfig struct {
	SnoozeDelay time.Duration
	MaxSnoozes  int // Re-prompts per item per session; 0 keeps nagging without a bound
}

func DefaultPresenterConfig() PresenterConfig {
	return PresenterConfig{SnoozeDelay: 30 * time.Second}
}

// afterFunc matches time.AfterFunc; tests swap it for a manual trigger.
type afterFunc func(d time.Duration, f func()) func() bool

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Presenter renders the active reminder and carries out take, snooze and dismiss.
type Presenter struct {
	userID    uuid.UUID
	slot      *Slot
	schedules schedule.Repository
	attempts  reminder.Repository
	escalator Escalator
	voice     *Voice
	effects   Effects
	phrases   Phrasebook
	cfg       PresenterConfig
	now       func() time.Time
	after     afterFunc
	logger    *logrus.Entry

	mu      sync.Mutex
	baseCtx context.Context
	stopped bool
	snoozes map[uuid.UUID]int
	timers  map[uuid.UUID]func() bool
}

type PresenterDeps struct {
	UserID    uuid.UUID
	Slot      *Slot
	Schedules schedule.Repository
	Attempts  reminder.Repository
	Escalator Escalator
	Effects   Effects
	Phrases   Phrasebook
	Now       func() time.Time
}

func NewPresenter(deps PresenterDeps, cfg PresenterConfig, logger *logrus.Entry) *Presenter {
	logger = logger.WithField("component", "presenter")
	effects := deps.Effects.withDefaults()
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Presenter{
		userID:    deps.UserID,
		slot:      deps.Slot,
		schedules: deps.Schedules,
		attempts:  deps.Attempts,
		escalator: deps.Escalator,
		voice:     NewVoice(effects.Speaker, logger),
		effects:   effects,
		phrases:   deps.Phrases,
		cfg:       cfg,
		now:       now,
		after:     realAfterFunc,
		logger:    logger,
		baseCtx:   context.Background(),
		snoozes:   make(map[uuid.UUID]int),
		timers:    make(map[uuid.UUID]func() bool),
	}
}

// Active returns the reminder currently presented, if any.
func (p *Presenter) Active() (ActiveReminder, bool) {
	return p.slot.Get()
}

func (p *Presenter) announceHeadsUp(ctx context.Context, r ActiveReminder) {
	metrics.RecordAnnouncement(string(PhaseHeadsUp))
	text := p.phrases.Take(r.Item)
	p.voice.SayOnce(ctx, text, text)

	p.playAlarm(ctx)
	n := SystemNotification{
		Title: p.phrases.ReminderTitle,
		Body:  p.phrases.Body(r.Item),
		Tag:   r.Item.ID.String(),
	}
	if err := p.effects.Notifier.Notify(ctx, p.userID, n); err != nil {
		p.logger.WithError(err).Warn("Failed to raise system notification")
	}
	p.toast(ctx, text, ToastSuccess)
	p.render(ctx, r)
}

func (p *Presenter) announceDue(ctx context.Context, r ActiveReminder, firstAdoption bool) {
	metrics.RecordAnnouncement(string(PhaseDue))
	if firstAdoption {
		p.playAlarm(ctx)
		p.render(ctx, r)
	}
	text := p.phrases.Take(r.Item)
	p.voice.SayOnce(ctx, fmt.Sprintf("%s-%d", text, r.Announcements-1), text)
}

// showQuietly puts the card back for an item whose announcements are used up.
func (p *Presenter) showQuietly(ctx context.Context, r ActiveReminder) {
	p.render(ctx, r)
}

// Take marks the dose taken and resets its miss counter. The item write comes first:
// a crash in between leaves a stale counter that the next reset clears.
func (p *Presenter) Take(ctx context.Context) (err error) {
	defer func() { metrics.RecordAction("take", err) }()

	r, ok := p.slot.Get()
	if !ok {
		return ErrNoActiveReminder
	}
	log := p.actionLogger("take", r)

	if err := p.schedules.MarkTaken(ctx, r.Item.ID, p.now()); err != nil {
		return p.fail(ctx, log, "mark dose as taken", err)
	}
	if err := p.attempts.Reset(ctx, r.Item.ID, p.userID); err != nil {
		return p.fail(ctx, log, "reset missed counter", err)
	}

	p.playWithFallback(ctx, SoundSuccess, SoundBeep)
	text := p.phrases.Taken(r.Item)
	p.voice.Say(ctx, text)
	p.toast(ctx, text, ToastSuccess)
	p.release(ctx, r)
	p.forgetSnoozes(r.Item.ID)

	log.Info("Dose marked as taken")
	return nil
}

// Snooze records a miss, frees the slot and re-shows the same item after SnoozeDelay.
func (p *Presenter) Snooze(ctx context.Context) (err error) {
	defer func() { metrics.RecordAction("snooze", err) }()

	r, ok := p.slot.Get()
	if !ok {
		return ErrNoActiveReminder
	}
	log := p.actionLogger("snooze", r)

	if err := p.recordMiss(ctx, r); err != nil {
		return p.fail(ctx, log, "snooze reminder", err)
	}

	text := p.phrases.Snoozed(p.cfg.SnoozeDelay)
	p.voice.Say(ctx, text)
	p.toast(ctx, text, ToastSuccess)
	p.release(ctx, r)

	if p.scheduleReprompt(r.Item) {
		log.WithField("delay", p.cfg.SnoozeDelay).Info("Reminder snoozed")
	} else {
		log.WithField("max_snoozes", p.cfg.MaxSnoozes).Info("Reminder snoozed, re-prompt limit reached")
	}
	return nil
}

// Dismiss records a miss and immediately escalates to the user's family contacts.
func (p *Presenter) Dismiss(ctx context.Context) (err error) {
	defer func() { metrics.RecordAction("dismiss", err) }()

	r, ok := p.slot.Get()
	if !ok {
		return ErrNoActiveReminder
	}
	log := p.actionLogger("dismiss", r)

	if err := p.recordMiss(ctx, r); err != nil {
		return p.fail(ctx, log, "dismiss reminder", err)
	}

	if p.escalator != nil {
		if err := p.escalator.NotifyDismissal(ctx, p.userID, r.Item.MedicineName, r.Item.Dosage); err != nil {
			log.WithError(err).Error("Instant SMS escalation failed")
		}
	}

	text := p.phrases.Dismissed(r.Item)
	p.voice.Say(ctx, text)
	p.toast(ctx, text, ToastSuccess)
	p.release(ctx, r)
	p.forgetSnoozes(r.Item.ID)

	log.Info("Reminder dismissed")
	return nil
}

func (p *Presenter) recordMiss(ctx context.Context, r ActiveReminder) error {
	if err := p.schedules.MarkMissed(ctx, r.Item.ID); err != nil {
		return fmt.Errorf("mark missed: %w", err)
	}
	if err := p.attempts.Increment(ctx, r.Item.ID, r.Item.MedicineID, p.userID, p.now()); err != nil {
		return fmt.Errorf("increment missed counter: %w", err)
	}
	return nil
}

// scheduleReprompt arms the snooze timer unless the per-item bound is reached.
func (p *Presenter) scheduleReprompt(item schedule.Item) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	if p.cfg.MaxSnoozes > 0 && p.snoozes[item.ID] >= p.cfg.MaxSnoozes {
		return false
	}
	p.snoozes[item.ID]++

	if stop, ok := p.timers[item.ID]; ok {
		stop()
	}
	p.timers[item.ID] = p.after(p.cfg.SnoozeDelay, func() { p.reprompt(item) })
	return true
}

// reprompt puts the snoozed item back into the slot without writing to the store.
// A dose marked taken elsewhere in the meantime is not shown again.
func (p *Presenter) reprompt(item schedule.Item) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	delete(p.timers, item.ID)
	ctx := p.baseCtx
	p.mu.Unlock()

	log := p.logger.WithField("schedule_id", item.ID)
	fresh, err := p.schedules.GetByID(ctx, item.ID)
	switch {
	case err != nil:
		log.WithError(err).Warn("Failed to refresh snoozed dose, showing the cached copy")
	case fresh.Status == schedule.StatusTaken:
		log.Info("Snoozed dose was taken in the meantime")
		p.forgetSnoozes(item.ID)
		return
	default:
		item = *fresh
	}

	// Held through the effects so stop cannot land halfway through a re-prompt.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	item.Status = schedule.StatusMissed
	r := ActiveReminder{Item: item, Phase: PhasePendingAgain, AdoptedAt: p.now()}
	p.slot.Set(r)
	metrics.RecordAnnouncement(string(PhasePendingAgain))

	p.playAlarm(ctx)
	text := p.phrases.Take(item)
	p.voice.Say(ctx, text)
	p.toast(ctx, text, ToastSuccess)
	p.render(ctx, r)
	log.Info("Snoozed reminder shown again")
}

// bind sets the context used by timer callbacks.
func (p *Presenter) bind(ctx context.Context) {
	p.mu.Lock()
	p.baseCtx = ctx
	p.stopped = false
	p.mu.Unlock()
}

// stop cancels outstanding snooze timers; late callbacks become no-ops.
func (p *Presenter) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for id, stop := range p.timers {
		stop()
		delete(p.timers, id)
	}
}

func (p *Presenter) forgetSnoozes(id uuid.UUID) {
	p.mu.Lock()
	delete(p.snoozes, id)
	if stop, ok := p.timers[id]; ok {
		stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()
}

func (p *Presenter) release(ctx context.Context, r ActiveReminder) {
	p.slot.Clear()
	if err := p.effects.Renderer.Clear(ctx, r); err != nil {
		p.logger.WithError(err).Warn("Failed to clear reminder widget")
	}
}

func (p *Presenter) fail(ctx context.Context, log *logrus.Entry, what string, err error) error {
	log.WithError(err).Errorf("Failed to %s", what)
	p.toast(ctx, p.phrases.ActionFailed, ToastError)
	return fmt.Errorf("failed to %s: %w", what, err)
}

func (p *Presenter) playAlarm(ctx context.Context) {
	if err := p.effects.Sounds.Play(ctx, SoundAlarm); err != nil {
		p.logger.WithError(err).Warn("Failed to play alarm sound")
	}
}

func (p *Presenter) playWithFallback(ctx context.Context, sound, fallback Sound) {
	err := p.effects.Sounds.Play(ctx, sound)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrSoundUnavailable) {
		p.logger.WithError(err).Warnf("Failed to play %s sound, using fallback", sound)
	}
	if err := p.effects.Sounds.Play(ctx, fallback); err != nil {
		p.logger.WithError(err).Warn("Fallback sound failed")
	}
}

func (p *Presenter) toast(ctx context.Context, message string, level ToastLevel) {
	if err := p.effects.Toaster.Toast(ctx, message, level); err != nil {
		p.logger.WithError(err).Warn("Failed to show toast")
	}
}

func (p *Presenter) render(ctx context.Context, r ActiveReminder) {
	if err := p.effects.Renderer.Show(ctx, r); err != nil {
		p.logger.WithError(err).Warn("Failed to render reminder")
	}
}

func (p *Presenter) actionLogger(action string, r ActiveReminder) *logrus.Entry {
	return p.logger.WithFields(logrus.Fields{
		"action":      action,
		"schedule_id": r.Item.ID,
		"medicine":    r.Item.MedicineName,
		"phase":       r.Phase,
	})
}
