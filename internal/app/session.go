// internal/app/session.go
package app

import (
	"context"
	"sync"
	"time"

	"medication_reminder_bot/internal/domain/reminder"
	"medication_reminder_bot/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionConfig groups the timing knobs of one reminder session.
type SessionConfig struct {
	TickInterval time.Duration
	Detector     DetectorConfig
	Presenter    PresenterConfig
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TickInterval: 60 * time.Second,
		Detector:     DefaultDetectorConfig(),
		Presenter:    DefaultPresenterConfig(),
	}
}

type SessionDeps struct {
	Schedules schedule.Repository
	Attempts  reminder.Repository
	Escalator Escalator
	Effects   Effects
	Phrases   Phrasebook
	Now       func() time.Time
}

// Session is one user's reminder loop: a detector ticking on a fixed interval and a
// presenter receiving that user's commands. Nothing in it survives a restart.
type Session struct {
	userID    uuid.UUID
	slot      *Slot
	detector  *Detector
	presenter *Presenter
	cfg       SessionConfig
	now       func() time.Time
	logger    *logrus.Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

func NewSession(userID uuid.UUID, deps SessionDeps, cfg SessionConfig, logger *logrus.Entry) *Session {
	logger = logger.WithField("user_id", userID)
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	slot := &Slot{}
	presenter := NewPresenter(PresenterDeps{
		UserID:    userID,
		Slot:      slot,
		Schedules: deps.Schedules,
		Attempts:  deps.Attempts,
		Escalator: deps.Escalator,
		Effects:   deps.Effects,
		Phrases:   deps.Phrases,
		Now:       now,
	}, cfg.Presenter, logger)

	return &Session{
		userID:    userID,
		slot:      slot,
		detector:  NewDetector(userID, deps.Schedules, slot, presenter, cfg.Detector, logger),
		presenter: presenter,
		cfg:       cfg,
		now:       now,
		logger:    logger,
	}
}

func (s *Session) UserID() uuid.UUID { return s.userID }

// StartedAt is the zero time until Start is called.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start runs one tick immediately, then one every TickInterval until Stop or ctx ends.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = s.now()
	s.mu.Unlock()

	s.presenter.bind(runCtx)
	go s.run(runCtx, s.done)
	s.logger.WithField("interval", s.cfg.TickInterval).Info("Reminder session started")
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.tick(ctx)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick never lets a failure escape the loop.
func (s *Session) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Recovered from panic in detector tick")
		}
	}()
	// Errors are already logged by the detector; the next tick retries.
	_ = s.detector.Tick(ctx, s.now())
}

// Tick runs one detector pass synchronously.
func (s *Session) Tick(ctx context.Context) error {
	return s.detector.Tick(ctx, s.now())
}

// Stop ends the ticker and cancels any pending snooze re-prompt.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	s.presenter.stop()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Reminder session stopped")
}

// ActiveReminder is the read-only view the host UI renders.
func (s *Session) ActiveReminder() (ActiveReminder, bool) {
	return s.slot.Get()
}

// Handle executes a user command against the active reminder.
func (s *Session) Handle(ctx context.Context, cmd Command) error {
	if target := cmd.Target(); target != uuid.Nil {
		active, ok := s.slot.Get()
		if !ok {
			return ErrNoActiveReminder
		}
		if active.Item.ID != target {
			return ErrStaleReminder
		}
	}
	return cmd.Execute(ctx, s.presenter)
}
