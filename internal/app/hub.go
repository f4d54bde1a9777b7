package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"medication_reminder_bot/internal/domain/user"
	"medication_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrSessionNotFound is returned when a user has no running reminder session.
var ErrSessionNotFound = fmt.Errorf("reminder session not found")

// EffectsFactory builds the side-effect services for one user's session.
type EffectsFactory func(profile *user.Profile) Effects

// Hub owns the running sessions, one per user.
type Hub struct {
	baseCtx  context.Context
	deps     SessionDeps
	effects  EffectsFactory
	cfg      SessionConfig
	logger   *logrus.Entry
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewHub creates a hub whose sessions live until ctx ends or CloseAll is called.
// deps.Effects is ignored; effects come from the factory.
func NewHub(ctx context.Context, deps SessionDeps, effects EffectsFactory, cfg SessionConfig, logger *logrus.Entry) *Hub {
	return &Hub{
		baseCtx:  ctx,
		deps:     deps,
		effects:  effects,
		cfg:      cfg,
		logger:   logger.WithField("component", "hub"),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open starts a session for the profile, or returns the one already running.
func (h *Hub) Open(profile *user.Profile) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[profile.ID]; ok {
		return s
	}

	deps := h.deps
	if h.effects != nil {
		deps.Effects = h.effects(profile)
	}
	s := NewSession(profile.ID, deps, h.cfg, h.logger)
	h.sessions[profile.ID] = s
	s.Start(h.baseCtx)
	metrics.SessionOpened()
	return s
}

// OpenLinked opens a session for every profile linked to a Telegram chat.
func (h *Hub) OpenLinked(ctx context.Context, users user.Repository) (int, error) {
	profiles, err := users.ListLinked(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list linked profiles: %w", err)
	}
	for _, p := range profiles {
		h.Open(p)
	}
	h.logger.WithField("sessions", len(profiles)).Info("Reminder sessions opened for linked profiles")
	return len(profiles), nil
}

func (h *Hub) Get(userID uuid.UUID) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (h *Hub) Close(userID uuid.UUID) {
	h.mu.Lock()
	s, ok := h.sessions[userID]
	delete(h.sessions, userID)
	h.mu.Unlock()

	if ok {
		s.Stop()
		metrics.SessionClosed()
	}
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[uuid.UUID]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
		metrics.SessionClosed()
	}
	h.logger.WithField("sessions", len(sessions)).Info("All reminder sessions closed")
}

// Sessions returns the running sessions ordered by start time.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt().Before(out[j].StartedAt()) })
	return out
}
