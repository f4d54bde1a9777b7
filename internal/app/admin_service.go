package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medication_reminder_bot/internal/domain/user"
	idb "medication_reminder_bot/internal/infra/database"

	"github.com/google/uuid"
)

var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrChatAlreadyLinked = fmt.Errorf("telegram chat is already linked to another profile")
var ErrProfileLinkedElsewhere = fmt.Errorf("profile is already linked to another telegram chat")

// SessionInfo is the admin view of one running session.
type SessionInfo struct {
	UserID    uuid.UUID
	Name      string
	StartedAt time.Time
	Active    *ActiveReminder
}

// Sweeper runs one threshold sweep.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (SweepReport, error)
}

type AdminService struct {
	users           user.Repository
	hub             *Hub
	sweeper         Sweeper
	adminTelegramID int64
	now             func() time.Time
}

func NewAdminService(users user.Repository, hub *Hub, sweeper Sweeper, adminID int64) *AdminService {
	return &AdminService{
		users:           users,
		hub:             hub,
		sweeper:         sweeper,
		adminTelegramID: adminID,
		now:             time.Now,
	}
}

// RunSweep triggers a threshold sweep on behalf of the admin.
func (s *AdminService) RunSweep(ctx context.Context, performingAdminID int64) (SweepReport, error) {
	if performingAdminID != s.adminTelegramID {
		return SweepReport{}, ErrAdminNotAuthorized
	}
	return s.sweeper.Sweep(ctx, s.now())
}

// ListSessions returns the running sessions with their profile names.
func (s *AdminService) ListSessions(ctx context.Context, performingAdminID int64) ([]SessionInfo, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}

	sessions := s.hub.Sessions()
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		info := SessionInfo{UserID: sess.UserID(), StartedAt: sess.StartedAt()}
		if p, err := s.users.GetByID(ctx, sess.UserID()); err == nil {
			info.Name = p.Name
		} else if !errors.Is(err, idb.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to load profile %s: %w", sess.UserID(), err)
		}
		if r, ok := sess.ActiveReminder(); ok {
			info.Active = &r
		}
		out = append(out, info)
	}
	return out, nil
}

// LinkTelegram binds a chat to a profile and starts its reminder session.
// A profile already linked to a different chat can only be moved by the admin.
func (s *AdminService) LinkTelegram(ctx context.Context, userID uuid.UUID, chatID int64) (*user.Profile, error) {
	return s.link(ctx, userID, chatID, false)
}

// RelinkTelegram moves a profile to another chat on behalf of the admin.
func (s *AdminService) RelinkTelegram(ctx context.Context, performingAdminID int64, userID uuid.UUID, chatID int64) (*user.Profile, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	return s.link(ctx, userID, chatID, true)
}

func (s *AdminService) link(ctx context.Context, userID uuid.UUID, chatID int64, force bool) (*user.Profile, error) {
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, idb.ErrUserNotFound) {
			return nil, idb.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get profile for linking: %w", err)
	}

	moved := profile.TelegramChatID.Valid && profile.TelegramChatID.Int64 != chatID
	if moved && !force {
		return nil, ErrProfileLinkedElsewhere
	}

	if err := s.users.LinkTelegramChat(ctx, userID, chatID); err != nil {
		if errors.Is(err, idb.ErrDuplicateTelegramChat) {
			return nil, ErrChatAlreadyLinked
		}
		return nil, fmt.Errorf("failed to link telegram chat: %w", err)
	}
	if moved {
		// The running session still renders into the old chat.
		s.hub.Close(userID)
	}
	profile.TelegramChatID.Int64 = chatID
	profile.TelegramChatID.Valid = true

	s.hub.Open(profile)
	return profile, nil
}
