package app

import (
	"sync"
	"time"

	"medication_reminder_bot/internal/domain/schedule"
)

// Phase tells how the active reminder got into the slot.
type Phase string

const (
	PhaseHeadsUp      Phase = "heads_up"      // Adopted in the minute before the dose
	PhaseDue          Phase = "due"           // Adopted or kept inside the due window
	PhasePendingAgain Phase = "pending_again" // Re-shown after a snooze; the store still says missed
)

// ActiveReminder is the single in-memory reminder a session presents.
type ActiveReminder struct {
	Item          schedule.Item
	Phase         Phase
	Announcements int // Due-window speech events for this item in the session, capped by DetectorConfig.MaxAnnouncements
	AdoptedAt     time.Time
}

// Slot holds at most one active reminder. Writers do not compare-and-swap:
// the last write wins.
type Slot struct {
	mu     sync.RWMutex
	active *ActiveReminder
}

func (s *Slot) Get() (ActiveReminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ActiveReminder{}, false
	}
	return *s.active, true
}

func (s *Slot) Set(r ActiveReminder) {
	s.mu.Lock()
	s.active = &r
	s.mu.Unlock()
}

func (s *Slot) Clear() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}
