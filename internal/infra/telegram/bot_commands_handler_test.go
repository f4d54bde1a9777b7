package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"medication_reminder_bot/internal/app"
	"medication_reminder_bot/internal/domain/reminder"
	"medication_reminder_bot/internal/domain/schedule"
	idb "medication_reminder_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type fakeAttempts struct {
	counts map[uuid.UUID]int
	err    error
	gets   []uuid.UUID
}

func (f *fakeAttempts) Increment(ctx context.Context, scheduleID, medicineID, userID uuid.UUID, at time.Time) error {
	return nil
}

func (f *fakeAttempts) Reset(ctx context.Context, scheduleID, userID uuid.UUID) error { return nil }

func (f *fakeAttempts) Get(ctx context.Context, scheduleID, userID uuid.UUID) (*reminder.Attempt, error) {
	f.gets = append(f.gets, scheduleID)
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.counts[scheduleID]
	if !ok {
		return nil, idb.ErrAttemptNotFound
	}
	return &reminder.Attempt{ScheduleID: scheduleID, UserID: userID, MissedCount: n}, nil
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func statusItem(name string, hour int, status schedule.Status) *schedule.Item {
	return &schedule.Item{
		ID:            uuid.New(),
		MedicineName:  name,
		Dosage:        "10mg",
		ScheduledTime: time.Date(2024, 5, 1, hour, 0, 0, 0, time.Local),
		Status:        status,
	}
}

func TestMissedCountsOnlyLooksUpMissedDoses(t *testing.T) {
	taken := statusItem("Aspirin", 8, schedule.StatusTaken)
	missed := statusItem("Statin", 9, schedule.StatusMissed)
	neverCounted := statusItem("Insulin", 10, schedule.StatusMissed)
	attempts := &fakeAttempts{counts: map[uuid.UUID]int{missed.ID: 2}}

	got := missedCounts(context.Background(), attempts, []*schedule.Item{taken, missed, neverCounted}, uuid.New(), quietLogger())

	if len(attempts.gets) != 2 {
		t.Errorf("looked up %d counters, want 2", len(attempts.gets))
	}
	if got[missed.ID] != 2 || got[neverCounted.ID] != 0 || len(got) != 1 {
		t.Errorf("counts = %v", got)
	}
}

func TestMissedCountsIgnoresStoreErrors(t *testing.T) {
	missed := statusItem("Statin", 9, schedule.StatusMissed)
	attempts := &fakeAttempts{err: errors.New("boom")}

	got := missedCounts(context.Background(), attempts, []*schedule.Item{missed}, uuid.New(), quietLogger())
	if len(got) != 0 {
		t.Errorf("counts = %v, want empty", got)
	}
}

func TestFormatStatus(t *testing.T) {
	taken := statusItem("Aspirin", 8, schedule.StatusTaken)
	missed := statusItem("Statin", 9, schedule.StatusMissed)
	items := []*schedule.Item{taken, missed}
	counts := map[uuid.UUID]int{missed.ID: 3}

	tests := []struct {
		name    string
		active  *app.ActiveReminder
		running bool
		want    []string
	}{
		{"not running", nil, false, []string{"08:00  Aspirin (10mg) - taken\n", "Statin (10mg) - missed, missed 3 times", "Reminders are not running."}},
		{"running idle", nil, true, []string{"Today's doses:"}},
		{"active reminder", &app.ActiveReminder{Item: *missed, Phase: app.PhasePendingAgain}, true, []string{"Active reminder: Statin (pending_again)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatStatus(items, counts, tt.active, tt.running)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("status %q lacks %q", got, w)
				}
			}
			if tt.running && strings.Contains(got, "not running") {
				t.Errorf("running session reported as stopped: %q", got)
			}
		})
	}
}

func TestFormatStatusEmpty(t *testing.T) {
	if got := formatStatus(nil, nil, nil, true); got != "No doses scheduled for today." {
		t.Errorf("got %q", got)
	}
}
