package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"medication_reminder_bot/internal/domain/contact"
	"medication_reminder_bot/internal/domain/schedule"
	"medication_reminder_bot/internal/domain/sms"
	"medication_reminder_bot/internal/domain/user"

	"github.com/google/uuid"
)

const fromNumber = "+15550000000"

func smsProfile(name string) *user.Profile {
	return &user.Profile{
		ID:                      uuid.New(),
		Name:                    name,
		Phone:                   sql.NullString{String: "+15559990000", Valid: true},
		SMSNotificationsEnabled: true,
	}
}

func familyOf(userID uuid.UUID, phones ...string) []*contact.Contact {
	out := make([]*contact.Contact, 0, len(phones))
	for i, p := range phones {
		out = append(out, &contact.Contact{
			ID:      uuid.New(),
			UserID:  userID,
			Name:    fmt.Sprintf("Contact %d", i+1),
			Phone:   p,
			Primary: i == 0,
		})
	}
	return out
}

type smsFixture struct {
	users    *fakeUsers
	contacts *fakeContacts
	gateway  *fakeGateway
	logs     *fakeSMSLogs
}

func newSMSFixture(profiles ...*user.Profile) *smsFixture {
	return &smsFixture{
		users:    newFakeUsers(profiles...),
		contacts: &fakeContacts{byUser: make(map[uuid.UUID][]*contact.Contact)},
		gateway:  &fakeGateway{failFor: make(map[string]error)},
		logs:     &fakeSMSLogs{},
	}
}

func (f *smsFixture) deps() SMSDeps {
	return SMSDeps{
		Users:      f.users,
		Contacts:   f.contacts,
		Gateway:    f.gateway,
		Logs:       f.logs,
		FromNumber: fromNumber,
		Now:        func() time.Time { return at(9, 3, 0) },
	}
}

func TestInstantEscalationSendsOnePerContact(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001", "+15550000002")
	e := NewInstantEscalator(f.deps(), testLogger())

	if err := e.NotifyDismissal(context.Background(), jane.ID, "Aspirin", "10mg"); err != nil {
		t.Fatalf("NotifyDismissal() error = %v", err)
	}

	want := "Jane has dismissed a reminder for Aspirin (10mg). Please check on them."
	if len(f.gateway.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(f.gateway.sent))
	}
	for _, m := range f.gateway.sent {
		if m.body != want || m.from != fromNumber {
			t.Errorf("sent %+v", m)
		}
	}
	if len(f.logs.logs) != 2 {
		t.Fatalf("logged %d attempts, want 2", len(f.logs.logs))
	}
	for _, l := range f.logs.logs {
		if l.Status != sms.StatusSent || l.FamilySMSType != sms.FamilyNotification || l.UserID != jane.ID {
			t.Errorf("log = %+v", l)
		}
		if !strings.Contains(l.ProviderResponse, `"sid":"SM+1555000000`) {
			t.Errorf("provider response = %s", l.ProviderResponse)
		}
	}
}

func TestInstantEscalationIsolatesContactFailures(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001", "+15550000002")
	f.gateway.failFor["+15550000001"] = errBoom
	e := NewInstantEscalator(f.deps(), testLogger())

	res, err := e.Dispatch(context.Background(), jane.ID, "Aspirin", "10mg")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Sent != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(f.gateway.sent) != 1 || f.gateway.sent[0].to != "+15550000002" {
		t.Errorf("sent = %+v", f.gateway.sent)
	}

	var failed *sms.Log
	for _, l := range f.logs.logs {
		if l.Status == sms.StatusFailed {
			failed = l
		}
	}
	if failed == nil {
		t.Fatal("failed attempt was not logged")
	}
	if failed.ProviderResponse != `{"error":"boom"}` {
		t.Errorf("failed provider response = %s", failed.ProviderResponse)
	}
}

func TestInstantEscalationNoOps(t *testing.T) {
	disabled := smsProfile("Bob")
	disabled.SMSNotificationsEnabled = false
	lonely := smsProfile("Ann")

	tests := []struct {
		name   string
		userID uuid.UUID
	}{
		{"unknown user", uuid.New()},
		{"sms disabled", disabled.ID},
		{"no contacts", lonely.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSMSFixture(disabled, lonely)
			f.contacts.byUser[disabled.ID] = familyOf(disabled.ID, "+15550000001")
			e := NewInstantEscalator(f.deps(), testLogger())

			if err := e.NotifyDismissal(context.Background(), tt.userID, "Aspirin", "10mg"); err != nil {
				t.Fatalf("NotifyDismissal() error = %v", err)
			}
			if len(f.gateway.sent) != 0 || len(f.logs.logs) != 0 {
				t.Errorf("sent %d, logged %d; want nothing", len(f.gateway.sent), len(f.logs.logs))
			}
		})
	}
}

func TestInstantEscalationSkipsContactsWithoutPhone(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "", "+15550000002")
	e := NewInstantEscalator(f.deps(), testLogger())

	res, err := e.Dispatch(context.Background(), jane.ID, "Aspirin", "10mg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || res.Skipped != 1 || len(f.logs.logs) != 1 {
		t.Errorf("result = %+v, logs = %d", res, len(f.logs.logs))
	}
}

func TestInstantEscalationStoreErrors(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.users.getErr = errBoom
	e := NewInstantEscalator(f.deps(), testLogger())

	if err := e.NotifyDismissal(context.Background(), jane.ID, "Aspirin", "10mg"); !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want wrapped errBoom", err)
	}
}

// memoryMarker is an AlertMarker backed by a set.
type memoryMarker struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *memoryMarker) Mark(ctx context.Context, id uuid.UUID, count int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := fmt.Sprintf("%s:%d", id, count)
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func breach(name string, scheduled time.Time, missed int) *schedule.Breach {
	return &schedule.Breach{
		ScheduleID:    uuid.New(),
		MedicineName:  name,
		Dosage:        "10mg",
		ScheduledTime: scheduled,
		MissedCount:   missed,
	}
}

func TestSweepAlertsEachContactPerBreach(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001", "+15550000002")
	f.gateway.failFor["+15550000002"] = errBoom
	scheds := &fakeSchedules{breaches: map[uuid.UUID][]*schedule.Breach{
		jane.ID: {
			breach("Aspirin", at(9, 0, 0), 3),
			breach("Statin", at(9, 1, 0), 2),   // below threshold
			breach("Insulin", at(8, 50, 0), 4), // outside the window
		},
	}}
	s := NewThresholdSweeper(f.deps(), scheds, nil, DefaultSweepConfig(), testLogger())

	report, err := s.Sweep(context.Background(), at(9, 3, 0))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if report.Users != 1 || report.Breaches != 1 || report.Sent != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	want := "Jane has missed 3 doses of Aspirin (10mg). Please check on them."
	if len(f.gateway.sent) != 1 || f.gateway.sent[0].to != "+15550000001" || f.gateway.sent[0].body != want {
		t.Errorf("sent = %+v", f.gateway.sent)
	}
	if len(f.logs.logs) != 2 {
		t.Fatalf("logged %d attempts, want 2", len(f.logs.logs))
	}
	statuses := map[sms.DeliveryStatus]int{}
	for _, l := range f.logs.logs {
		statuses[l.Status]++
	}
	if statuses[sms.StatusSent] != 1 || statuses[sms.StatusFailed] != 1 {
		t.Errorf("log statuses = %v", statuses)
	}
	if scheds.thresholds[jane.ID] != 3 {
		t.Errorf("threshold = %d, want default 3", scheds.thresholds[jane.ID])
	}
}

func TestSweepUsesProfileThreshold(t *testing.T) {
	jane := smsProfile("Jane")
	jane.MissedReminderThreshold = 5
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001")
	scheds := &fakeSchedules{breaches: map[uuid.UUID][]*schedule.Breach{
		jane.ID: {breach("Aspirin", at(9, 0, 0), 4)},
	}}
	s := NewThresholdSweeper(f.deps(), scheds, nil, DefaultSweepConfig(), testLogger())

	if _, err := s.Sweep(context.Background(), at(9, 3, 0)); err != nil {
		t.Fatal(err)
	}
	if scheds.thresholds[jane.ID] != 5 {
		t.Errorf("threshold = %d, want 5", scheds.thresholds[jane.ID])
	}
	if len(f.gateway.sent) != 0 {
		t.Error("4 misses must not alert with threshold 5")
	}
}

func TestSweepSkipsDisabledUsers(t *testing.T) {
	bob := smsProfile("Bob")
	bob.SMSNotificationsEnabled = false
	f := newSMSFixture(bob)
	f.contacts.byUser[bob.ID] = familyOf(bob.ID, "+15550000001")
	scheds := &fakeSchedules{breaches: map[uuid.UUID][]*schedule.Breach{
		bob.ID: {breach("Aspirin", at(9, 0, 0), 9)},
	}}
	s := NewThresholdSweeper(f.deps(), scheds, nil, DefaultSweepConfig(), testLogger())

	report, err := s.Sweep(context.Background(), at(9, 3, 0))
	if err != nil {
		t.Fatal(err)
	}
	if report.Users != 0 || len(f.gateway.sent) != 0 {
		t.Errorf("report = %+v, sent = %d", report, len(f.gateway.sent))
	}
}

func TestSweepIsolatesUserFailures(t *testing.T) {
	jane, ann := smsProfile("Jane"), smsProfile("Ann")
	f := newSMSFixture(jane, ann)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001")
	f.contacts.byUser[ann.ID] = familyOf(ann.ID, "+15550000002")
	scheds := &fakeSchedules{
		breaches: map[uuid.UUID][]*schedule.Breach{
			ann.ID: {breach("Aspirin", at(9, 0, 0), 3)},
		},
		breachErr: map[uuid.UUID]error{jane.ID: errBoom},
	}
	s := NewThresholdSweeper(f.deps(), scheds, nil, DefaultSweepConfig(), testLogger())

	report, err := s.Sweep(context.Background(), at(9, 3, 0))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.UserErrors != 1 || report.Sent != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(f.gateway.sent) != 1 || f.gateway.sent[0].to != "+15550000002" {
		t.Errorf("sent = %+v", f.gateway.sent)
	}
}

func TestSweepFailsWhenUsersCannotBeListed(t *testing.T) {
	f := newSMSFixture()
	f.users.listErr = errBoom
	s := NewThresholdSweeper(f.deps(), &fakeSchedules{}, nil, DefaultSweepConfig(), testLogger())

	if _, err := s.Sweep(context.Background(), at(9, 3, 0)); !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want wrapped errBoom", err)
	}
}

func TestSweepDeduplicatesWithMarker(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001")
	b := breach("Aspirin", at(9, 0, 0), 3)
	scheds := &fakeSchedules{breaches: map[uuid.UUID][]*schedule.Breach{jane.ID: {b}}}
	marker := &memoryMarker{seen: make(map[string]bool)}
	s := NewThresholdSweeper(f.deps(), scheds, marker, DefaultSweepConfig(), testLogger())
	ctx := context.Background()

	if _, err := s.Sweep(ctx, at(9, 1, 0)); err != nil {
		t.Fatal(err)
	}
	second, err := s.Sweep(ctx, at(9, 2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.gateway.sent) != 1 || second.Suppressed != 1 {
		t.Errorf("sent = %d, second = %+v", len(f.gateway.sent), second)
	}

	b.MissedCount = 4
	if _, err := s.Sweep(ctx, at(9, 3, 0)); err != nil {
		t.Fatal(err)
	}
	if len(f.gateway.sent) != 2 {
		t.Errorf("a higher missed count should alert again, sent = %d", len(f.gateway.sent))
	}
}

func TestSweepWithoutMarkerRealerts(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001")
	scheds := &fakeSchedules{breaches: map[uuid.UUID][]*schedule.Breach{
		jane.ID: {breach("Aspirin", at(9, 0, 0), 3)},
	}}
	s := NewThresholdSweeper(f.deps(), scheds, nil, DefaultSweepConfig(), testLogger())

	for _, now := range []time.Time{at(9, 1, 0), at(9, 2, 0)} {
		if _, err := s.Sweep(context.Background(), now); err != nil {
			t.Fatal(err)
		}
	}
	if len(f.gateway.sent) != 2 {
		t.Errorf("sent = %d, want 2", len(f.gateway.sent))
	}
}

func TestSweepMarkerErrorStillSends(t *testing.T) {
	jane := smsProfile("Jane")
	f := newSMSFixture(jane)
	f.contacts.byUser[jane.ID] = familyOf(jane.ID, "+15550000001")
	scheds := &fakeSchedules{breaches: map[uuid.UUID][]*schedule.Breach{
		jane.ID: {breach("Aspirin", at(9, 0, 0), 3)},
	}}
	s := NewThresholdSweeper(f.deps(), scheds, &memoryMarker{err: errBoom}, DefaultSweepConfig(), testLogger())

	if _, err := s.Sweep(context.Background(), at(9, 3, 0)); err != nil {
		t.Fatal(err)
	}
	if len(f.gateway.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(f.gateway.sent))
	}
}
