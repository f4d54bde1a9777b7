package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"medication_reminder_bot/internal/domain/contact"
	"medication_reminder_bot/internal/domain/reminder"
	"medication_reminder_bot/internal/domain/schedule"
	"medication_reminder_bot/internal/domain/sms"
	"medication_reminder_bot/internal/domain/user"
	idb "medication_reminder_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var errBoom = errors.New("boom")

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2026, 3, 14, hh, mm, ss, 0, time.Local)
}

func pendingItem(name string, scheduled time.Time) *schedule.Item {
	return &schedule.Item{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		MedicineID:    uuid.New(),
		MedicineName:  name,
		Dosage:        "10mg",
		ScheduledTime: scheduled,
		Status:        schedule.StatusPending,
	}
}

// fakeSchedules is an in-memory schedule.Repository.
type fakeSchedules struct {
	mu        sync.Mutex
	items     []*schedule.Item
	listErr   error
	markErr   error
	listCalls int
	onGet     func()
	taken     []uuid.UUID
	missed    []uuid.UUID

	breaches   map[uuid.UUID][]*schedule.Breach
	breachErr  map[uuid.UUID]error
	thresholds map[uuid.UUID]int
}

func (f *fakeSchedules) ListToday(ctx context.Context, userID uuid.UUID, now time.Time) ([]*schedule.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*schedule.Item, 0, len(f.items))
	for _, it := range f.items {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSchedules) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Item, error) {
	if f.onGet != nil {
		f.onGet()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id {
			cp := *it
			return &cp, nil
		}
	}
	return nil, idb.ErrScheduleItemNotFound
}

func (f *fakeSchedules) MarkTaken(ctx context.Context, id uuid.UUID, takenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.taken = append(f.taken, id)
	f.setStatus(id, schedule.StatusTaken)
	return nil
}

func (f *fakeSchedules) MarkMissed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.missed = append(f.missed, id)
	f.setStatus(id, schedule.StatusMissed)
	return nil
}

func (f *fakeSchedules) setStatus(id uuid.UUID, s schedule.Status) {
	for _, it := range f.items {
		if it.ID == id {
			it.Status = s
		}
	}
}

func (f *fakeSchedules) ListBreaches(ctx context.Context, userID uuid.UUID, from, to time.Time, threshold int) ([]*schedule.Breach, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.thresholds == nil {
		f.thresholds = make(map[uuid.UUID]int)
	}
	f.thresholds[userID] = threshold
	if err := f.breachErr[userID]; err != nil {
		return nil, err
	}
	var out []*schedule.Breach
	for _, b := range f.breaches[userID] {
		if b.MissedCount >= threshold && !b.ScheduledTime.Before(from) && !b.ScheduledTime.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSchedules) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// fakeAttempts counts misses per schedule item.
type fakeAttempts struct {
	mu       sync.Mutex
	counts   map[uuid.UUID]int
	incErr   error
	resetErr error
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{counts: make(map[uuid.UUID]int)}
}

func (f *fakeAttempts) Increment(ctx context.Context, scheduleID, medicineID, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return f.incErr
	}
	f.counts[scheduleID]++
	return nil
}

func (f *fakeAttempts) Reset(ctx context.Context, scheduleID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.counts[scheduleID] = 0
	return nil
}

func (f *fakeAttempts) Get(ctx context.Context, scheduleID, userID uuid.UUID) (*reminder.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.counts[scheduleID]
	if !ok {
		return nil, idb.ErrAttemptNotFound
	}
	return &reminder.Attempt{ScheduleID: scheduleID, UserID: userID, MissedCount: n}, nil
}

func (f *fakeAttempts) count(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id]
}

// fakeEscalator records dismissals.
type fakeEscalator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEscalator) NotifyDismissal(ctx context.Context, userID uuid.UUID, medicineName, dosage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, medicineName+"|"+dosage)
	return f.err
}

// recorder implements every effect interface and records what happened.
type recorder struct {
	mu        sync.Mutex
	supported bool
	speaking  bool
	spoken    []string
	sounds    []Sound
	missing   map[Sound]bool
	toasts    []string
	levels    []ToastLevel
	shown     []ActiveReminder
	cleared   []ActiveReminder
	notified  []SystemNotification
}

func newRecorder() *recorder {
	return &recorder{supported: true, missing: make(map[Sound]bool)}
}

func (r *recorder) effects() Effects {
	return Effects{Speaker: r, Notifier: r, Sounds: r, Toaster: r, Renderer: r}
}

func (r *recorder) Supported() bool { return r.supported }

func (r *recorder) Speaking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaking
}

func (r *recorder) Speak(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, text)
	return nil
}

func (r *recorder) Notify(ctx context.Context, userID uuid.UUID, n SystemNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, n)
	return nil
}

func (r *recorder) Play(ctx context.Context, s Sound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[s] {
		return ErrSoundUnavailable
	}
	r.sounds = append(r.sounds, s)
	return nil
}

func (r *recorder) Toast(ctx context.Context, msg string, level ToastLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, msg)
	r.levels = append(r.levels, level)
	return nil
}

func (r *recorder) Show(ctx context.Context, a ActiveReminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, a)
	return nil
}

func (r *recorder) Clear(ctx context.Context, a ActiveReminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, a)
	return nil
}

// manualTimers replaces time.AfterFunc; tests fire callbacks by hand.
type manualTimers struct {
	mu      sync.Mutex
	delays  []time.Duration
	fns     []func()
	stopped int
}

func (m *manualTimers) after(d time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.fns = append(m.fns, f)
	return func() bool {
		m.mu.Lock()
		m.stopped++
		m.mu.Unlock()
		return true
	}
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.fns[i]
	m.mu.Unlock()
	f()
}

func (m *manualTimers) armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}

// fakeUsers is an in-memory user.Repository.
type fakeUsers struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*user.Profile
	getErr   error
	listErr  error
	linkErr  error
}

func newFakeUsers(ps ...*user.Profile) *fakeUsers {
	f := &fakeUsers{profiles: make(map[uuid.UUID]*user.Profile)}
	for _, p := range ps {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, idb.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeUsers) GetByTelegramChatID(ctx context.Context, chatID int64) (*user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.TelegramChatID.Valid && p.TelegramChatID.Int64 == chatID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, idb.ErrUserNotFound
}

func (f *fakeUsers) ListSMSEnabled(ctx context.Context) ([]*user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*user.Profile
	for _, p := range f.profiles {
		if p.SMSNotificationsEnabled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListLinked(ctx context.Context) ([]*user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*user.Profile
	for _, p := range f.profiles {
		if p.TelegramChatID.Valid {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeUsers) LinkTelegramChat(ctx context.Context, id uuid.UUID, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return f.linkErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return idb.ErrUserNotFound
	}
	p.TelegramChatID.Int64 = chatID
	p.TelegramChatID.Valid = true
	return nil
}

type fakeContacts struct {
	byUser map[uuid.UUID][]*contact.Contact
	err    error
}

func (f *fakeContacts) ListByUser(ctx context.Context, userID uuid.UUID) ([]*contact.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

// fakeGateway records sends; numbers in failFor return an error.
type fakeGateway struct {
	mu      sync.Mutex
	sent    []sentSMS
	failFor map[string]error
}

type sentSMS struct{ to, from, body string }

func (f *fakeGateway) Send(ctx context.Context, to, from, body string) (*sms.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[to]; err != nil {
		return nil, err
	}
	f.sent = append(f.sent, sentSMS{to: to, from: from, body: body})
	return &sms.DeliveryResult{SID: "SM" + to, Status: "queued"}, nil
}

type fakeSMSLogs struct {
	mu   sync.Mutex
	logs []*sms.Log
}

func (f *fakeSMSLogs) Create(ctx context.Context, l *sms.Log) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}
