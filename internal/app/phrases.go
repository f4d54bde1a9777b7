package app

import (
	"strconv"
	"strings"
	"time"

	"medication_reminder_bot/internal/domain/schedule"
)

// Phrasebook holds the user-facing templates. Placeholders: {medicine}, {dosage}, {seconds}.
type Phrasebook struct {
	TakeMedicine      string
	MedicineTaken     string
	MedicineDismissed string
	SnoozeMessage     string
	ReminderTitle     string
	ReminderBody      string
	ActionFailed      string
}

func DefaultPhrasebook() Phrasebook {
	return Phrasebook{
		TakeMedicine:      "Time to take {medicine}, {dosage}",
		MedicineTaken:     "Great! You've taken your {medicine}",
		MedicineDismissed: "{medicine} reminder dismissed",
		SnoozeMessage:     "I'll remind you again in {seconds} seconds",
		ReminderTitle:     "Medicine Reminder",
		ReminderBody:      "Time to take {medicine} - {dosage}",
		ActionFailed:      "Something went wrong. Please try again.",
	}
}

func fill(template string, item schedule.Item) string {
	return strings.NewReplacer("{medicine}", item.MedicineName, "{dosage}", item.Dosage).Replace(template)
}

func (p Phrasebook) Take(item schedule.Item) string      { return fill(p.TakeMedicine, item) }
func (p Phrasebook) Taken(item schedule.Item) string     { return fill(p.MedicineTaken, item) }
func (p Phrasebook) Dismissed(item schedule.Item) string { return fill(p.MedicineDismissed, item) }
func (p Phrasebook) Body(item schedule.Item) string      { return fill(p.ReminderBody, item) }

func (p Phrasebook) Snoozed(delay time.Duration) string {
	return strings.ReplaceAll(p.SnoozeMessage, "{seconds}", strconv.Itoa(int(delay.Seconds())))
}
