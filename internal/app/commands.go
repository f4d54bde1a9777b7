package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ErrStaleReminder is returned when a command targets an item that is no longer active.
var ErrStaleReminder = fmt.Errorf("reminder is no longer active")

// Command is a user decision on the active reminder, invoked by the host UI.
type Command interface {
	Name() string
	// Target is the schedule item the user acted on; uuid.Nil means whatever is active.
	Target() uuid.UUID
	Execute(ctx context.Context, p *Presenter) error
}

type TakeCommand struct{ ScheduleID uuid.UUID }

func (TakeCommand) Name() string                                     { return "take" }
func (c TakeCommand) Target() uuid.UUID                              { return c.ScheduleID }
func (TakeCommand) Execute(ctx context.Context, p *Presenter) error { return p.Take(ctx) }

type SnoozeCommand struct{ ScheduleID uuid.UUID }

func (SnoozeCommand) Name() string                                     { return "snooze" }
func (c SnoozeCommand) Target() uuid.UUID                              { return c.ScheduleID }
func (SnoozeCommand) Execute(ctx context.Context, p *Presenter) error { return p.Snooze(ctx) }

type DismissCommand struct{ ScheduleID uuid.UUID }

func (DismissCommand) Name() string                                     { return "dismiss" }
func (c DismissCommand) Target() uuid.UUID                              { return c.ScheduleID }
func (DismissCommand) Execute(ctx context.Context, p *Presenter) error { return p.Dismiss(ctx) }

// ParseCommand maps an action name from the host UI to its command.
func ParseCommand(action string, scheduleID uuid.UUID) (Command, error) {
	switch action {
	case "take":
		return TakeCommand{ScheduleID: scheduleID}, nil
	case "snooze":
		return SnoozeCommand{ScheduleID: scheduleID}, nil
	case "dismiss":
		return DismissCommand{ScheduleID: scheduleID}, nil
	default:
		return nil, fmt.Errorf("unknown reminder action %q", action)
	}
}
