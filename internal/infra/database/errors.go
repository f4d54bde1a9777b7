package database

import "fmt"

// Custom errors returned by the Postgres repositories
var (
	ErrScheduleItemNotFound  = fmt.Errorf("schedule item not found")
	ErrAttemptNotFound       = fmt.Errorf("reminder attempt not found")
	ErrUserNotFound          = fmt.Errorf("user profile not found")
	ErrDuplicateTelegramChat = fmt.Errorf("telegram chat is already linked to another profile")
	ErrSubscriptionNotFound  = fmt.Errorf("push subscription not found")
)
