// internal/domain/sms/gateway.go
package sms

import "context"

// DeliveryResult is what the messaging provider reported for one message.
type DeliveryResult struct {
	SID    string
	Status string
	Raw    any // Provider payload, persisted as JSON in the delivery log
}

// Gateway sends a single text message. Logging the outcome is the caller's job.
type Gateway interface {
	Send(ctx context.Context, to, from, body string) (*DeliveryResult, error)
}
