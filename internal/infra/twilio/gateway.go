// Package twilio delivers family SMS through the Twilio REST API.
package twilio

import (
	"context"
	"fmt"

	"medication_reminder_bot/internal/domain/sms"

	twilioclient "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio client the gateway uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Gateway struct {
	api messageCreator
}

func NewGateway(accountSID, authToken string) *Gateway {
	client := twilioclient.NewRestClientWithParams(twilioclient.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Gateway{api: client.Api}
}

// Send creates one message. The Twilio SDK has no context support; ctx is only
// checked before the call.
func (g *Gateway) Send(ctx context.Context, to, from, body string) (*sms.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	msg, err := g.api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("twilio create message: %w", err)
	}

	result := &sms.DeliveryResult{Raw: msg}
	if msg.Sid != nil {
		result.SID = *msg.Sid
	}
	if msg.Status != nil {
		result.Status = *msg.Status
	}
	return result, nil
}

// ErrNotConfigured is returned by Disabled for every send.
var ErrNotConfigured = fmt.Errorf("sms gateway is not configured")

// Disabled stands in when no Twilio credentials are set, so attempts still get logged.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string, string) (*sms.DeliveryResult, error) {
	return nil, ErrNotConfigured
}
