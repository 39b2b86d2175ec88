package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/taskpilot/core/internal/ports"
)

// TwilioSMSSender delivers SMS through the Twilio API.
type TwilioSMSSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSMSSender creates an SMS sink backed by Twilio.
func NewTwilioSMSSender(accountSID, authToken, from string) *TwilioSMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSSender{client: client, from: from}
}

// Send implements ports.SMSSender. The Twilio client has no
// context-aware call; the context is still honored before dispatch so a
// cancelled tick does not fire additional messages.
func (s *TwilioSMSSender) Send(ctx context.Context, msg ports.SMSMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := msg.From
	if from == "" {
		from = s.from
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(from)
	params.SetBody(msg.Body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms via twilio: %w", err)
	}

	return nil
}
