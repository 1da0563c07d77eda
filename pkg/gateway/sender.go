package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"inspection/pkg/logx"
)

// Sender delivers an outbound message to an inspector. The gateway uses it
// for early acknowledgements and for webhook replies.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender sends WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
	logger *logx.Logger
}

// NewTwilioSender builds a sender from account credentials. from is the
// WhatsApp-enabled Twilio number, with or without the "whatsapp:" prefix.
func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("missing twilio credentials")
	}
	if from == "" {
		return nil, errors.New("missing twilio from number")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{
		client: client,
		from:   whatsappAddr(from),
		logger: logx.NewLogger("twilio"),
	}, nil
}

// Send delivers one WhatsApp message. to is a session ID, i.e. a bare E.164
// phone number.
func (s *TwilioSender) Send(_ context.Context, to, body string) error {
	if to == "" {
		return errors.New("missing recipient")
	}
	params := &api.CreateMessageParams{}
	params.SetTo(whatsappAddr(to))
	params.SetFrom(s.from)
	params.SetBody(body)
	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return err
	}
	if resp.Sid != nil {
		s.logger.Debug("sent message %s to %s", *resp.Sid, to)
	}
	return nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// LogSender logs outbound messages instead of delivering them. Used by the
// chat endpoint and in demo mode when Twilio is not configured.
type LogSender struct {
	logger *logx.Logger
}

// NewLogSender builds a logging sender.
func NewLogSender() *LogSender {
	return &LogSender{logger: logx.NewLogger("outbound")}
}

// Send logs the message and succeeds.
func (s *LogSender) Send(_ context.Context, to, body string) error {
	s.logger.Info("to %s: %s", to, body)
	return nil
}
