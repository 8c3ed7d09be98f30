package sms

import (
	"context"
	"errors"
	"fmt"

	"lifeline-plus/config"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrDispatch wraps every failure of the single send attempt.
var ErrDispatch = errors.New("sms dispatch failed")

// Dispatcher sends one SMS and returns the provider message id.
type Dispatcher interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// messageCreator is the part of the Twilio API service the dispatcher needs.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioDispatcher struct {
	api  messageCreator
	from string
	log  *logrus.Logger
}

func NewTwilioDispatcher(cfg config.TwilioConfig, log *logrus.Logger) *TwilioDispatcher {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioDispatcher(client.Api, cfg.FromPhone, log)
}

func newTwilioDispatcher(api messageCreator, from string, log *logrus.Logger) *TwilioDispatcher {
	return &TwilioDispatcher{api: api, from: from, log: log}
}

// Send makes exactly one attempt. There is no retry and no status polling.
func (d *TwilioDispatcher) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("%w: missing recipient", ErrDispatch)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetBody(body)

	msg, err := d.api.CreateMessage(params)
	if err != nil {
		d.log.Errorf("Twilio error sending to %s: %+v", maskPhone(to), err)
		return "", fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	if msg == nil || msg.Sid == nil || *msg.Sid == "" {
		return "", fmt.Errorf("%w: provider returned no message sid", ErrDispatch)
	}

	d.log.Infof("SMS sent: sid=%s to=%s", *msg.Sid, maskPhone(to))
	return *msg.Sid, nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
