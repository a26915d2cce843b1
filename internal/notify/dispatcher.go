// Package notify delivers completion notifications over email and SMS.
// Delivery failures are logged and swallowed; a completed submission is never
// rolled back because a notification bounced.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
)

// ChannelResult records the outcome of one delivery channel.
type ChannelResult struct {
	Attempted bool
	Sent      bool
	Recipient string
	Reason    string
}

// Results pairs the per-channel outcomes of one dispatch.
type Results struct {
	Email ChannelResult
	SMS   ChannelResult
}

// Config carries the delivery credentials. Channels with missing credentials
// are skipped, not errors.
type Config struct {
	BaseURL           string
	SendgridAPIKey    string
	SendgridFromEmail string
	SendgridFromName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
}

// Dispatcher sends completion notifications through SendGrid and Twilio.
type Dispatcher struct {
	cfg      Config
	sendgrid *sendgrid.Client
	twilio   *twilio.RestClient
	logger   *zap.Logger
}

// NewDispatcher builds a dispatcher; unconfigured channels stay nil and are
// reported as skipped at dispatch time.
func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := &Dispatcher{cfg: cfg, logger: logger}
	if strings.TrimSpace(cfg.SendgridAPIKey) != "" {
		dispatcher.sendgrid = sendgrid.NewSendClient(cfg.SendgridAPIKey)
	}
	if strings.TrimSpace(cfg.TwilioAccountSID) != "" && strings.TrimSpace(cfg.TwilioAuthToken) != "" {
		dispatcher.twilio = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
	}
	return dispatcher
}

// NotifyCompletion satisfies the submission service's CompletionNotifier.
func (d *Dispatcher) NotifyCompletion(ctx context.Context, notice submissions.CompletionNotice) {
	results := d.Dispatch(ctx, notice)
	d.logger.Info("completion notifications dispatched",
		zap.String("submission_id", notice.SubmissionID),
		zap.Bool("email_sent", results.Email.Sent),
		zap.Bool("sms_sent", results.SMS.Sent))
}

// Dispatch attempts every channel the notice has a recipient for and reports
// per-channel outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, notice submissions.CompletionNotice) Results {
	results := Results{}
	if notice.Email != "" {
		results.Email = d.sendEmail(notice)
	}
	if notice.Phone != "" {
		results.SMS = d.sendSMS(notice)
	}
	return results
}

// GalleryURL returns the public link recipients use to view their stickers.
func (d *Dispatcher) GalleryURL(submissionID string) string {
	base := strings.TrimRight(d.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/gallery.html?id=%s", base, submissionID)
}

func (d *Dispatcher) sendEmail(notice submissions.CompletionNotice) ChannelResult {
	result := ChannelResult{Attempted: true, Recipient: notice.Email}
	if d.sendgrid == nil {
		result.Attempted = false
		result.Reason = "sendgrid not configured"
		d.logger.Info("email notification skipped", zap.String("reason", result.Reason))
		return result
	}

	eventName := notice.EventName
	if eventName == "" {
		eventName = "Your Event"
	}
	galleryURL := d.GalleryURL(notice.SubmissionID)

	from := sgmail.NewEmail(d.cfg.SendgridFromName, d.cfg.SendgridFromEmail)
	to := sgmail.NewEmail(notice.Name, notice.Email)
	subject := fmt.Sprintf("Your Stickers from %s are Ready!", eventName)
	plain := fmt.Sprintf(
		"Hi %s,\n\nYour personalized stickers from %s are ready!\n\nView and download them here: %s\n",
		notice.Name, eventName, galleryURL)
	html := fmt.Sprintf(
		`<p>Hi <strong>%s</strong>,</p><p>Your personalized stickers from <strong>%s</strong> are ready for you to view and download.</p><p><a href="%s">View Your Stickers</a></p>`,
		notice.Name, eventName, galleryURL)

	message := sgmail.NewSingleEmail(from, subject, to, plain, html)
	response, err := d.sendgrid.Send(message)
	if err != nil {
		result.Reason = err.Error()
		d.logger.Warn("email notification failed",
			zap.String("submission_id", notice.SubmissionID), zap.Error(err))
		return result
	}
	if response.StatusCode >= 400 {
		result.Reason = fmt.Sprintf("sendgrid status %d", response.StatusCode)
		d.logger.Warn("email notification rejected",
			zap.String("submission_id", notice.SubmissionID),
			zap.Int("status", response.StatusCode))
		return result
	}

	result.Sent = true
	return result
}

func (d *Dispatcher) sendSMS(notice submissions.CompletionNotice) ChannelResult {
	phone := NormalizePhone(notice.Phone)
	result := ChannelResult{Attempted: true, Recipient: phone}
	if d.twilio == nil {
		result.Attempted = false
		result.Reason = "twilio not configured"
		d.logger.Info("sms notification skipped", zap.String("reason", result.Reason))
		return result
	}

	eventName := notice.EventName
	if eventName == "" {
		eventName = "your event"
	}
	body := fmt.Sprintf("Hi %s! Your stickers from %s are ready. View & download here: %s",
		notice.Name, eventName, d.GalleryURL(notice.SubmissionID))

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(d.cfg.TwilioFromNumber)
	params.SetBody(body)

	if _, err := d.twilio.Api.CreateMessage(params); err != nil {
		result.Reason = err.Error()
		d.logger.Warn("sms notification failed",
			zap.String("submission_id", notice.SubmissionID), zap.Error(err))
		return result
	}

	result.Sent = true
	return result
}

// NormalizePhone strips formatting characters and defaults bare ten-digit
// numbers to the US country code.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if len(number) == 10 {
		return "+1" + number
	}
	if strings.HasPrefix(raw, "+") {
		return "+" + number
	}
	return "+" + number
}
