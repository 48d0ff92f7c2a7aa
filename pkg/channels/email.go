package channels

import (
	"context"
	"fmt"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// Mailer delivers one HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EmailChannel sends reminders to the configured user address.
type EmailChannel struct {
	mailer Mailer
}

// NewEmailChannel creates an email channel. A nil mailer leaves the channel
// permanently disabled.
func NewEmailChannel(mailer Mailer) *EmailChannel {
	return &EmailChannel{mailer: mailer}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Kind() Kind { return KindMessage }

func (e *EmailChannel) Enabled(s model.Settings) bool {
	return e.mailer != nil && s.IsEmailEnabled && s.UserEmail != ""
}

func (e *EmailChannel) Send(ctx context.Context, r Reminder, s model.Settings) error {
	if !e.Enabled(s) {
		return ErrNotConfigured
	}
	subject, body, err := EmailContent(r)
	if err != nil {
		return err
	}
	if err := e.mailer.Send(ctx, s.UserEmail, subject, body); err != nil {
		return fmt.Errorf("send email for bill %d: %w", r.Bill.ID, err)
	}
	return nil
}

func (e *EmailChannel) SendTest(ctx context.Context, s model.Settings) error {
	switch {
	case e.mailer == nil:
		return fmt.Errorf("%w: no mail transport", ErrNotConfigured)
	case !s.IsEmailEnabled:
		return fmt.Errorf("%w: email notifications are disabled", ErrNotConfigured)
	case s.UserEmail == "":
		return fmt.Errorf("%w: no recipient address", ErrNotConfigured)
	}
	body := fmt.Sprintf("<p>%s</p>", testText)
	if err := e.mailer.Send(ctx, s.UserEmail, testSubject, body); err != nil {
		return fmt.Errorf("send test email: %w", err)
	}
	return nil
}
