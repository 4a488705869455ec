package events

import (
	"context"
	"fmt"
	"time"

	"carrental-backend/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// EmailNotifier mails the owner inbox when a new booking awaits approval.
// Other event types are ignored.
type EmailNotifier struct {
	sender     mailSender
	fromEmail  string
	fromName   string
	ownerEmail string
}

func NewEmailNotifier(apiKey, fromEmail, fromName, ownerEmail string) *EmailNotifier {
	return &EmailNotifier{
		sender:     sendgrid.NewSendClient(apiKey),
		fromEmail:  fromEmail,
		fromName:   fromName,
		ownerEmail: ownerEmail,
	}
}

func (n *EmailNotifier) Publish(ctx context.Context, e Event) error {
	if e.Type != BookingCreated {
		return nil
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("Owner", n.ownerEmail)
	subject, plain, html := ownerNotice(e)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	logger.ExternalServiceCall("sendgrid", "Send", "bookingID", e.BookingID)
	response, err := n.sender.Send(message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "bookingID", e.BookingID)
	if err != nil {
		return fmt.Errorf("failed to send booking notice: %w", err)
	}
	return nil
}

func ownerNotice(e Event) (subject, plain, html string) {
	start := e.StartDate.UTC().Format(time.DateOnly)
	end := e.EndDate.UTC().Format(time.DateOnly)
	price := fmt.Sprintf("%d.%02d %s", e.TotalPriceCents/100, e.TotalPriceCents%100, e.Currency)

	subject = fmt.Sprintf("New booking request for car %s", e.CarID)
	plain = fmt.Sprintf("Booking %s for car %s from %s to %s (%s) is waiting for approval.",
		e.BookingID, e.CarID, start, end, price)
	html = fmt.Sprintf(`<p>Booking <strong>%s</strong> for car <strong>%s</strong> is waiting for approval.</p>
<ul><li>From: %s</li><li>To: %s</li><li>Total: %s</li></ul>`,
		e.BookingID, e.CarID, start, end, price)
	return subject, plain, html
}
