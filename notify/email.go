package notify

import (
	"context"
	"fmt"

	"regsync/models"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailGateway delivers alerts over SendGrid.
type EmailGateway struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewEmailGateway creates a SendGrid-backed email gateway.
func NewEmailGateway(apiKey, fromName, fromEmail string) *EmailGateway {
	return &EmailGateway{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (e *EmailGateway) Channel() string { return "email" }

// Deliver sends one alert email and consumes the reported status.
func (e *EmailGateway) Deliver(ctx context.Context, req models.NotificationRequest) error {
	from := mail.NewEmail(e.fromName, e.fromEmail)
	to := mail.NewEmail(req.Contact, req.Contact)
	subject := "New violations found for your property"

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject

	p := mail.NewPersonalization()
	p.AddTos(to)
	message.AddPersonalizations(p)

	message.AddContent(mail.NewContent("text/plain", req.Message))
	message.AddContent(mail.NewContent("text/html", e.htmlBody(req.Message)))

	response, err := e.client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}

	log.Infof("Alert email sent to %s! Status: %d", req.Contact, response.StatusCode)
	return nil
}

func (e *EmailGateway) htmlBody(message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Property Alert</title>
</head>
<body>
    <h2>Property Alert</h2>
    <p>%s</p>
    <p>Best regards,<br>The RegSync Team</p>
</body>
</html>`, message)
}
