// Package notify decides whether a sync outcome warrants an owner alert,
// renders the message, and hands it to the external delivery gateway.
// Delivery is fire-and-forget: whatever outcome the gateway reports is
// recorded, and a failure here never fails the sync.
package notify

import (
	"context"
	"fmt"
	"strings"

	"regsync/models"

	"github.com/apex/log"
)

// Gateway delivers a rendered notification over one channel.
type Gateway interface {
	Channel() string
	Deliver(ctx context.Context, req models.NotificationRequest) error
}

// Recorder persists notification outcomes and activity entries.
type Recorder interface {
	RecordNotification(ctx context.Context, req models.NotificationRequest, status, detail string) error
	InsertActivity(ctx context.Context, entry models.ActivityEntry) error
}

// Outcome is the slice of a sync result the dispatcher gates on.
type Outcome struct {
	NewViolations int
	CriticalCount int
	Authorities   []models.Authority
}

// Dispatcher routes notifications to the configured channel gateways.
type Dispatcher struct {
	gateways map[string]Gateway
	recorder Recorder
}

// NewDispatcher creates a dispatcher over the given gateways.
func NewDispatcher(recorder Recorder, gateways ...Gateway) *Dispatcher {
	byChannel := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		byChannel[g.Channel()] = g
	}
	return &Dispatcher{gateways: byChannel, recorder: recorder}
}

// ShouldNotify applies the gating condition: alerts enabled, a contact on
// file, and at least one new violation found.
func ShouldNotify(p *models.Property, outcome Outcome) bool {
	return p.AlertsEnabled && p.HasContact() && outcome.NewViolations > 0
}

// BuildMessage renders the alert text: count and address first, a critical
// clause when any new violation carries a critical-order flag, and the synced
// authority list last.
func BuildMessage(p *models.Property, outcome Outcome) string {
	plural := "violations"
	if outcome.NewViolations == 1 {
		plural = "violation"
	}
	msg := fmt.Sprintf("%d new %s found for %s.", outcome.NewViolations, plural, p.Address)

	if outcome.CriticalCount > 0 {
		msg += fmt.Sprintf(" %d carry a stop-work or vacate order - immediate attention required.", outcome.CriticalCount)
	}

	if len(outcome.Authorities) > 0 {
		names := make([]string, len(outcome.Authorities))
		for i, a := range outcome.Authorities {
			names[i] = string(a)
		}
		msg += fmt.Sprintf(" Authorities synced: %s.", strings.Join(names, ", "))
	}
	return msg
}

// Dispatch gates, renders and delivers one notification for a sync outcome.
// Returns whether a request was sent successfully.
func (d *Dispatcher) Dispatch(ctx context.Context, p *models.Property, outcome Outcome) bool {
	if !ShouldNotify(p, outcome) {
		return false
	}

	req := models.NotificationRequest{
		PropertyID: p.ID,
		Message:    BuildMessage(p, outcome),
	}
	if p.ContactEmail != "" {
		req.Channel = "email"
		req.Contact = p.ContactEmail
	} else {
		req.Channel = "sms"
		req.Contact = p.ContactPhone
	}

	gateway, ok := d.gateways[req.Channel]
	if !ok {
		log.Warnf("No %s gateway configured, dropping notification for property %d", req.Channel, p.ID)
		d.record(ctx, req, "failed", "no gateway configured")
		return false
	}

	if err := gateway.Deliver(ctx, req); err != nil {
		log.WithError(err).Errorf("Notification delivery failed for property %d", p.ID)
		d.record(ctx, req, "failed", err.Error())
		return false
	}

	d.record(ctx, req, "sent", "")
	return true
}

func (d *Dispatcher) record(ctx context.Context, req models.NotificationRequest, status, detail string) {
	if err := d.recorder.RecordNotification(ctx, req, status, detail); err != nil {
		log.WithError(err).Errorf("Failed to record notification outcome for property %d", req.PropertyID)
	}
	entry := models.ActivityEntry{
		PropertyID: req.PropertyID,
		Kind:       "notification",
		Message:    fmt.Sprintf("%s notification to %s: %s", req.Channel, req.Contact, status),
	}
	if err := d.recorder.InsertActivity(ctx, entry); err != nil {
		log.WithError(err).Errorf("Failed to log notification activity for property %d", req.PropertyID)
	}
}
