package adapters

import (
	"context"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// OATHSource maps the hearings tribunal's ECB violation dataset, which
// carries hearing dates and imposed penalties.
type OATHSource struct {
	client *Client
}

func NewOATHSource(client *Client) *OATHSource {
	return &OATHSource{client: client}
}

func (s *OATHSource) Authority() models.Authority { return models.AuthorityOATH }
func (s *OATHSource) Dataset() string             { return "oath_ecb_hearings" }
func (s *OATHSource) Quick() bool                 { return false }

func (s *OATHSource) Fetch(ctx context.Context, ids Identifiers) []models.Violation {
	if ids.BuildingID == "" {
		log.Infof("OATH: property %d has no building id, skipping fetch", ids.PropertyID)
		return nil
	}

	records, err := s.client.Query(ctx, "jz4z-kudi", "violation_date", map[string]string{
		"bin": ids.BuildingID,
	})
	if err != nil {
		log.WithError(err).Errorf("OATH fetch failed for building %s", ids.BuildingID)
		return nil
	}

	now := time.Now()
	var vs []models.Violation
	for _, r := range records {
		number := r.field("ticket_number")
		if number == "" {
			continue
		}
		vs = append(vs, models.Violation{
			PropertyID:      ids.PropertyID,
			Authority:       models.AuthorityOATH,
			ViolationNumber: number,
			SourceDataset:   s.Dataset(),
			IssuedDate:      r.date("violation_date"),
			HearingDate:     r.dateOrNil("hearing_date"),
			Description:     r.field("violation_description"),
			Severity:        r.field("charge_1_code"),
			CriticalOrder:   classifyCritical("", r.field("violation_description")),
			Penalty:         r.amount("penalty_imposed"),
			Status:          canonicalStatus(r.field("hearing_status")),
			Suppression:     models.Active(),
			LastSyncedAt:    now,
		})
	}
	return vs
}
