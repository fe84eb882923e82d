package adapters

import (
	"context"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// DOBLegacySource maps the buildings department's legacy violation dataset.
// It is listed before the DOB NOW source in the registry so the current
// system of record wins the deduplication fold.
type DOBLegacySource struct {
	client *Client
}

func NewDOBLegacySource(client *Client) *DOBLegacySource {
	return &DOBLegacySource{client: client}
}

func (s *DOBLegacySource) Authority() models.Authority { return models.AuthorityDOB }
func (s *DOBLegacySource) Dataset() string             { return "dob_violations_legacy" }
func (s *DOBLegacySource) Quick() bool                 { return false }

func (s *DOBLegacySource) Fetch(ctx context.Context, ids Identifiers) []models.Violation {
	if ids.BuildingID == "" {
		log.Infof("DOB legacy: property %d has no building id, skipping fetch", ids.PropertyID)
		return nil
	}

	records, err := s.client.Query(ctx, "3h2n-5cm9", "issue_date", map[string]string{
		"bin": ids.BuildingID,
	})
	if err != nil {
		log.WithError(err).Errorf("DOB legacy fetch failed for building %s", ids.BuildingID)
		return nil
	}

	now := time.Now()
	var vs []models.Violation
	for _, r := range records {
		number := r.field("number")
		if number == "" {
			continue
		}
		vs = append(vs, models.Violation{
			PropertyID:      ids.PropertyID,
			Authority:       models.AuthorityDOB,
			ViolationNumber: number,
			SourceDataset:   s.Dataset(),
			IssuedDate:      r.date("issue_date"),
			Description:     r.field("description"),
			Severity:        r.field("violation_category"),
			CriticalOrder:   classifyCritical(r.field("violation_type_code"), r.field("description"), r.field("violation_category")),
			Penalty:         r.amount("penalty_imposed"),
			Status:          canonicalStatus(r.field("violation_status")),
			Suppression:     models.Active(),
			LastSyncedAt:    now,
		})
	}
	return vs
}

// DOBNowSource maps the current DOB system-of-record dataset. It is the
// fast-moving authority quick-mode runs are restricted to.
type DOBNowSource struct {
	client *Client
}

func NewDOBNowSource(client *Client) *DOBNowSource {
	return &DOBNowSource{client: client}
}

func (s *DOBNowSource) Authority() models.Authority { return models.AuthorityDOB }
func (s *DOBNowSource) Dataset() string             { return "dob_violations_now" }
func (s *DOBNowSource) Quick() bool                 { return true }

func (s *DOBNowSource) Fetch(ctx context.Context, ids Identifiers) []models.Violation {
	if ids.BuildingID == "" {
		log.Infof("DOB NOW: property %d has no building id, skipping fetch", ids.PropertyID)
		return nil
	}

	records, err := s.client.Query(ctx, "6bgk-3dad", "issued_date", map[string]string{
		"bin": ids.BuildingID,
	})
	if err != nil {
		log.WithError(err).Errorf("DOB NOW fetch failed for building %s", ids.BuildingID)
		return nil
	}

	now := time.Now()
	var vs []models.Violation
	for _, r := range records {
		number := r.field("violation_number")
		if number == "" {
			continue
		}
		vs = append(vs, models.Violation{
			PropertyID:      ids.PropertyID,
			Authority:       models.AuthorityDOB,
			ViolationNumber: number,
			SourceDataset:   s.Dataset(),
			IssuedDate:      r.date("issued_date"),
			CureByDate:      r.dateOrNil("cure_by_date"),
			Description:     r.field("violation_details"),
			Severity:        r.field("violation_class"),
			CriticalOrder:   classifyCritical(r.field("order_type"), r.field("violation_details")),
			Penalty:         r.amount("penalty_amount"),
			Status:          canonicalStatus(r.field("violation_status")),
			Suppression:     models.Active(),
			LastSyncedAt:    now,
		})
	}
	return vs
}
