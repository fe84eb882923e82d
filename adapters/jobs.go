package adapters

import (
	"context"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// DOBJobSource maps the buildings department's job-filing dataset into
// canonical permit applications.
type DOBJobSource struct {
	client *Client
}

func NewDOBJobSource(client *Client) *DOBJobSource {
	return &DOBJobSource{client: client}
}

func (s *DOBJobSource) Authority() models.Authority { return models.AuthorityDOB }
func (s *DOBJobSource) Dataset() string             { return "dob_job_filings" }

func (s *DOBJobSource) Fetch(ctx context.Context, ids Identifiers) []models.Application {
	if ids.BuildingID == "" {
		log.Infof("DOB jobs: property %d has no building id, skipping fetch", ids.PropertyID)
		return nil
	}

	records, err := s.client.Query(ctx, "ic3t-wcy2", "pre__filing_date", map[string]string{
		"bin__": ids.BuildingID,
	})
	if err != nil {
		log.WithError(err).Errorf("DOB jobs fetch failed for building %s", ids.BuildingID)
		return nil
	}

	now := time.Now()
	var apps []models.Application
	for _, r := range records {
		number := r.field("job__")
		if number == "" {
			continue
		}
		apps = append(apps, models.Application{
			PropertyID:        ids.PropertyID,
			Authority:         models.AuthorityDOB,
			ApplicationNumber: number,
			SourceDataset:     s.Dataset(),
			Type:              r.field("job_type"),
			Status:            r.field("job_status_descrp"),
			FiledDate:         r.date("pre__filing_date"),
			ApprovedDate:      r.dateOrNil("approved"),
			ExpirationDate:    r.dateOrNil("expiration_date"),
			EstimatedCost:     r.amount("initial_cost"),
			LastSyncedAt:      now,
		})
	}
	return apps
}
