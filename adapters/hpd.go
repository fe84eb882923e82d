package adapters

import (
	"context"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// HPDSource maps the housing department's violation dataset, which is keyed
// by borough-block-lot rather than building id.
type HPDSource struct {
	client *Client
}

func NewHPDSource(client *Client) *HPDSource {
	return &HPDSource{client: client}
}

func (s *HPDSource) Authority() models.Authority { return models.AuthorityHPD }
func (s *HPDSource) Dataset() string             { return "hpd_violations" }
func (s *HPDSource) Quick() bool                 { return false }

func (s *HPDSource) Fetch(ctx context.Context, ids Identifiers) []models.Violation {
	bbl, err := ParseBBL(ids.ParcelID)
	if err != nil {
		log.WithError(err).Infof("HPD: property %d has no usable borough-block-lot, skipping fetch", ids.PropertyID)
		return nil
	}

	records, err := s.client.Query(ctx, "wvxf-dwi5", "inspectiondate", map[string]string{
		"boro":  bbl.Borough,
		"block": bbl.Block,
		"lot":   bbl.Lot,
	})
	if err != nil {
		log.WithError(err).Errorf("HPD fetch failed for parcel %s", ids.ParcelID)
		return nil
	}

	now := time.Now()
	var vs []models.Violation
	for _, r := range records {
		number := r.field("violationid")
		if number == "" {
			continue
		}
		vs = append(vs, models.Violation{
			PropertyID:      ids.PropertyID,
			Authority:       models.AuthorityHPD,
			ViolationNumber: number,
			SourceDataset:   s.Dataset(),
			IssuedDate:      r.date("inspectiondate"),
			CureByDate:      r.dateOrNil("originalcorrectbydate"),
			Description:     r.field("novdescription"),
			Severity:        r.field("class"),
			CriticalOrder:   classifyCritical("", r.field("novdescription")),
			Status:          canonicalStatus(r.field("violationstatus")),
			Suppression:     models.Active(),
			LastSyncedAt:    now,
		})
	}
	return vs
}
