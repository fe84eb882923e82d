package adapters

import (
	"context"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// FDNYSource maps the fire department's active violation-order dataset,
// keyed by borough-block-lot.
type FDNYSource struct {
	client *Client
}

func NewFDNYSource(client *Client) *FDNYSource {
	return &FDNYSource{client: client}
}

func (s *FDNYSource) Authority() models.Authority { return models.AuthorityFDNY }
func (s *FDNYSource) Dataset() string             { return "fdny_violation_orders" }
func (s *FDNYSource) Quick() bool                 { return false }

func (s *FDNYSource) Fetch(ctx context.Context, ids Identifiers) []models.Violation {
	bbl, err := ParseBBL(ids.ParcelID)
	if err != nil {
		log.WithError(err).Infof("FDNY: property %d has no usable borough-block-lot, skipping fetch", ids.PropertyID)
		return nil
	}

	records, err := s.client.Query(ctx, "bi53-yph3", "vio_date", map[string]string{
		"borough": bbl.Borough,
		"block":   bbl.Block,
		"lot":     bbl.Lot,
	})
	if err != nil {
		log.WithError(err).Errorf("FDNY fetch failed for parcel %s", ids.ParcelID)
		return nil
	}

	now := time.Now()
	var vs []models.Violation
	for _, r := range records {
		number := r.field("vio_id")
		if number == "" {
			continue
		}
		vs = append(vs, models.Violation{
			PropertyID:      ids.PropertyID,
			Authority:       models.AuthorityFDNY,
			ViolationNumber: number,
			SourceDataset:   s.Dataset(),
			IssuedDate:      r.date("vio_date"),
			Description:     r.field("vio_law_desc"),
			Severity:        r.field("vio_law_num"),
			CriticalOrder:   classifyCritical("", r.field("vio_law_desc"), r.field("action")),
			Status:          canonicalStatus(r.field("status")),
			Suppression:     models.Active(),
			LastSyncedAt:    now,
		})
	}
	return vs
}
