package adapters

import (
	"context"
	"strings"

	"regsync/models"
)

// Identifiers carries the property identifiers a source may key its dataset
// query by.
type Identifiers struct {
	PropertyID int64
	BuildingID string
	ParcelID   string
	Borough    string
}

// Source fetches raw records for one dataset and maps them into canonical
// violations. Fetch never returns an error: transport, non-2xx and decode
// failures are logged at the source boundary and yield an empty list, so one
// failing dataset cannot abort the others.
type Source interface {
	Authority() models.Authority
	Dataset() string
	// Quick marks the fast-moving dataset included in quick-mode runs.
	Quick() bool
	Fetch(ctx context.Context, ids Identifiers) []models.Violation
}

// ApplicationSource is the analogous contract for permit/job filings.
type ApplicationSource interface {
	Authority() models.Authority
	Dataset() string
	Fetch(ctx context.Context, ids Identifiers) []models.Application
}

// Registry holds the configured sources in explicit precedence order: when
// two datasets report the same violation number, the later source in this
// list wins the deduplication fold. Legacy generations are therefore listed
// before the current system of record.
type Registry struct {
	Violations   []Source
	Applications []ApplicationSource
}

// NewRegistry wires the standard source set against one catalog client.
func NewRegistry(client *Client) *Registry {
	return &Registry{
		Violations: []Source{
			NewDOBLegacySource(client),
			NewDOBNowSource(client),
			NewOATHSource(client),
			NewHPDSource(client),
			NewFDNYSource(client),
		},
		Applications: []ApplicationSource{
			NewDOBJobSource(client),
		},
	}
}

// ForAuthorities filters the violation sources to the property's applicable
// authorities, preserving precedence order. Quick mode restricts the set
// further to the fast-moving datasets.
func (r *Registry) ForAuthorities(authorities []models.Authority, quick bool) []Source {
	applicable := make(map[models.Authority]bool, len(authorities))
	for _, a := range authorities {
		applicable[a] = true
	}

	var out []Source
	for _, src := range r.Violations {
		if !applicable[src.Authority()] {
			continue
		}
		if quick && !src.Quick() {
			continue
		}
		out = append(out, src)
	}
	return out
}

// classifyCritical derives the critical-order flag. Sources with a structured
// category field pass it in; the free-text scan is the fallback for datasets
// that only carry a description.
func classifyCritical(structured string, freeText ...string) models.CriticalOrder {
	switch strings.ToUpper(strings.TrimSpace(structured)) {
	case "SWO", "STOP WORK ORDER":
		return models.CriticalStopWork
	case "VACATE", "VACATE ORDER":
		return models.CriticalVacate
	}

	for _, text := range freeText {
		lower := strings.ToLower(text)
		if strings.Contains(lower, "stop work") {
			return models.CriticalStopWork
		}
		if strings.Contains(lower, "vacate") {
			return models.CriticalVacate
		}
	}
	return models.CriticalNone
}

// canonicalStatus maps a dataset's status vocabulary onto the engine's
// lifecycle states. Unknown values map to open so a new upstream vocabulary
// cannot silently close records.
func canonicalStatus(raw string) models.Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "RESOLVED", "RESOLVE", "CLOSED", "DISMISSED", "COMPLIED", "CERTIFICATE ISSUED", "VIOLATION CLOSED":
		return models.StatusClosed
	case "IN VIOLATION", "PENDING", "CERTIFICATE PENDING", "HEARING SCHEDULED", "DEFAULTED":
		return models.StatusInProgress
	default:
		return models.StatusOpen
	}
}
