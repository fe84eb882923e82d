// Package suppress ages out open violations that have likely been resolved
// administratively but never updated upstream. Suppression is a heuristic,
// kept distinct in the data model from an authority-confirmed closure, and
// one-directional: nothing here reverses it.
package suppress

import (
	"context"
	"fmt"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// Store is the slice of the record store the engine needs.
type Store interface {
	OpenUnsuppressedViolations(ctx context.Context, propertyID int64) ([]models.Violation, error)
	SuppressViolation(ctx context.Context, propertyID int64, authority models.Authority, number, reason string) error
}

// Engine applies per-authority age thresholds. Authorities without a
// configured threshold are left untouched.
type Engine struct {
	thresholds map[models.Authority]int // days; zero or absent disables
}

// NewEngine creates a suppression engine from per-authority day thresholds.
func NewEngine(thresholds map[models.Authority]int) *Engine {
	return &Engine{thresholds: thresholds}
}

// Evaluate classifies one violation against its authority's threshold.
func (e *Engine) Evaluate(v *models.Violation, now time.Time) models.SuppressionState {
	threshold, ok := e.thresholds[v.Authority]
	if !ok || threshold <= 0 {
		return models.Active()
	}
	if v.IssuedDate.IsZero() {
		return models.Active()
	}

	elapsed := int(now.Sub(v.IssuedDate).Hours() / 24)
	if elapsed <= threshold {
		return models.Active()
	}

	reason := fmt.Sprintf(
		"%s violation older than %.1f years (age %.1f years); likely resolved but not updated upstream",
		v.Authority, float64(threshold)/365.0, float64(elapsed)/365.0)
	return models.SuppressedStale(reason)
}

// Sweep evaluates the property's open, unsuppressed violations and marks the
// stale ones. Returns how many were suppressed.
func (e *Engine) Sweep(ctx context.Context, store Store, propertyID int64, now time.Time) (int, error) {
	open, err := store.OpenUnsuppressedViolations(ctx, propertyID)
	if err != nil {
		return 0, fmt.Errorf("failed to load open violations: %w", err)
	}

	suppressed := 0
	for i := range open {
		v := &open[i]
		state := e.Evaluate(v, now)
		if !state.Suppressed() {
			continue
		}
		if err := store.SuppressViolation(ctx, propertyID, v.Authority, v.ViolationNumber, state.Reason()); err != nil {
			log.WithError(err).Errorf("Failed to suppress violation %s", v.ViolationNumber)
			continue
		}
		suppressed++
	}
	return suppressed, nil
}
