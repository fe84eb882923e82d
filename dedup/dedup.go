// Package dedup collapses records that describe the same violation across
// datasets. Precedence is explicit: batches are folded in the order the
// source registry declares them, and the last batch to mention a violation
// number wins in full — no field-level merge. Legacy dataset generations are
// registered before the current system of record, so the current system
// overrides the legacy one.
package dedup

import (
	"sort"

	"regsync/models"
)

// Batch is one source's output, tagged with its dataset for traceability.
type Batch struct {
	Dataset    string
	Violations []models.Violation
}

// MergeViolations folds the batches in precedence order into a list with
// unique violation numbers, sorted by number for deterministic downstream
// processing.
func MergeViolations(batches []Batch) []models.Violation {
	merged := make(map[string]models.Violation)
	for _, batch := range batches {
		for _, v := range batch.Violations {
			merged[v.ViolationNumber] = v
		}
	}

	numbers := make([]string, 0, len(merged))
	for number := range merged {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	out := make([]models.Violation, 0, len(merged))
	for _, number := range numbers {
		out = append(out, merged[number])
	}
	return out
}

// MergeApplications is the same fold keyed by application number.
func MergeApplications(batches [][]models.Application) []models.Application {
	merged := make(map[string]models.Application)
	for _, batch := range batches {
		for _, a := range batch {
			merged[a.ApplicationNumber] = a
		}
	}

	numbers := make([]string, 0, len(merged))
	for number := range merged {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	out := make([]models.Application, 0, len(merged))
	for _, number := range numbers {
		out = append(out, merged[number])
	}
	return out
}
