// Package reconcile classifies the differences between two sync snapshots of
// a property's stored records. Diffing snapshots rather than adapter output
// captures status changes made by any writer since the last sync, at the
// cost of one extra read.
package reconcile

import (
	"fmt"
	"sort"

	"regsync/models"
)

// Snapshot maps a record's natural number to its stored status.
type Snapshot map[string]string

// Diff compares the pre-insert and post-insert snapshots and emits one event
// per new number and one per status transition, ordered by number. A status
// regression (e.g. closed back to open) is recorded as a plain status change;
// the previous/new values keep it reconstructable.
func Diff(propertyID int64, entity models.EntityType, pre, post Snapshot) []models.ChangeLogEntry {
	numbers := make([]string, 0, len(post))
	for number := range post {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	var events []models.ChangeLogEntry
	for _, number := range numbers {
		newStatus := post[number]
		prevStatus, existed := pre[number]

		switch {
		case !existed:
			events = append(events, models.ChangeLogEntry{
				PropertyID: propertyID,
				EntityType: entity,
				EntityID:   number,
				ChangeType: models.ChangeNew,
				NewValue:   newStatus,
				Label:      fmt.Sprintf("New %s %s (%s)", entity, number, newStatus),
			})
		case prevStatus != newStatus:
			events = append(events, models.ChangeLogEntry{
				PropertyID:    propertyID,
				EntityType:    entity,
				EntityID:      number,
				ChangeType:    models.ChangeStatusChange,
				PreviousValue: prevStatus,
				NewValue:      newStatus,
				Label:         fmt.Sprintf("%s %s: %s -> %s", entity, number, prevStatus, newStatus),
			})
		}
	}
	return events
}
