package reconcile

import (
	"testing"

	"regsync/models"
)

func TestDiff_Classification(t *testing.T) {
	testCases := []struct {
		name string
		pre  Snapshot
		post Snapshot

		expectedEvents []models.ChangeLogEntry
	}{
		{
			name: "new violation",
			pre:  Snapshot{},
			post: Snapshot{"111": "open"},
			expectedEvents: []models.ChangeLogEntry{
				{EntityID: "111", ChangeType: models.ChangeNew, NewValue: "open"},
			},
		},
		{
			name: "status change",
			pre:  Snapshot{"111": "open"},
			post: Snapshot{"111": "closed"},
			expectedEvents: []models.ChangeLogEntry{
				{EntityID: "111", ChangeType: models.ChangeStatusChange, PreviousValue: "open", NewValue: "closed"},
			},
		},
		{
			name:           "unchanged yields nothing",
			pre:            Snapshot{"111": "open", "222": "closed"},
			post:           Snapshot{"111": "open", "222": "closed"},
			expectedEvents: nil,
		},
		{
			name: "status regression is a plain status change",
			pre:  Snapshot{"111": "closed"},
			post: Snapshot{"111": "open"},
			expectedEvents: []models.ChangeLogEntry{
				{EntityID: "111", ChangeType: models.ChangeStatusChange, PreviousValue: "closed", NewValue: "open"},
			},
		},
		{
			name: "mixed, ordered by number",
			pre:  Snapshot{"222": "open"},
			post: Snapshot{"111": "open", "222": "in_progress", "333": "open"},
			expectedEvents: []models.ChangeLogEntry{
				{EntityID: "111", ChangeType: models.ChangeNew, NewValue: "open"},
				{EntityID: "222", ChangeType: models.ChangeStatusChange, PreviousValue: "open", NewValue: "in_progress"},
				{EntityID: "333", ChangeType: models.ChangeNew, NewValue: "open"},
			},
		},
	}

	for _, testCase := range testCases {
		events := Diff(42, models.EntityViolation, testCase.pre, testCase.post)

		if len(events) != len(testCase.expectedEvents) {
			t.Errorf("%s: expected %d events, got %d", testCase.name, len(testCase.expectedEvents), len(events))
			continue
		}
		for i, want := range testCase.expectedEvents {
			got := events[i]
			if got.PropertyID != 42 {
				t.Errorf("%s: event %d has property %d, want 42", testCase.name, i, got.PropertyID)
			}
			if got.EntityID != want.EntityID || got.ChangeType != want.ChangeType ||
				got.PreviousValue != want.PreviousValue || got.NewValue != want.NewValue {
				t.Errorf("%s: event %d = %+v, want %+v", testCase.name, i, got, want)
			}
		}
	}
}

func TestDiff_NewNeverEmitsStatusChange(t *testing.T) {
	events := Diff(1, models.EntityViolation, Snapshot{}, Snapshot{"111": "open"})

	if len(events) != 1 {
		t.Fatalf("Expected exactly 1 event, got %d", len(events))
	}
	if events[0].ChangeType != models.ChangeNew {
		t.Errorf("Expected a new event, got %s", events[0].ChangeType)
	}
}

func TestDiff_IdempotentSecondRun(t *testing.T) {
	// Running the diff again with the post snapshot on both sides models a
	// second sync with no upstream change.
	post := Snapshot{"111": "open", "222": "closed"}

	if events := Diff(1, models.EntityViolation, post, post); len(events) != 0 {
		t.Errorf("Expected no events for an unchanged snapshot, got %d", len(events))
	}
}
