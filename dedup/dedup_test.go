package dedup

import (
	"testing"

	"regsync/models"
)

func TestMergeViolations_LastSourceWins(t *testing.T) {
	legacy := Batch{
		Dataset: "dob_violations_legacy",
		Violations: []models.Violation{
			{ViolationNumber: "34883000N", Description: "legacy description", Status: models.StatusOpen},
			{ViolationNumber: "100", Description: "only in legacy", Status: models.StatusOpen},
		},
	}
	current := Batch{
		Dataset: "dob_violations_now",
		Violations: []models.Violation{
			{ViolationNumber: "34883000N", Description: "current description", Status: models.StatusClosed},
		},
	}

	merged := MergeViolations([]Batch{legacy, current})

	if len(merged) != 2 {
		t.Fatalf("Expected 2 unique violations, got %d", len(merged))
	}

	count := 0
	for _, v := range merged {
		if v.ViolationNumber != "34883000N" {
			continue
		}
		count++
		if v.Description != "current description" {
			t.Errorf("Expected the later batch to win, got description %q", v.Description)
		}
		if v.Status != models.StatusClosed {
			t.Errorf("Expected full-record replacement, got status %q", v.Status)
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly one entry for 34883000N, got %d", count)
	}
}

func TestMergeViolations_DeterministicOrder(t *testing.T) {
	batch := Batch{
		Dataset: "dob_violations_now",
		Violations: []models.Violation{
			{ViolationNumber: "300"},
			{ViolationNumber: "100"},
			{ViolationNumber: "200"},
		},
	}

	merged := MergeViolations([]Batch{batch})

	want := []string{"100", "200", "300"}
	for i, number := range want {
		if merged[i].ViolationNumber != number {
			t.Errorf("Position %d: expected %s, got %s", i, number, merged[i].ViolationNumber)
		}
	}
}

func TestMergeViolations_Empty(t *testing.T) {
	if merged := MergeViolations(nil); len(merged) != 0 {
		t.Errorf("Expected empty merge result, got %d entries", len(merged))
	}
}

func TestMergeApplications_LastSourceWins(t *testing.T) {
	first := []models.Application{
		{ApplicationNumber: "J-1", Status: "FILED"},
	}
	second := []models.Application{
		{ApplicationNumber: "J-1", Status: "APPROVED"},
		{ApplicationNumber: "J-2", Status: "FILED"},
	}

	merged := MergeApplications([][]models.Application{first, second})

	if len(merged) != 2 {
		t.Fatalf("Expected 2 unique applications, got %d", len(merged))
	}
	if merged[0].ApplicationNumber != "J-1" || merged[0].Status != "APPROVED" {
		t.Errorf("Expected J-1 with status APPROVED, got %s/%s", merged[0].ApplicationNumber, merged[0].Status)
	}
}
