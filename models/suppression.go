package models

import "encoding/json"

type suppressionKind int

const (
	suppressionActive suppressionKind = iota
	suppressionStale
)

// SuppressionState is a tagged classification of a violation's suppression
// status: either Active, or SuppressedStale with a generated reason. A
// suppressed record is a heuristic call, distinct from an authority-confirmed
// closure, and nothing in the engine reverses it.
type SuppressionState struct {
	kind   suppressionKind
	reason string
}

// Active returns the unsuppressed state.
func Active() SuppressionState {
	return SuppressionState{kind: suppressionActive}
}

// SuppressedStale returns a suppressed state carrying the generated reason.
func SuppressedStale(reason string) SuppressionState {
	return SuppressionState{kind: suppressionStale, reason: reason}
}

// SuppressionFromRow rebuilds the state from the persisted flag+reason pair.
func SuppressionFromRow(suppressed bool, reason string) SuppressionState {
	if suppressed {
		return SuppressedStale(reason)
	}
	return Active()
}

// Suppressed reports whether the record has been marked stale.
func (s SuppressionState) Suppressed() bool {
	return s.kind == suppressionStale
}

// Reason returns the generated reason, empty for active records.
func (s SuppressionState) Reason() string {
	if s.kind != suppressionStale {
		return ""
	}
	return s.reason
}

// MarshalJSON renders the state as the flag+reason pair the API exposes.
func (s SuppressionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Suppressed bool   `json:"suppressed"`
		Reason     string `json:"reason,omitempty"`
	}{s.Suppressed(), s.Reason()})
}

// UnmarshalJSON rebuilds the state from the flag+reason pair.
func (s *SuppressionState) UnmarshalJSON(data []byte) error {
	var row struct {
		Suppressed bool   `json:"suppressed"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	*s = SuppressionFromRow(row.Suppressed, row.Reason)
	return nil
}
