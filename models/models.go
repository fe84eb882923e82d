package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Authority identifies the issuing body of a regulatory record.
type Authority string

const (
	AuthorityDOB  Authority = "DOB"
	AuthorityOATH Authority = "OATH_ECB"
	AuthorityHPD  Authority = "HPD"
	AuthorityFDNY Authority = "FDNY"
)

// Status is the lifecycle status of a violation as reported upstream.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// CriticalOrder classifies the two critical violation subtypes. Adapters set
// it from a structured dataset field when one exists and fall back to text
// heuristics when it does not.
type CriticalOrder string

const (
	CriticalNone     CriticalOrder = "none"
	CriticalStopWork CriticalOrder = "stop_work"
	CriticalVacate   CriticalOrder = "vacate"
)

// EntityType distinguishes the two record kinds carried in the change log.
type EntityType string

const (
	EntityViolation   EntityType = "violation"
	EntityApplication EntityType = "application"
)

// ChangeType classifies a change event between two sync snapshots.
type ChangeType string

const (
	ChangeNew          ChangeType = "new"
	ChangeStatusChange ChangeType = "status_change"
)

// Property is a registry entry. The surrounding application owns it; the sync
// engine only reads it and bumps LastSyncedAt.
type Property struct {
	ID            int64       `json:"id"`
	BuildingID    string      `json:"building_id"`
	ParcelID      string      `json:"parcel_id"` // composite borough+block+lot, e.g. "1008760041"
	Borough       string      `json:"borough"`
	Address       string      `json:"address"`
	AlertsEnabled bool        `json:"alerts_enabled"`
	ContactEmail  string      `json:"contact_email"`
	ContactPhone  string      `json:"contact_phone"`
	Authorities   []Authority `json:"authorities"`
	LastSyncedAt  *time.Time  `json:"last_synced_at"`
}

// HasContact reports whether any notification channel is on file.
func (p *Property) HasContact() bool {
	return p.ContactEmail != "" || p.ContactPhone != ""
}

// Violation is the canonical per-property regulatory record. At most one row
// exists per (property, authority, violation number).
type Violation struct {
	PropertyID      int64            `json:"property_id"`
	Authority       Authority        `json:"authority"`
	ViolationNumber string           `json:"violation_number"`
	SourceDataset   string           `json:"source_dataset"`
	IssuedDate      time.Time        `json:"issued_date"`
	HearingDate     *time.Time       `json:"hearing_date"`
	CureByDate      *time.Time       `json:"cure_by_date"`
	Description     string           `json:"description"`
	Severity        string           `json:"severity"`
	CriticalOrder   CriticalOrder    `json:"critical_order"`
	Penalty         decimal.Decimal  `json:"penalty"`
	Status          Status           `json:"status"`
	Suppression     SuppressionState `json:"suppression"`
	LastSyncedAt    time.Time        `json:"last_synced_at"`
}

// IsCritical reports whether the violation carries a work-stoppage or
// occupancy-vacate order.
func (v *Violation) IsCritical() bool {
	return v.CriticalOrder == CriticalStopWork || v.CriticalOrder == CriticalVacate
}

// Application is a canonical permit/job filing. At most one row exists per
// (property, application number).
type Application struct {
	PropertyID        int64           `json:"property_id"`
	Authority         Authority       `json:"authority"`
	ApplicationNumber string          `json:"application_number"`
	SourceDataset     string          `json:"source_dataset"`
	Type              string          `json:"type"`
	Status            string          `json:"status"`
	FiledDate         time.Time       `json:"filed_date"`
	ApprovedDate      *time.Time      `json:"approved_date"`
	ExpirationDate    *time.Time      `json:"expiration_date"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	LastSyncedAt      time.Time       `json:"last_synced_at"`
}

// ChangeLogEntry is an append-only fact describing one classified difference
// between two sync snapshots. The engine never mutates or deletes entries.
type ChangeLogEntry struct {
	ID            int64      `json:"id"`
	PropertyID    int64      `json:"property_id"`
	EntityType    EntityType `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	ChangeType    ChangeType `json:"change_type"`
	PreviousValue string     `json:"previous_value"`
	NewValue      string     `json:"new_value"`
	Label         string     `json:"label"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActivityEntry records one sync outcome or notification attempt.
type ActivityEntry struct {
	PropertyID int64     `json:"property_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationRequest is handed to the external delivery gateway. Delivery is
// fire-and-forget from the engine's perspective; only the reported outcome is
// logged back.
type NotificationRequest struct {
	PropertyID int64  `json:"property_id"`
	Contact    string `json:"contact"`
	Channel    string `json:"channel"` // "email" or "sms"
	Message    string `json:"message"`
}

// SyncRequest triggers a sync for a single property.
type SyncRequest struct {
	BuildingID          string      `json:"building_id"`
	ParcelID            string      `json:"parcel_id"`
	Authorities         []Authority `json:"authorities" binding:"required"`
	NotifyOnNewCritical bool        `json:"notify_on_new_critical"`
}

// SyncSummary is the per-property sync outcome returned by the trigger API.
type SyncSummary struct {
	Success           bool        `json:"success"`
	TotalFound        int         `json:"total_found"`
	NewViolations     int         `json:"new_violations"`
	CriticalCount     int         `json:"critical_count"`
	AuthoritiesSynced []Authority `json:"authorities_synced"`
	NotificationSent  bool        `json:"notification_sent"`
	Error             string      `json:"error,omitempty"`
}

// RunTotals aggregates counters across one orchestrator run.
type RunTotals struct {
	PropertiesConsidered int `json:"properties_considered"`
	Synced               int `json:"synced"`
	Errors               int `json:"errors"`
	NewViolations        int `json:"new_violations"`
	ChangeEvents         int `json:"change_events"`
}
