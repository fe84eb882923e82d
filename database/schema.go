package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// Schema contains the tables the sync engine owns. Properties are created by
// the surrounding application; the table is declared here so a fresh
// deployment can run standalone.
const Schema = `
CREATE TABLE IF NOT EXISTS properties (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    building_id VARCHAR(32) NOT NULL DEFAULT '',
    parcel_id VARCHAR(32) NOT NULL DEFAULT '',
    borough VARCHAR(32) NOT NULL DEFAULT '',
    address VARCHAR(512) NOT NULL DEFAULT '',
    alerts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    contact_email VARCHAR(256) NOT NULL DEFAULT '',
    contact_phone VARCHAR(32) NOT NULL DEFAULT '',
    authorities VARCHAR(256) NOT NULL DEFAULT '',
    last_synced_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_building_id (building_id),
    INDEX idx_parcel_id (parcel_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS violations (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    property_id BIGINT NOT NULL,
    authority VARCHAR(16) NOT NULL,
    violation_number VARCHAR(64) NOT NULL,
    source_dataset VARCHAR(64) NOT NULL DEFAULT '',
    issued_date DATE NULL,
    hearing_date DATE NULL,
    cure_by_date DATE NULL,
    description TEXT,
    severity VARCHAR(32) NOT NULL DEFAULT '',
    critical_order ENUM('none', 'stop_work', 'vacate') NOT NULL DEFAULT 'none',
    penalty DECIMAL(12,2) NOT NULL DEFAULT 0,
    status ENUM('open', 'in_progress', 'closed') NOT NULL DEFAULT 'open',
    suppressed BOOLEAN NOT NULL DEFAULT FALSE,
    suppression_reason VARCHAR(512) NOT NULL DEFAULT '',
    notes TEXT,
    last_synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY unique_property_violation (property_id, authority, violation_number),
    INDEX idx_property_status (property_id, status),
    INDEX idx_issued_date (issued_date)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS applications (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    property_id BIGINT NOT NULL,
    authority VARCHAR(16) NOT NULL,
    application_number VARCHAR(64) NOT NULL,
    source_dataset VARCHAR(64) NOT NULL DEFAULT '',
    type VARCHAR(64) NOT NULL DEFAULT '',
    status VARCHAR(64) NOT NULL DEFAULT '',
    filed_date DATE NULL,
    approved_date DATE NULL,
    expiration_date DATE NULL,
    estimated_cost DECIMAL(14,2) NOT NULL DEFAULT 0,
    last_synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY unique_property_application (property_id, application_number),
    INDEX idx_property_status_app (property_id, status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS change_log (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    property_id BIGINT NOT NULL,
    entity_type ENUM('violation', 'application') NOT NULL,
    entity_id VARCHAR(64) NOT NULL,
    change_type ENUM('new', 'status_change') NOT NULL,
    previous_value VARCHAR(64) NOT NULL DEFAULT '',
    new_value VARCHAR(64) NOT NULL DEFAULT '',
    label VARCHAR(512) NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_property_created (property_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS activity_log (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    property_id BIGINT NOT NULL,
    kind VARCHAR(32) NOT NULL,
    message VARCHAR(1024) NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_property_created_activity (property_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

CREATE TABLE IF NOT EXISTS notification_log (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    property_id BIGINT NOT NULL,
    channel VARCHAR(16) NOT NULL,
    contact VARCHAR(256) NOT NULL,
    status ENUM('sent', 'failed') NOT NULL,
    detail VARCHAR(512) NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_property_created_notification (property_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

// InitializeSchema creates the engine's tables if they do not exist and
// verifies the uniqueness backstops the sync pipeline relies on.
func InitializeSchema(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// The (property, authority, violation number) uniqueness invariant is the
	// backstop against concurrent runs racing between snapshot and insert.
	for table, index := range map[string]string{
		"violations":   "unique_property_violation",
		"applications": "unique_property_application",
	} {
		var count int
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM information_schema.statistics
			WHERE table_schema = DATABASE()
			AND table_name = ?
			AND index_name = ?
		`, table, index).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check %s index on %s: %w", index, table, err)
		}
		if count == 0 {
			return fmt.Errorf("required unique index %s missing on %s", index, table)
		}
	}

	log.Info("Database schema initialized and unique indexes verified")
	return nil
}
