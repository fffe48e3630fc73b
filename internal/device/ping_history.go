package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// PingEntry represents a single recorded telemetry submission.
//
// Each entry stores the fields the submission actually carried; a
// signal-only update leaves lat/lng NULL. The trail provides a local
// movement history even when the time-series database is unavailable.
type PingEntry struct {
	// ID is the auto-incremented primary key for the trail row.
	ID int64 `json:"id"`

	// DeviceToken is the unique token of the device that pinged.
	DeviceToken string `json:"device_token"`

	// Lat is the reported latitude, nil for signal-only submissions.
	Lat *float64 `json:"lat,omitempty"`

	// Lng is the reported longitude, nil for signal-only submissions.
	Lng *float64 `json:"lng,omitempty"`

	// Signal is the reported signal strength, nil when not supplied.
	Signal *int `json:"signal,omitempty"`

	// RecordedAt is the timestamp of the submission (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// PingHistoryRepository stores and retrieves the device telemetry trail.
//
// Implementations must be thread-safe and use UTC timestamps.
type PingHistoryRepository interface {
	// Record appends a telemetry submission to the trail.
	Record(ctx context.Context, deviceToken string, lat, lng *float64, signal *int, at time.Time) error

	// History returns recent submissions for the device, newest first.
	// Limit defaults to 50 and is clamped to 200.
	History(ctx context.Context, deviceToken string, limit int) ([]PingEntry, error)

	// Prune deletes trail entries older than the given duration and
	// returns the number of rows removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLitePingHistoryRepository implements PingHistoryRepository using SQLite.
type SQLitePingHistoryRepository struct {
	db *sql.DB
}

// NewSQLitePingHistoryRepository creates a new SQLite ping history repository.
func NewSQLitePingHistoryRepository(db *sql.DB) *SQLitePingHistoryRepository {
	return &SQLitePingHistoryRepository{db: db}
}

// Record inserts a new trail entry for a device.
func (r *SQLitePingHistoryRepository) Record(ctx context.Context, deviceToken string, lat, lng *float64, signal *int, at time.Time) error {
	if deviceToken == "" {
		return fmt.Errorf("device token is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO device_pings (device_token, lat, lng, signal, recorded_at) VALUES (?, ?, ?, ?, ?)",
		deviceToken,
		nullableFloat(lat),
		nullableFloat(lng),
		nullableInt(signal),
		at.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting ping history: %w", err)
	}

	return nil
}

// History returns recent trail entries for a device, ordered newest first.
// Limit defaults to 50 when non-positive and is clamped to 200.
func (r *SQLitePingHistoryRepository) History(ctx context.Context, deviceToken string, limit int) ([]PingEntry, error) {
	if deviceToken == "" {
		return nil, fmt.Errorf("device token is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_token, lat, lng, signal, recorded_at
		 FROM device_pings
		 WHERE device_token = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceToken,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ping history: %w", err)
	}
	defer rows.Close()

	entries := make([]PingEntry, 0, limit)
	for rows.Next() {
		var entry PingEntry
		var lat, lng sql.NullFloat64
		var signal sql.NullInt64
		var recordedAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceToken, &lat, &lng, &signal, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning ping history: %w", err)
		}

		if lat.Valid {
			entry.Lat = &lat.Float64
		}
		if lng.Valid {
			entry.Lng = &lng.Float64
		}
		if signal.Valid {
			value := int(signal.Int64)
			entry.Signal = &value
		}

		timestamp, err := parseDeviceTimestamp(recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing ping timestamp: %w", err)
		}
		entry.RecordedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ping history: %w", err)
	}

	return entries, nil
}

// Prune deletes trail entries older than the given duration.
func (r *SQLitePingHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeFormat)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM device_pings WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting ping history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}
