package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByToken retrieves a device by its unique token.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByToken(ctx context.Context, token string) (*Device, error)

	// GetByPair retrieves the device with the given (owner identity,
	// sub-identity) pair. Returns ErrDeviceNotFound if absent.
	GetByPair(ctx context.Context, ownerIdentity, subIdentity int64) (*Device, error)

	// List retrieves all devices ordered by paired_at descending
	// (most recently paired first).
	List(ctx context.Context) ([]Device, error)

	// ListByOwner retrieves all devices belonging to an owner identity,
	// most recently paired first.
	ListByOwner(ctx context.Context, ownerIdentity int64) ([]Device, error)

	// MaxSubIdentity returns the highest sub-identity currently in use for
	// the owner, and false when the owner has no devices.
	MaxSubIdentity(ctx context.Context, ownerIdentity int64) (int64, bool, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the token is already in use, or ErrPairExists
	// when the (owner_identity, sub_identity) pair is already taken.
	Create(ctx context.Context, device *Device) error

	// DeleteByPair removes the device with the given pair permanently.
	// Returns ErrDeviceNotFound if no device matches.
	DeleteByPair(ctx context.Context, ownerIdentity, subIdentity int64) error

	// UpdatePing sets last_seen_at, lat, lng and last_signal on the device
	// with the given pair. All other fields are left untouched.
	UpdatePing(ctx context.Context, ownerIdentity, subIdentity int64, lat, lng float64, signal *int, seenAt time.Time) error

	// UpdateSignal sets last_signal and refreshes last_seen_at only.
	UpdateSignal(ctx context.Context, ownerIdentity, subIdentity int64, signal int, seenAt time.Time) error

	// SetActive updates the mutable lifecycle flag of the device with the
	// given token. Returns ErrDeviceNotFound if the token is unknown.
	SetActive(ctx context.Context, token string, active bool) error
}

// timeFormat is a fixed-width RFC3339 layout with nanoseconds. Fixed width
// keeps lexicographic TEXT comparison consistent with chronological order,
// which ORDER BY paired_at DESC relies on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// deviceColumns is the canonical column list shared by all SELECTs.
const deviceColumns = `token, name, owner_token, owner_identity, sub_identity,
	active, paired_at, last_seen_at, last_signal, battery_percent, lat, lng`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByToken retrieves a device by its unique token.
func (r *SQLiteRepository) GetByToken(ctx context.Context, token string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE token = ?",
		token,
	)
	return scanDevice(row)
}

// GetByPair retrieves the device with the given (owner identity, sub-identity) pair.
func (r *SQLiteRepository) GetByPair(ctx context.Context, ownerIdentity, subIdentity int64) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE owner_identity = ? AND sub_identity = ?",
		ownerIdentity,
		subIdentity,
	)
	return scanDevice(row)
}

// List retrieves all devices, most recently paired first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY paired_at DESC",
	)
}

// ListByOwner retrieves all devices belonging to an owner identity.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerIdentity int64) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE owner_identity = ? ORDER BY paired_at DESC",
		ownerIdentity,
	)
}

// MaxSubIdentity returns the high-water mark of sub-identities for an owner.
func (r *SQLiteRepository) MaxSubIdentity(ctx context.Context, ownerIdentity int64) (int64, bool, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT MAX(sub_identity) FROM devices WHERE owner_identity = ?",
		ownerIdentity,
	).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("querying max sub-identity: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return max.Int64, true, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if device.PairedAt.IsZero() {
		device.PairedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO devices (
			token, name, owner_token, owner_identity, sub_identity,
			active, paired_at, last_seen_at, last_signal, battery_percent, lat, lng
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		device.Token,
		device.Name,
		device.OwnerToken,
		device.OwnerIdentity,
		device.SubIdentity,
		boolToInt(device.Active),
		device.PairedAt.UTC().Format(timeFormat),
		nullableTime(device.LastSeenAt),
		nullableInt(device.LastSignal),
		nullableInt(device.BatteryPercent),
		nullableFloat(device.Lat),
		nullableFloat(device.Lng),
	)
	if err != nil {
		// The offending column set distinguishes a duplicate token from a
		// lost allocation race on the pair index.
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "devices.token") {
				return ErrDeviceExists
			}
			return ErrPairExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// DeleteByPair removes the device with the given pair permanently.
func (r *SQLiteRepository) DeleteByPair(ctx context.Context, ownerIdentity, subIdentity int64) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM devices WHERE owner_identity = ? AND sub_identity = ?",
		ownerIdentity,
		subIdentity,
	)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// UpdatePing sets last_seen_at, lat, lng and last_signal.
func (r *SQLiteRepository) UpdatePing(ctx context.Context, ownerIdentity, subIdentity int64, lat, lng float64, signal *int, seenAt time.Time) error {
	query := `
		UPDATE devices
		SET last_seen_at = ?, lat = ?, lng = ?, last_signal = ?
		WHERE owner_identity = ? AND sub_identity = ?`

	result, err := r.db.ExecContext(ctx, query,
		seenAt.UTC().Format(timeFormat),
		lat,
		lng,
		nullableInt(signal),
		ownerIdentity,
		subIdentity,
	)
	if err != nil {
		return fmt.Errorf("updating device ping: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// UpdateSignal sets last_signal and refreshes last_seen_at only.
func (r *SQLiteRepository) UpdateSignal(ctx context.Context, ownerIdentity, subIdentity int64, signal int, seenAt time.Time) error {
	query := `
		UPDATE devices
		SET last_signal = ?, last_seen_at = ?
		WHERE owner_identity = ? AND sub_identity = ?`

	result, err := r.db.ExecContext(ctx, query,
		signal,
		seenAt.UTC().Format(timeFormat),
		ownerIdentity,
		subIdentity,
	)
	if err != nil {
		return fmt.Errorf("updating device signal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// SetActive updates the mutable lifecycle flag.
func (r *SQLiteRepository) SetActive(ctx context.Context, token string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET active = ? WHERE token = ?",
		boolToInt(active),
		token,
	)
	if err != nil {
		return fmt.Errorf("updating device active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a single row into a Device.
func scanDevice(row *sql.Row) (*Device, error) {
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return device, nil
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var active int
	var pairedAt string
	var lastSeenAt sql.NullString
	var lastSignal, batteryPercent sql.NullInt64
	var lat, lng sql.NullFloat64

	err := scanner.Scan(
		&d.Token,
		&d.Name,
		&d.OwnerToken,
		&d.OwnerIdentity,
		&d.SubIdentity,
		&active,
		&pairedAt,
		&lastSeenAt,
		&lastSignal,
		&batteryPercent,
		&lat,
		&lng,
	)
	if err != nil {
		return nil, err
	}

	d.Active = active != 0

	d.PairedAt, err = parseDeviceTimestamp(pairedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing paired_at: %w", err)
	}

	if lastSeenAt.Valid {
		t, err := parseDeviceTimestamp(lastSeenAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen_at: %w", err)
		}
		d.LastSeenAt = &t
	}

	if lastSignal.Valid {
		v := int(lastSignal.Int64)
		d.LastSignal = &v
	}
	if batteryPercent.Valid {
		v := int(batteryPercent.Int64)
		d.BatteryPercent = &v
	}
	if lat.Valid {
		d.Lat = &lat.Float64
	}
	if lng.Valid {
		d.Lng = &lng.Float64
	}

	return &d, nil
}

// parseDeviceTimestamp parses a timestamp stored in SQLite.
// Timestamps are written fixed-width with nanoseconds; plain RFC3339 is
// accepted for rows written by older builds.
func parseDeviceTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// nullableTime returns a sql.NullString for optional time pointers.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeFormat), Valid: true}
}

// nullableInt returns a sql.NullInt64 for optional int pointers.
func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
