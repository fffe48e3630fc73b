package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/osier-labs/beacontrack-core/internal/owner"
)

// maxAllocationRetries bounds the recompute-and-retry loop when concurrent
// registrations for the same owner collide on the pair index. Each retry
// recomputes the high-water mark, so a handful of attempts is enough even
// under heavy contention; the bound only guards against pathological loops.
const maxAllocationRetries = 10

// Event describes a registry mutation for subscribers (WebSocket feed,
// time-series export).
type Event struct {
	// Type is one of "device.registered", "device.deleted", "device.ping",
	// "device.signal".
	Type string `json:"type"`

	// Device is the record after the mutation. For deletions it is the
	// record as it was before removal.
	Device *Device `json:"device"`
}

// Event type values.
const (
	EventRegistered = "device.registered"
	EventDeleted    = "device.deleted"
	EventPing       = "device.ping"
	EventSignal     = "device.signal"
)

// Logger is the minimal logging interface the registry needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Registry implements the device operations: registration with sub-identity
// allocation, enumeration, deletion, and telemetry application.
//
// Every operation is a direct read-modify-write against durable storage.
// There is no cache, so every read reflects the latest committed write.
type Registry struct {
	repo    Repository
	owners  owner.Repository
	history PingHistoryRepository

	logger Logger
	sink   func(Event)
	nowFn  func() time.Time
}

// NewRegistry creates a Registry backed by the given repositories.
// The history repository is optional; pass nil to disable the telemetry trail.
func NewRegistry(repo Repository, owners owner.Repository, history PingHistoryRepository) *Registry {
	return &Registry{
		repo:    repo,
		owners:  owners,
		history: history,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets an optional logger for allocation retries and history failures.
func (g *Registry) SetLogger(logger Logger) {
	g.logger = logger
}

// SetEventSink sets an optional callback invoked after every successful
// mutation. The callback runs synchronously on the calling goroutine and
// must not block.
func (g *Registry) SetEventSink(sink func(Event)) {
	g.sink = sink
}

// NextSubIdentity returns the next available sub-identity for the owner:
// max(sub_identity)+1 over the owner's devices, or 1 when it has none.
//
// This is a pure read. It does not reserve the value; registration arbitrates
// concurrent consumers via the unique pair index. Values freed by deletion are
// not reused while other devices remain.
//
// Returns owner.ErrOwnerNotFound if the identity has never been allocated.
func (g *Registry) NextSubIdentity(ctx context.Context, ownerIdentity int64) (int64, error) {
	if _, err := g.owners.GetByIdentity(ctx, ownerIdentity); err != nil {
		return 0, err
	}

	max, ok, err := g.repo.MaxSubIdentity(ctx, ownerIdentity)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	return max + 1, nil
}

// Register creates a new device record.
//
// The owner token is resolved to an identity (owner.ErrOwnerNotFound if it
// was never linked). A device token is generated when the input omits one;
// a supplied token that is already in use fails with ErrDeviceExists.
//
// When the input carries no sub-identity the registry allocates one. The
// allocate-then-insert sequence races under concurrent registrations for the
// same owner: the unique (owner_identity, sub_identity) index arbitrates, and
// a losing insert recomputes the high-water mark and retries. Callers that
// supply an explicit sub-identity get a single attempt, since silently moving
// their device to a different slot would be worse than failing.
func (g *Registry) Register(ctx context.Context, input RegisterInput) (*Device, error) {
	own, err := g.owners.GetByToken(ctx, input.OwnerToken)
	if err != nil {
		return nil, err
	}

	if err := validateTelemetry(input.Telemetry); err != nil {
		return nil, err
	}

	token := input.Token
	if token == "" {
		token = uuid.New().String()
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	dev := &Device{
		Token:         token,
		Name:          input.Name,
		OwnerToken:    own.Token,
		OwnerIdentity: own.Identity,
		Active:        active,
		PairedAt:      g.nowFn(),
	}
	if tel := input.Telemetry; tel != nil {
		dev.Lat = tel.Lat
		dev.Lng = tel.Lng
		dev.LastSignal = tel.Signal
		dev.BatteryPercent = tel.Battery
		if tel.Lat != nil || tel.Lng != nil || tel.Signal != nil {
			seen := g.nowFn()
			dev.LastSeenAt = &seen
		}
	}

	if input.SubIdentity > 0 {
		dev.SubIdentity = input.SubIdentity
		if err := g.repo.Create(ctx, dev); err != nil {
			return nil, err
		}
		g.emit(Event{Type: EventRegistered, Device: dev})
		return dev, nil
	}

	for attempt := 0; attempt < maxAllocationRetries; attempt++ {
		max, ok, err := g.repo.MaxSubIdentity(ctx, own.Identity)
		if err != nil {
			return nil, err
		}
		next := int64(1)
		if ok {
			next = max + 1
		}

		dev.SubIdentity = next
		err = g.repo.Create(ctx, dev)
		if err == nil {
			g.emit(Event{Type: EventRegistered, Device: dev})
			return dev, nil
		}
		if !errors.Is(err, ErrPairExists) {
			return nil, err
		}

		// Lost the allocation race; another registration took this slot
		// between our read and insert. Recompute and try again.
		if g.logger != nil {
			g.logger.Debug("sub-identity allocation retry",
				"owner_identity", own.Identity,
				"sub_identity", next,
				"attempt", attempt+1,
			)
		}
	}

	return nil, fmt.Errorf("allocating sub-identity for owner %d: %w", own.Identity, ErrPairExists)
}

// GetByToken retrieves a device by its unique token.
func (g *Registry) GetByToken(ctx context.Context, token string) (*Device, error) {
	return g.repo.GetByToken(ctx, token)
}

// List returns a full snapshot of all devices, most recently paired first.
func (g *Registry) List(ctx context.Context) ([]Device, error) {
	return g.repo.List(ctx)
}

// ListByOwner returns the owner's devices, most recently paired first.
func (g *Registry) ListByOwner(ctx context.Context, ownerIdentity int64) ([]Device, error) {
	return g.repo.ListByOwner(ctx, ownerIdentity)
}

// Delete removes the device with the given pair permanently. No soft-delete.
func (g *Registry) Delete(ctx context.Context, ownerIdentity, subIdentity int64) error {
	dev, err := g.repo.GetByPair(ctx, ownerIdentity, subIdentity)
	if err != nil {
		return err
	}

	if err := g.repo.DeleteByPair(ctx, ownerIdentity, subIdentity); err != nil {
		return err
	}

	g.emit(Event{Type: EventDeleted, Device: dev})
	return nil
}

// ApplyPing records a full telemetry submission: last seen time, position,
// and signal strength. Battery is intentionally not updated by telemetry.
//
// Returns ErrDeviceNotFound if no device matches the pair, or
// ErrInvalidCoordinates when lat/lng are not finite numbers in range.
func (g *Registry) ApplyPing(ctx context.Context, ownerIdentity, subIdentity int64, lat, lng float64, signal *int) (*Device, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	seenAt := g.nowFn()
	if err := g.repo.UpdatePing(ctx, ownerIdentity, subIdentity, lat, lng, signal, seenAt); err != nil {
		return nil, err
	}

	dev, err := g.repo.GetByPair(ctx, ownerIdentity, subIdentity)
	if err != nil {
		return nil, err
	}

	g.recordPing(ctx, dev.Token, &lat, &lng, signal, seenAt)
	g.emit(Event{Type: EventPing, Device: dev})
	return dev, nil
}

// UpdateSignal records a signal-only telemetry submission: last_signal and
// last_seen_at change, position is left untouched.
func (g *Registry) UpdateSignal(ctx context.Context, ownerIdentity, subIdentity int64, signal int) (*Device, error) {
	seenAt := g.nowFn()
	if err := g.repo.UpdateSignal(ctx, ownerIdentity, subIdentity, signal, seenAt); err != nil {
		return nil, err
	}

	dev, err := g.repo.GetByPair(ctx, ownerIdentity, subIdentity)
	if err != nil {
		return nil, err
	}

	g.recordPing(ctx, dev.Token, nil, nil, &signal, seenAt)
	g.emit(Event{Type: EventSignal, Device: dev})
	return dev, nil
}

// SetActive toggles the device's lifecycle flag and returns the updated record.
func (g *Registry) SetActive(ctx context.Context, token string, active bool) (*Device, error) {
	if err := g.repo.SetActive(ctx, token, active); err != nil {
		return nil, err
	}
	return g.repo.GetByToken(ctx, token)
}

// recordPing appends to the telemetry trail. Trail failures are logged and
// swallowed: the device row is already updated and history is best-effort.
func (g *Registry) recordPing(ctx context.Context, token string, lat, lng *float64, signal *int, at time.Time) {
	if g.history == nil {
		return
	}
	if err := g.history.Record(ctx, token, lat, lng, signal, at); err != nil && g.logger != nil {
		g.logger.Warn("ping history write failed", "device_token", token, "error", err)
	}
}

// emit delivers an event to the sink if one is set.
func (g *Registry) emit(ev Event) {
	if g.sink != nil {
		g.sink(ev)
	}
}
