package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/osier-labs/beacontrack-core/internal/device"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/mqtt"
)

// Subscriber is the MQTT surface the ingestor needs.
// Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// DeviceRegistry is the registry surface the ingestor needs.
// Satisfied by *device.Registry.
type DeviceRegistry interface {
	ApplyPing(ctx context.Context, ownerIdentity, subIdentity int64, lat, lng float64, signal *int) (*device.Device, error)
	UpdateSignal(ctx context.Context, ownerIdentity, subIdentity int64, signal int) (*device.Device, error)
}

// Logger is the minimal logging interface the ingestor needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// pingPayload is the JSON body trackers publish on ping topics.
type pingPayload struct {
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	Signal *int     `json:"signal"`
}

// signalPayload is the JSON body trackers publish on signal topics.
type signalPayload struct {
	Signal *int `json:"signal"`
}

// Options configures an Ingestor.
type Options struct {
	Subscriber Subscriber
	Registry   DeviceRegistry
	Logger     Logger // optional
	QoS        byte
}

// Ingestor subscribes to device telemetry topics and applies submissions
// through the device registry.
type Ingestor struct {
	subscriber Subscriber
	registry   DeviceRegistry
	logger     Logger
	qos        byte

	topics   mqtt.Topics
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewIngestor creates an Ingestor. Call Start to begin consuming.
func NewIngestor(opts Options) (*Ingestor, error) {
	if opts.Subscriber == nil {
		return nil, fmt.Errorf("telemetry: subscriber is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("telemetry: registry is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		subscriber: opts.Subscriber,
		registry:   opts.Registry,
		logger:     opts.Logger,
		qos:        opts.QoS,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start subscribes to the ping and signal topic patterns.
func (i *Ingestor) Start() error {
	pingTopic := i.topics.AllDevicePings()
	if err := i.subscriber.Subscribe(pingTopic, i.qos, i.handleMessage); err != nil {
		return fmt.Errorf("subscribe to pings: %w", err)
	}

	signalTopic := i.topics.AllDeviceSignals()
	if err := i.subscriber.Subscribe(signalTopic, i.qos, i.handleMessage); err != nil {
		return fmt.Errorf("subscribe to signals: %w", err)
	}

	i.logInfo("telemetry ingest started", "ping_topic", pingTopic, "signal_topic", signalTopic)
	return nil
}

// Stop unsubscribes and aborts in-flight submissions.
func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		i.cancel()

		// Best effort; the client may already be disconnected.
		i.subscriber.Unsubscribe(i.topics.AllDevicePings())
		i.subscriber.Unsubscribe(i.topics.AllDeviceSignals())

		i.logInfo("telemetry ingest stopped")
	})
}

// handleMessage dispatches an incoming telemetry message by topic kind.
// Returned errors are logged by the MQTT client; there is no reply channel.
func (i *Ingestor) handleMessage(topic string, payload []byte) error {
	kind, ownerIdentity, subIdentity, err := mqtt.ParseDeviceTopic(topic)
	if err != nil {
		return fmt.Errorf("parsing telemetry topic: %w", err)
	}

	switch kind {
	case "ping":
		return i.applyPing(ownerIdentity, subIdentity, payload)
	case "signal":
		return i.applySignal(ownerIdentity, subIdentity, payload)
	default:
		return fmt.Errorf("unhandled telemetry kind %q", kind)
	}
}

func (i *Ingestor) applyPing(ownerIdentity, subIdentity int64, payload []byte) error {
	var body pingPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decoding ping payload: %w", err)
	}
	if body.Lat == nil || body.Lng == nil {
		return fmt.Errorf("ping payload missing lat/lng for device %d/%d", ownerIdentity, subIdentity)
	}

	_, err := i.registry.ApplyPing(i.ctx, ownerIdentity, subIdentity, *body.Lat, *body.Lng, body.Signal)
	if err != nil {
		return fmt.Errorf("applying ping for device %d/%d: %w", ownerIdentity, subIdentity, err)
	}
	return nil
}

func (i *Ingestor) applySignal(ownerIdentity, subIdentity int64, payload []byte) error {
	var body signalPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decoding signal payload: %w", err)
	}
	if body.Signal == nil {
		return fmt.Errorf("signal payload missing signal for device %d/%d", ownerIdentity, subIdentity)
	}

	_, err := i.registry.UpdateSignal(i.ctx, ownerIdentity, subIdentity, *body.Signal)
	if err != nil {
		return fmt.Errorf("applying signal for device %d/%d: %w", ownerIdentity, subIdentity, err)
	}
	return nil
}

func (i *Ingestor) logInfo(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Info(msg, args...)
	}
}
