// Package api provides the HTTP REST API and WebSocket server for BeaconTrack.
//
// It exposes owner linking, device registration, telemetry submission, and a
// live event feed to clients (mobile apps, dashboards, fleet tooling).
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/osier-labs/beacontrack-core/internal/device"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/config"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/influxdb"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/logging"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/mqtt"
	"github.com/osier-labs/beacontrack-core/internal/owner"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Owners   owner.Repository
	Registry *device.Registry
	History  device.PingHistoryRepository // optional, nil disables /pings history
	MQTT     *mqtt.Client                 // optional, nil disables event publishing
	TSDB     *influxdb.Client             // optional, nil disables telemetry export
	Version  string
}

// Server is the HTTP API server for BeaconTrack.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	owners   owner.Repository
	registry *device.Registry
	history  device.PingHistoryRepository
	mqtt     *mqtt.Client
	tsdb     *influxdb.Client
	version  string
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Owners == nil {
		return nil, fmt.Errorf("owner repository is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	// MQTT and TSDB are optional; the HTTP surface works without them.

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		owners:   deps.Owners,
		registry: deps.Registry,
		history:  deps.History,
		mqtt:     deps.MQTT,
		tsdb:     deps.TSDB,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, hooks the device registry
// event stream for broadcast and export, and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Every registry mutation, whether it arrived over HTTP or MQTT,
	// flows through the same sink.
	s.registry.SetEventSink(s.handleRegistryEvent)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// handleRegistryEvent fans a registry mutation out to the WebSocket hub, the
// time-series store, and the MQTT event topics. All three are best-effort;
// the mutation itself has already committed.
func (s *Server) handleRegistryEvent(ev device.Event) {
	dev := ev.Device
	if dev == nil {
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(ev.Type, dev)
	}

	if s.tsdb != nil {
		switch ev.Type {
		case device.EventPing:
			if dev.Lat != nil && dev.Lng != nil {
				s.tsdb.WriteDevicePing(dev.Token, dev.OwnerIdentity, dev.SubIdentity, *dev.Lat, *dev.Lng, dev.LastSignal)
			}
		case device.EventSignal:
			if dev.LastSignal != nil {
				s.tsdb.WriteDeviceSignal(dev.Token, dev.OwnerIdentity, dev.SubIdentity, *dev.LastSignal)
			}
		}
	}

	if s.mqtt != nil && (ev.Type == device.EventRegistered || ev.Type == device.EventDeleted) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		topic := mqtt.Topics{}.Event(ev.Type)
		if err := s.mqtt.Publish(topic, payload, 1, false); err != nil {
			s.logger.Debug("event publish failed", "topic", topic, "error", err)
		}
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
