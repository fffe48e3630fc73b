package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/osier-labs/beacontrack-core/internal/device"
)

// registerDeviceRequest is the request body for POST /devices.
type registerDeviceRequest struct {
	Token       string            `json:"token,omitempty"`
	Name        string            `json:"name,omitempty"`
	OwnerToken  string            `json:"owner_token"`
	SubIdentity int64             `json:"sub_identity,omitempty"`
	Active      *bool             `json:"active,omitempty"`
	Telemetry   *device.Telemetry `json:"telemetry,omitempty"`
}

// pingRequest is the request body for POST /devices/{owner}/{sub}/ping.
type pingRequest struct {
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	Signal *int     `json:"signal,omitempty"`
}

// signalRequest is the request body for POST /devices/{owner}/{sub}/signal.
type signalRequest struct {
	Signal *int `json:"signal"`
}

// setActiveRequest is the request body for PATCH /devices/by-token/{token}/active.
type setActiveRequest struct {
	Active *bool `json:"active"`
}

// devicePosition is the map-dashboard view of a device: identity plus the
// last reported position and signal.
type devicePosition struct {
	Token         string     `json:"token"`
	Name          string     `json:"name"`
	OwnerIdentity int64      `json:"owner_identity"`
	SubIdentity   int64      `json:"sub_identity"`
	Lat           float64    `json:"lat"`
	Lng           float64    `json:"lng"`
	LastSignal    *int       `json:"last_signal,omitempty"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
}

// handleListDevices returns all devices, most recently paired first.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleActivePings returns the last known position of every active device
// that has reported one. This is the dashboard's map view: one entry per
// device, not a history.
func (s *Server) handleActivePings(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	positions := make([]devicePosition, 0, len(devices))
	for _, dev := range devices {
		if !dev.Active || dev.Lat == nil || dev.Lng == nil {
			continue
		}
		positions = append(positions, devicePosition{
			Token:         dev.Token,
			Name:          dev.Name,
			OwnerIdentity: dev.OwnerIdentity,
			SubIdentity:   dev.SubIdentity,
			Lat:           *dev.Lat,
			Lng:           *dev.Lng,
			LastSignal:    dev.LastSignal,
			LastSeenAt:    dev.LastSeenAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pings": positions,
		"count": len(positions),
	})
}

// handleRegisterDevice pairs a new device with an owner. A device token is
// generated when the request omits one; supplying a token already in use is
// a 409. Callers that obtained a sub-identity from the next-sub-identity
// endpoint pass it here; when omitted, one is allocated server-side. A
// supplied sub-identity already paired to the owner is a 409.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.OwnerToken == "" {
		writeBadRequest(w, "owner_token is required")
		return
	}
	if req.SubIdentity < 0 {
		writeBadRequest(w, "sub_identity must be a positive integer")
		return
	}

	dev, err := s.registry.Register(r.Context(), device.RegisterInput{
		Token:       req.Token,
		Name:        req.Name,
		OwnerToken:  req.OwnerToken,
		SubIdentity: req.SubIdentity,
		Active:      req.Active,
		Telemetry:   req.Telemetry,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleGetDevice retrieves a device by its unique token.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	dev, err := s.registry.GetByToken(r.Context(), token)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleSetDeviceActive toggles the device lifecycle flag.
func (s *Server) handleSetDeviceActive(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Active == nil {
		writeBadRequest(w, "active is required")
		return
	}

	dev, err := s.registry.SetActive(r.Context(), token, *req.Active)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDevicePingHistory returns the recent telemetry trail for a device,
// newest first. The limit query parameter defaults to 50 and is clamped
// server-side.
func (s *Server) handleDevicePingHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "ping history is not enabled")
		return
	}

	token := chi.URLParam(r, "token")

	// Confirm the device exists so unknown tokens are a 404, not an
	// empty trail.
	if _, err := s.registry.GetByToken(r.Context(), token); err != nil {
		s.writeDomainError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.History(r.Context(), token, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pings": entries,
		"count": len(entries),
	})
}

// handleDeleteDevice removes a device by its (owner, sub-identity) pair.
// Deletion is permanent; the freed sub-identity is not reused while the
// owner has other devices.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ownerIdentity, subIdentity, ok := parsePair(w, r)
	if !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), ownerIdentity, subIdentity); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDevicePing applies a full telemetry submission over HTTP: position,
// optional signal, and a refreshed last-seen time.
func (s *Server) handleDevicePing(w http.ResponseWriter, r *http.Request) {
	ownerIdentity, subIdentity, ok := parsePair(w, r)
	if !ok {
		return
	}

	var req pingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeBadRequest(w, "lat and lng are required")
		return
	}

	dev, err := s.registry.ApplyPing(r.Context(), ownerIdentity, subIdentity, *req.Lat, *req.Lng, req.Signal)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceSignal applies a signal-only submission: signal strength and
// last-seen time change, position is left untouched.
func (s *Server) handleDeviceSignal(w http.ResponseWriter, r *http.Request) {
	ownerIdentity, subIdentity, ok := parsePair(w, r)
	if !ok {
		return
	}

	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Signal == nil {
		s.writeDomainError(w, device.ErrSignalRequired)
		return
	}

	dev, err := s.registry.UpdateSignal(r.Context(), ownerIdentity, subIdentity, *req.Signal)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// parsePair extracts the (ownerIdentity, subIdentity) pair from the URL.
// Writes a 400 and returns false when either segment is not a positive integer.
func parsePair(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	ownerIdentity, err := strconv.ParseInt(chi.URLParam(r, "ownerIdentity"), 10, 64)
	if err != nil || ownerIdentity < 1 {
		writeBadRequest(w, "owner identity must be a positive integer")
		return 0, 0, false
	}

	subIdentity, err := strconv.ParseInt(chi.URLParam(r, "subIdentity"), 10, 64)
	if err != nil || subIdentity < 1 {
		writeBadRequest(w, "sub-identity must be a positive integer")
		return 0, 0, false
	}

	return ownerIdentity, subIdentity, true
}
