package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/osier-labs/beacontrack-core/internal/device"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/config"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/database"
	"github.com/osier-labs/beacontrack-core/internal/infrastructure/logging"
	"github.com/osier-labs/beacontrack-core/internal/owner"
	_ "github.com/osier-labs/beacontrack-core/migrations"
)

// newTestServer builds a Server over a fresh migrated database and returns
// it with an httptest listener serving its router. The WebSocket hub and
// registry event sink are wired the same way Start() wires them.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	owners := owner.NewSQLiteRepository(db.DB)
	repo := device.NewSQLiteRepository(db.DB)
	history := device.NewSQLitePingHistoryRepository(db.DB)
	registry := device.NewRegistry(repo, owners, history)

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    60,
		},
		Logger:   logging.Default(),
		Owners:   owners,
		Registry: registry,
		History:  history,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, srv.logger)
	registry.SetEventSink(srv.handleRegistryEvent)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return srv, ts
}

// do issues a JSON request against the test server and decodes the response
// body into a map. A nil map is returned for empty bodies (e.g. 204).
func do(t *testing.T, ts *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}

	return resp.StatusCode, decoded
}

// linkOwner registers an owner token and returns its numeric identity.
func linkOwner(t *testing.T, ts *httptest.Server, token string) int64 {
	t.Helper()

	status, body := do(t, ts, http.MethodPost, "/api/v1/owners/link", map[string]string{"token": token})
	if status != http.StatusOK {
		t.Fatalf("link owner %q status = %d, want %d", token, status, http.StatusOK)
	}
	return int64(body["identity"].(float64))
}

// registerDevice registers a device for the owner token and returns the
// response body.
func registerDevice(t *testing.T, ts *httptest.Server, ownerToken string, extra map[string]any) map[string]any {
	t.Helper()

	req := map[string]any{"owner_token": ownerToken}
	for k, v := range extra {
		req[k] = v
	}
	status, body := do(t, ts, http.MethodPost, "/api/v1/devices", req)
	if status != http.StatusCreated {
		t.Fatalf("register device status = %d, want %d (body %v)", status, http.StatusCreated, body)
	}
	return body
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		status, body := do(t, ts, http.MethodGet, path, nil)
		if status != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, status, http.StatusOK)
		}
		if body["status"] != "ok" {
			t.Errorf("GET %s status field = %v, want ok", path, body["status"])
		}
		if body["version"] != "test" {
			t.Errorf("GET %s version = %v, want test", path, body["version"])
		}
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("New() with empty deps expected error, got nil")
	}
}

func TestLinkOwner_Idempotent(t *testing.T) {
	_, ts := newTestServer(t)

	if got := linkOwner(t, ts, "alice"); got != 1 {
		t.Fatalf("first link identity = %d, want 1", got)
	}
	if got := linkOwner(t, ts, "alice"); got != 1 {
		t.Fatalf("re-link identity = %d, want 1", got)
	}
	if got := linkOwner(t, ts, "bob"); got != 2 {
		t.Fatalf("second owner identity = %d, want 2", got)
	}
}

func TestLinkOwner_EmptyToken(t *testing.T) {
	_, ts := newTestServer(t)

	status, _ := do(t, ts, http.MethodPost, "/api/v1/owners/link", map[string]string{"token": ""})
	if status != http.StatusBadRequest {
		t.Fatalf("link with empty token status = %d, want %d", status, http.StatusBadRequest)
	}
}

func TestOwnerIdentity(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")

	status, body := do(t, ts, http.MethodGet, "/api/v1/owners/alice/identity", nil)
	if status != http.StatusOK {
		t.Fatalf("identity lookup status = %d, want %d", status, http.StatusOK)
	}
	if got := int64(body["identity"].(float64)); got != 1 {
		t.Errorf("identity = %d, want 1", got)
	}

	// Lookup never allocates: unknown tokens are a 404, and the next link
	// still receives the next sequential identity.
	status, _ = do(t, ts, http.MethodGet, "/api/v1/owners/stranger/identity", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want %d", status, http.StatusNotFound)
	}
	if got := linkOwner(t, ts, "bob"); got != 2 {
		t.Errorf("identity after failed lookup = %d, want 2", got)
	}
}

func TestNextSubIdentity(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")

	status, body := do(t, ts, http.MethodGet, "/api/v1/owners/1/next-sub-identity", nil)
	if status != http.StatusOK {
		t.Fatalf("next-sub-identity status = %d, want %d", status, http.StatusOK)
	}
	if got := int64(body["next_sub_identity"].(float64)); got != 1 {
		t.Errorf("next sub-identity = %d, want 1", got)
	}

	registerDevice(t, ts, "alice", nil)

	// Preview advances after a registration but is a pure read: asking
	// twice returns the same value.
	for i := 0; i < 2; i++ {
		_, body = do(t, ts, http.MethodGet, "/api/v1/owners/1/next-sub-identity", nil)
		if got := int64(body["next_sub_identity"].(float64)); got != 2 {
			t.Errorf("next sub-identity after registration = %d, want 2", got)
		}
	}

	status, _ = do(t, ts, http.MethodGet, "/api/v1/owners/99/next-sub-identity", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown owner status = %d, want %d", status, http.StatusNotFound)
	}

	status, _ = do(t, ts, http.MethodGet, "/api/v1/owners/abc/next-sub-identity", nil)
	if status != http.StatusBadRequest {
		t.Errorf("non-numeric owner status = %d, want %d", status, http.StatusBadRequest)
	}
}

func TestRegisterDevice(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")

	dev := registerDevice(t, ts, "alice", map[string]any{"name": "keys"})
	if dev["token"] == "" || dev["token"] == nil {
		t.Error("expected generated token, got empty")
	}
	if got := int64(dev["sub_identity"].(float64)); got != 1 {
		t.Errorf("first device sub_identity = %d, want 1", got)
	}
	if dev["active"] != true {
		t.Errorf("active = %v, want true", dev["active"])
	}

	second := registerDevice(t, ts, "alice", nil)
	if got := int64(second["sub_identity"].(float64)); got != 2 {
		t.Errorf("second device sub_identity = %d, want 2", got)
	}
}

func TestRegisterDevice_Errors(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{"token": "tracker-1"})

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{"duplicate token", map[string]any{"owner_token": "alice", "token": "tracker-1"}, http.StatusConflict},
		{"unknown owner", map[string]any{"owner_token": "stranger"}, http.StatusNotFound},
		{"missing owner token", map[string]any{"name": "keys"}, http.StatusBadRequest},
		{"invalid telemetry", map[string]any{"owner_token": "alice", "telemetry": map[string]any{"lat": 91.0, "lng": 0.0}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, ts, http.MethodPost, "/api/v1/devices", tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestRegisterDevice_ExplicitSubIdentity(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")

	// The beacon flow: fetch the next sub-identity, then register with
	// that pair.
	_, body := do(t, ts, http.MethodGet, "/api/v1/owners/1/next-sub-identity", nil)
	next := int64(body["next_sub_identity"].(float64))

	dev := registerDevice(t, ts, "alice", map[string]any{"sub_identity": next})
	if got := int64(dev["sub_identity"].(float64)); got != next {
		t.Errorf("sub_identity = %d, want %d", got, next)
	}

	// The pair is taken now, so registering it again is a conflict.
	status, _ := do(t, ts, http.MethodPost, "/api/v1/devices",
		map[string]any{"owner_token": "alice", "sub_identity": next})
	if status != http.StatusConflict {
		t.Errorf("duplicate pair status = %d, want %d", status, http.StatusConflict)
	}

	// An explicit sub-identity above the current maximum raises the
	// high-water mark for later server-side allocations.
	registerDevice(t, ts, "alice", map[string]any{"sub_identity": 7})
	auto := registerDevice(t, ts, "alice", nil)
	if got := int64(auto["sub_identity"].(float64)); got != 8 {
		t.Errorf("allocated sub_identity = %d, want 8", got)
	}

	status, _ = do(t, ts, http.MethodPost, "/api/v1/devices",
		map[string]any{"owner_token": "alice", "sub_identity": -1})
	if status != http.StatusBadRequest {
		t.Errorf("negative sub_identity status = %d, want %d", status, http.StatusBadRequest)
	}
}

func TestGetDevice(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{"token": "tracker-1", "name": "keys"})

	status, body := do(t, ts, http.MethodGet, "/api/v1/devices/by-token/tracker-1", nil)
	if status != http.StatusOK {
		t.Fatalf("get device status = %d, want %d", status, http.StatusOK)
	}
	if body["name"] != "keys" {
		t.Errorf("name = %v, want keys", body["name"])
	}
	if body["owner_token"] != "alice" {
		t.Errorf("owner_token = %v, want alice", body["owner_token"])
	}

	status, _ = do(t, ts, http.MethodGet, "/api/v1/devices/by-token/missing", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestListDevices(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	linkOwner(t, ts, "bob")
	registerDevice(t, ts, "alice", map[string]any{"token": "a-1"})
	registerDevice(t, ts, "alice", map[string]any{"token": "a-2"})
	registerDevice(t, ts, "bob", map[string]any{"token": "b-1"})

	status, body := do(t, ts, http.MethodGet, "/api/v1/devices", nil)
	if status != http.StatusOK {
		t.Fatalf("list devices status = %d, want %d", status, http.StatusOK)
	}
	if got := int(body["count"].(float64)); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}

	status, body = do(t, ts, http.MethodGet, "/api/v1/owners/1/devices", nil)
	if status != http.StatusOK {
		t.Fatalf("owner devices status = %d, want %d", status, http.StatusOK)
	}
	if got := int(body["count"].(float64)); got != 2 {
		t.Errorf("owner device count = %d, want 2", got)
	}

	status, _ = do(t, ts, http.MethodGet, "/api/v1/owners/99/devices", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown owner devices status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestDevicePing(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{
		"token":     "tracker-1",
		"telemetry": map[string]any{"battery": 80},
	})

	status, body := do(t, ts, http.MethodPost, "/api/v1/devices/1/1/ping", map[string]any{
		"lat": 51.5072, "lng": -0.1276, "signal": -67,
	})
	if status != http.StatusOK {
		t.Fatalf("ping status = %d, want %d (body %v)", status, http.StatusOK, body)
	}
	if got := body["lat"].(float64); got != 51.5072 {
		t.Errorf("lat = %v, want 51.5072", got)
	}
	if got := int(body["last_signal"].(float64)); got != -67 {
		t.Errorf("last_signal = %d, want -67", got)
	}
	if body["last_seen_at"] == nil {
		t.Error("last_seen_at not set after ping")
	}
	// Battery is only settable at registration; telemetry leaves it alone.
	if got := int(body["battery_percent"].(float64)); got != 80 {
		t.Errorf("battery_percent = %d, want 80", got)
	}
}

func TestDevicePing_Errors(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{"token": "tracker-1"})

	tests := []struct {
		name       string
		path       string
		body       map[string]any
		wantStatus int
	}{
		{"missing lng", "/api/v1/devices/1/1/ping", map[string]any{"lat": 51.5}, http.StatusBadRequest},
		{"latitude out of range", "/api/v1/devices/1/1/ping", map[string]any{"lat": 91.0, "lng": 0.0}, http.StatusBadRequest},
		{"unknown pair", "/api/v1/devices/1/9/ping", map[string]any{"lat": 51.5, "lng": 0.0}, http.StatusNotFound},
		{"non-numeric pair", "/api/v1/devices/1/abc/ping", map[string]any{"lat": 51.5, "lng": 0.0}, http.StatusBadRequest},
		{"zero sub-identity", "/api/v1/devices/1/0/ping", map[string]any{"lat": 51.5, "lng": 0.0}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, ts, http.MethodPost, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestDeviceSignal(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{"token": "tracker-1"})

	// Establish a position first so we can verify signal-only updates
	// leave it untouched.
	do(t, ts, http.MethodPost, "/api/v1/devices/1/1/ping", map[string]any{"lat": 51.5, "lng": -0.12})

	status, body := do(t, ts, http.MethodPost, "/api/v1/devices/1/1/signal", map[string]any{"signal": -80})
	if status != http.StatusOK {
		t.Fatalf("signal status = %d, want %d", status, http.StatusOK)
	}
	if got := int(body["last_signal"].(float64)); got != -80 {
		t.Errorf("last_signal = %d, want -80", got)
	}
	if got := body["lat"].(float64); got != 51.5 {
		t.Errorf("lat after signal update = %v, want 51.5", got)
	}

	status, body = do(t, ts, http.MethodPost, "/api/v1/devices/1/1/signal", map[string]any{})
	if status != http.StatusBadRequest {
		t.Errorf("missing signal status = %d, want %d", status, http.StatusBadRequest)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "signal strength is required") {
		t.Errorf("missing signal message = %q, want signal strength detail", msg)
	}

	status, _ = do(t, ts, http.MethodPost, "/api/v1/devices/1/9/signal", map[string]any{"signal": -80})
	if status != http.StatusNotFound {
		t.Errorf("unknown pair status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestSetDeviceActive(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{"token": "tracker-1"})

	status, body := do(t, ts, http.MethodPatch, "/api/v1/devices/by-token/tracker-1/active", map[string]any{"active": false})
	if status != http.StatusOK {
		t.Fatalf("set active status = %d, want %d", status, http.StatusOK)
	}
	if body["active"] != false {
		t.Errorf("active = %v, want false", body["active"])
	}

	status, _ = do(t, ts, http.MethodPatch, "/api/v1/devices/by-token/tracker-1/active", map[string]any{})
	if status != http.StatusBadRequest {
		t.Errorf("missing active field status = %d, want %d", status, http.StatusBadRequest)
	}

	status, _ = do(t, ts, http.MethodPatch, "/api/v1/devices/by-token/missing/active", map[string]any{"active": true})
	if status != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestDeleteDevice_SubIdentityHighWaterMark(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	for i := 1; i <= 3; i++ {
		registerDevice(t, ts, "alice", map[string]any{"token": fmt.Sprintf("tracker-%d", i)})
	}

	status, _ := do(t, ts, http.MethodDelete, "/api/v1/devices/1/2", nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", status, http.StatusNoContent)
	}

	// The freed sub-identity stays unused while other devices remain.
	_, body := do(t, ts, http.MethodGet, "/api/v1/owners/1/next-sub-identity", nil)
	if got := int64(body["next_sub_identity"].(float64)); got != 4 {
		t.Errorf("next sub-identity after gap = %d, want 4", got)
	}

	status, _ = do(t, ts, http.MethodDelete, "/api/v1/devices/1/2", nil)
	if status != http.StatusNotFound {
		t.Errorf("double delete status = %d, want %d", status, http.StatusNotFound)
	}

	// Removing every device resets allocation to 1.
	do(t, ts, http.MethodDelete, "/api/v1/devices/1/1", nil)
	do(t, ts, http.MethodDelete, "/api/v1/devices/1/3", nil)
	_, body = do(t, ts, http.MethodGet, "/api/v1/owners/1/next-sub-identity", nil)
	if got := int64(body["next_sub_identity"].(float64)); got != 1 {
		t.Errorf("next sub-identity after full wipe = %d, want 1", got)
	}
}

func TestDevicePingHistory(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{"token": "tracker-1"})

	do(t, ts, http.MethodPost, "/api/v1/devices/1/1/ping", map[string]any{"lat": 51.5, "lng": -0.12, "signal": -60})
	do(t, ts, http.MethodPost, "/api/v1/devices/1/1/signal", map[string]any{"signal": -72})

	status, body := do(t, ts, http.MethodGet, "/api/v1/devices/by-token/tracker-1/pings", nil)
	if status != http.StatusOK {
		t.Fatalf("ping history status = %d, want %d", status, http.StatusOK)
	}
	if got := int(body["count"].(float64)); got != 2 {
		t.Fatalf("history count = %d, want 2", got)
	}

	// Newest first: the signal-only entry leads and carries no position.
	entries := body["pings"].([]any)
	first := entries[0].(map[string]any)
	if first["lat"] != nil {
		t.Errorf("signal-only entry lat = %v, want null", first["lat"])
	}
	if got := int(first["signal"].(float64)); got != -72 {
		t.Errorf("newest entry signal = %d, want -72", got)
	}

	status, _ = do(t, ts, http.MethodGet, "/api/v1/devices/by-token/tracker-1/pings?limit=abc", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want %d", status, http.StatusBadRequest)
	}

	status, _ = do(t, ts, http.MethodGet, "/api/v1/devices/by-token/missing/pings", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestActivePings(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")
	registerDevice(t, ts, "alice", map[string]any{"token": "tracked"})
	registerDevice(t, ts, "alice", map[string]any{"token": "silent"})
	registerDevice(t, ts, "alice", map[string]any{"token": "disabled"})

	do(t, ts, http.MethodPost, "/api/v1/devices/1/1/ping", map[string]any{"lat": 51.5, "lng": -0.12, "signal": -60})
	do(t, ts, http.MethodPost, "/api/v1/devices/1/3/ping", map[string]any{"lat": 48.85, "lng": 2.35})
	do(t, ts, http.MethodPatch, "/api/v1/devices/by-token/disabled/active", map[string]any{"active": false})

	status, body := do(t, ts, http.MethodGet, "/api/v1/pings", nil)
	if status != http.StatusOK {
		t.Fatalf("pings status = %d, want %d", status, http.StatusOK)
	}

	// Only active devices with a reported position appear: "silent" never
	// pinged and "disabled" was deactivated after its ping.
	if got := int(body["count"].(float64)); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	entry := body["pings"].([]any)[0].(map[string]any)
	if entry["token"] != "tracked" {
		t.Errorf("token = %v, want tracked", entry["token"])
	}
	if got := entry["lat"].(float64); got != 51.5 {
		t.Errorf("lat = %v, want 51.5", got)
	}
}

func TestWebSocketEventFeed(t *testing.T) {
	_, ts := newTestServer(t)
	linkOwner(t, ts, "alice")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{device.EventRegistered}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe write error = %v", err)
	}

	//nolint:errcheck // Deadline guards the read below
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("subscribe ack read error = %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v, want response with id 1", ack)
	}

	registerDevice(t, ts, "alice", map[string]any{"token": "tracker-1"})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("event read error = %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != device.EventRegistered {
		t.Fatalf("event = %+v, want %s event", event, device.EventRegistered)
	}
	payload := event.Payload.(map[string]any)
	if payload["token"] != "tracker-1" {
		t.Errorf("event payload token = %v, want tracker-1", payload["token"])
	}
}
