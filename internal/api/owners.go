package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// linkOwnerRequest is the request body for POST /owners/link.
type linkOwnerRequest struct {
	Token string `json:"token"`
}

// handleLinkOwner registers an owner token, allocating a numeric identity on
// first sight. The operation is idempotent: re-linking an existing token
// returns the identity allocated the first time.
func (s *Server) handleLinkOwner(w http.ResponseWriter, r *http.Request) {
	var req linkOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	own, err := s.owners.RegisterOrGet(r.Context(), req.Token)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, own)
}

// handleOwnerIdentity resolves an owner token to its numeric identity.
// Unlike linking, this never allocates: unknown tokens are a 404.
func (s *Server) handleOwnerIdentity(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "owner")

	identity, err := s.owners.IdentityFor(r.Context(), token)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"identity": identity,
	})
}

// handleNextSubIdentity previews the sub-identity the next device
// registration for this owner would receive. This is a read; nothing is
// reserved.
func (s *Server) handleNextSubIdentity(w http.ResponseWriter, r *http.Request) {
	ownerIdentity, ok := parseOwnerIdentity(w, r)
	if !ok {
		return
	}

	next, err := s.registry.NextSubIdentity(r.Context(), ownerIdentity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner_identity":    ownerIdentity,
		"next_sub_identity": next,
	})
}

// handleListOwnerDevices returns the owner's devices, most recently paired
// first.
func (s *Server) handleListOwnerDevices(w http.ResponseWriter, r *http.Request) {
	ownerIdentity, ok := parseOwnerIdentity(w, r)
	if !ok {
		return
	}

	if _, err := s.owners.GetByIdentity(r.Context(), ownerIdentity); err != nil {
		s.writeDomainError(w, err)
		return
	}

	devices, err := s.registry.ListByOwner(r.Context(), ownerIdentity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// parseOwnerIdentity extracts the numeric owner identity from the URL.
// Writes a 400 and returns false when the segment is not a positive integer.
func parseOwnerIdentity(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "owner")
	identity, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || identity < 1 {
		writeBadRequest(w, "owner identity must be a positive integer")
		return 0, false
	}
	return identity, true
}
