package extracthandler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seal-labs/ibte/ibe"
	"github.com/seal-labs/ibte/kms"
)

// ServerInfoResponse describes a key server to clients. The server id is
// derivable from the public key share; it is included so clients don't have
// to recompute it.
type ServerInfoResponse struct {
	ServerID  string `json:"server_id"`
	PublicKey string `json:"public_key"`
	Version   string `json:"version"`
}

// ExtractRequest asks for the user secret key share of one full identity.
type ExtractRequest struct {
	FullID string `json:"full_id"`
}

// ExtractResponse carries the extracted share. The full id is echoed so
// clients can correlate concurrent requests.
type ExtractResponse struct {
	ServerID      string `json:"server_id"`
	FullID        string `json:"full_id"`
	UserSecretKey string `json:"user_secret_key"`
}

// Handler serves a single authority's extraction API.
type Handler struct {
	authority *kms.Authority
	version   string
	log       *slog.Logger
}

// NewHandler creates an extraction handler for the given authority.
func NewHandler(authority *kms.Authority, version string, log *slog.Logger) *Handler {
	return &Handler{authority: authority, version: version, log: log}
}

// RegisterRoutes mounts the extraction API on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/server-info", h.HandleServerInfo)
	r.Post("/api/v1/extract", h.HandleExtract)
}

// HandleServerInfo returns the server's id, public key share, and version.
func (h *Handler) HandleServerInfo(w http.ResponseWriter, r *http.Request) {
	pubBytes, err := h.authority.PublicKey().MarshalBinary()
	if err != nil {
		h.log.Error("Failed to encode public key share", "err", err)
		http.Error(w, "failed to encode public key share", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, ServerInfoResponse{
		ServerID:  h.authority.ID().Hex(),
		PublicKey: hex.EncodeToString(pubBytes),
		Version:   h.version,
	})
}

// HandleExtract extracts the user secret key share for the requested full
// identity. Extraction is deterministic, so retries are safe.
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	rawID, err := hex.DecodeString(req.FullID)
	if err != nil {
		http.Error(w, fmt.Errorf("invalid full identity: %w", err).Error(), http.StatusBadRequest)
		return
	}
	fullID, err := ibe.FullIdentityFromBytes(rawID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	usk := h.authority.Extract(fullID)
	uskBytes, err := usk.MarshalBinary()
	if err != nil {
		h.log.Error("Failed to encode user secret key share", "err", err)
		http.Error(w, "failed to encode user secret key share", http.StatusInternalServerError)
		return
	}

	h.log.Debug("Extracted user secret key share",
		slog.String("fullID", fullID.Hex()))

	writeJSON(w, h.log, ExtractResponse{
		ServerID:      h.authority.ID().Hex(),
		FullID:        fullID.Hex(),
		UserSecretKey: hex.EncodeToString(uskBytes),
	})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
