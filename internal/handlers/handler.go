// Package handlers implements the HTTP surface: room creation, magic-link
// resolution, join, media upload and retrieval, and health.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/blasperez/Private-Chat/internal/apperr"
	"github.com/blasperez/Private-Chat/internal/auth"
	"github.com/blasperez/Private-Chat/internal/blob"
	"github.com/blasperez/Private-Chat/internal/config"
	"github.com/blasperez/Private-Chat/internal/registry"
	"github.com/blasperez/Private-Chat/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	blobs    blob.Store
	redis    *store.RedisStore
	registry *registry.Registry
	access   *auth.Service
	cfg      *config.Config
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. redis may be
// nil when rate limiting is disabled.
func NewHandler(st store.DataStore, blobs blob.Store, redis *store.RedisStore, reg *registry.Registry, access *auth.Service, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		store:    st,
		blobs:    blobs,
		redis:    redis,
		registry: reg,
		access:   access,
		cfg:      cfg,
		logger:   logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response carrying the stable reason code.
func (h *Handler) Error(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.KindStorage || ae.Kind == apperr.KindIntegrity {
		h.logger.Error().Err(err).Msg("request failed")
	}
	h.JSON(w, ae.Status, map[string]string{"error": ae.Code})
}

// sanitizeName trims and limits a display name to 64 characters, removing
// control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 64 {
		name = name[:64]
	}

	return name
}
