package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/blasperez/Private-Chat/internal/api/middleware"
	"github.com/blasperez/Private-Chat/internal/apperr"
	"github.com/blasperez/Private-Chat/internal/blob"
	"github.com/blasperez/Private-Chat/internal/metrics"
	"github.com/blasperez/Private-Chat/internal/models"
)

// UploadResponse describes the stored object. Name is the final object name
// after collision suffixing and is what other participants fetch.
type UploadResponse struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	MimeType  string `json:"mime"`
	SizeBytes int64  `json:"size_bytes"`
}

// Upload handles POST /api/rooms/{id}/upload. The multipart file is stored
// under the room's media namespace and announced to the room as a media
// message; the bytes themselves never travel over the websocket.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.sessionRoom(w, r)
	if !ok {
		return
	}

	room, err := h.registry.GetRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, err)
		return
	}
	if room.Archived() {
		h.Error(w, apperr.RoomArchived())
		return
	}

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		h.Error(w, apperr.Validation("INVALID_UPLOAD"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, apperr.Validation("INVALID_UPLOAD"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == "/" {
		h.Error(w, apperr.Validation("INVALID_UPLOAD"))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	result, err := h.blobs.Put(r.Context(), roomID.String(), name, file, mimeType)
	if err != nil {
		h.Error(w, apperr.Storage(err))
		return
	}

	if err := h.store.RecordMedia(r.Context(), &models.MediaObject{
		RoomID:     roomID.String(),
		StorageKey: result.Key,
		MimeType:   mimeType,
		SizeBytes:  result.Size,
		UploadedAt: time.Now().UTC(),
	}); err != nil {
		h.Error(w, apperr.Storage(err))
		return
	}

	url := h.cfg.PublicURL + "/api/rooms/" + roomID.String() + "/media/" + result.Name
	descriptor, err := json.Marshal(models.MediaDescriptor{
		FileName:  result.Name,
		MimeType:  mimeType,
		SizeBytes: result.Size,
		URL:       url,
	})
	if err != nil {
		h.Error(w, apperr.Storage(err))
		return
	}

	claims := middleware.SessionFromContext(r.Context())
	senderID := strconv.FormatInt(claims.SessionID, 10)
	if _, err := h.registry.Append(r.Context(), roomID, senderID, models.KindMedia, string(descriptor)); err != nil {
		h.Error(w, err)
		return
	}

	metrics.MediaUploads.Inc()
	h.JSON(w, http.StatusCreated, UploadResponse{
		Name:      result.Name,
		URL:       url,
		MimeType:  mimeType,
		SizeBytes: result.Size,
	})
}

// Media handles GET /api/rooms/{id}/media/{name}. Access requires a session
// token for the same room; a magic link alone fetches nothing.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.sessionRoom(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) {
		h.Error(w, apperr.NotFound())
		return
	}

	key := blob.MediaKey(roomID.String(), name)
	exists, err := h.blobs.Exists(r.Context(), key)
	if err != nil {
		h.Error(w, apperr.Storage(err))
		return
	}
	if !exists {
		h.Error(w, apperr.NotFound())
		return
	}

	if ref := h.blobs.ServableRef(key); ref.LocalPath != "" {
		http.ServeFile(w, r, ref.LocalPath)
		return
	}

	rc, err := h.blobs.Open(r.Context(), key)
	if err != nil {
		h.Error(w, apperr.Storage(err))
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	io.Copy(w, rc)
}

// sessionRoom parses the URL room id and checks it against the session
// token's room. A token for a different room is treated as forged.
func (h *Handler) sessionRoom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, apperr.NotFound())
		return uuid.Nil, false
	}

	tokenRoom, ok := middleware.SessionRoomID(r.Context())
	if !ok || tokenRoom != roomID {
		h.Error(w, apperr.InvalidToken(nil))
		return uuid.Nil, false
	}
	return roomID, true
}
