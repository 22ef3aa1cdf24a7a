package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blasperez/Private-Chat/internal/api"
	"github.com/blasperez/Private-Chat/internal/archive"
	"github.com/blasperez/Private-Chat/internal/auth"
	"github.com/blasperez/Private-Chat/internal/blob"
	"github.com/blasperez/Private-Chat/internal/config"
	"github.com/blasperez/Private-Chat/internal/registry"
	"github.com/blasperez/Private-Chat/internal/store"
)

type env struct {
	server   *httptest.Server
	store    store.DataStore
	registry *registry.Registry
	tokens   *auth.TokenManager
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(st.Close)

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	cfg := &config.Config{
		Env:             "test",
		PublicURL:       "http://example.test",
		DefaultCapacity: 10,
		GracePeriod:     time.Second,
		SessionTTL:      time.Hour,
		MaxUploadBytes:  1 << 20,
		EncryptionKey:   key,
	}

	logger := zerolog.Nop()
	tokens := auth.NewTokenManager("test-secret", cfg.SessionTTL)
	archiver := archive.NewArchiver(st, blobs, key, logger)
	reg := registry.New(st, archiver, cfg.GracePeriod, cfg.DefaultCapacity, logger)
	access := auth.NewService(st, reg, tokens, logger)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Store:    st,
		Blobs:    blobs,
		Registry: reg,
		Access:   access,
		Tokens:   tokens,
		Logger:   logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{server: srv, store: st, registry: reg, tokens: tokens}
}

func (e *env) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := decode[map[string]string](t, resp)
	return body["error"]
}

type createResponse struct {
	ID        string `json:"id"`
	MagicLink string `json:"magic_link"`
	Capacity  int    `json:"capacity"`
}

type joinResponse struct {
	Token string `json:"token"`
}

func createRoom(t *testing.T, e *env, password string, capacity int) createResponse {
	t.Helper()
	resp := e.post(t, "/api/rooms", map[string]any{"password": password, "capacity": capacity})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[createResponse](t, resp)
}

func TestCreateRoom(t *testing.T) {
	e := newEnv(t)

	room := createRoom(t, e, "s3cret!", 2)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, 2, room.Capacity)
	assert.Contains(t, room.MagicLink, "http://example.test/api/resolve/")
	// The magic link never embeds the room id directly
	assert.NotContains(t, room.MagicLink, room.ID)
}

func TestCreateRoomRejectsMissingPassword(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/api/rooms", map[string]any{"capacity": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "PASSWORD_REQUIRED", errorCode(t, resp))
}

func TestCreateRoomRejectsBadCapacity(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/api/rooms", map[string]any{"password": "s3cret!", "capacity": 99})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_CAPACITY", errorCode(t, resp))
}

func TestResolveMagicLink(t *testing.T) {
	e := newEnv(t)
	room := createRoom(t, e, "s3cret!", 2)

	token := strings.TrimPrefix(room.MagicLink, "http://example.test")
	resp, err := http.Get(e.server.URL + token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, room.ID, body["id"])
	assert.Equal(t, false, body["archived"])

	resp, err = http.Get(e.server.URL + "/api/resolve/not-a-token")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))
}

func TestJoinFlow(t *testing.T) {
	e := newEnv(t)
	room := createRoom(t, e, "s3cret!", 2)

	// Wrong password
	resp := e.post(t, "/api/rooms/"+room.ID+"/join", map[string]any{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_PASSWORD", errorCode(t, resp))

	// Unknown room
	resp = e.post(t, "/api/rooms/00000000-0000-0000-0000-000000000000/join", map[string]any{"password": "s3cret!"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Correct password yields a verifiable session token bound to the room
	resp = e.post(t, "/api/rooms/"+room.ID+"/join", map[string]any{"password": "s3cret!", "display_name": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	join := decode[joinResponse](t, resp)
	require.NotEmpty(t, join.Token)

	claims, err := e.tokens.Verify(join.Token)
	require.NoError(t, err)
	assert.Equal(t, room.ID, claims.RoomID)
	assert.Equal(t, "alice", claims.DisplayName)
}

func TestJoinFullRoom(t *testing.T) {
	e := newEnv(t)
	room := createRoom(t, e, "s3cret!", 2)
	roomID := mustUUID(t, room.ID)

	// Fill the room with two connected participants
	_, _, err := e.registry.Connect(context.Background(), roomID, "c1", "1", nopSubscriber{})
	require.NoError(t, err)
	_, _, err = e.registry.Connect(context.Background(), roomID, "c2", "2", nopSubscriber{})
	require.NoError(t, err)

	// Even the correct password is refused while the room is full
	resp := e.post(t, "/api/rooms/"+room.ID+"/join", map[string]any{"password": "s3cret!"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "ROOM_FULL", errorCode(t, resp))

	// A slot opens and the same request succeeds
	e.registry.Disconnect(roomID, "c2", "2")
	resp = e.post(t, "/api/rooms/"+room.ID+"/join", map[string]any{"password": "s3cret!"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJoinArchivedRoom(t *testing.T) {
	e := newEnv(t)
	room := createRoom(t, e, "s3cret!", 2)
	roomID := mustUUID(t, room.ID)

	require.NoError(t, e.store.MarkArchived(context.Background(), roomID, "archives/x.log.enc.json", "AES-256-GCM"))

	resp := e.post(t, "/api/rooms/"+room.ID+"/join", map[string]any{"password": "s3cret!"})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "ROOM_ARCHIVED", errorCode(t, resp))
}

func TestUploadRequiresToken(t *testing.T) {
	e := newEnv(t)
	room := createRoom(t, e, "s3cret!", 2)

	body, contentType := multipartFile(t, "cat.png", []byte("pngbytes"))
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/rooms/"+room.ID+"/upload", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUploadAndFetchMedia(t *testing.T) {
	e := newEnv(t)
	room := createRoom(t, e, "s3cret!", 2)
	roomID := mustUUID(t, room.ID)

	// Join over HTTP, then attach the session like the websocket would
	resp := e.post(t, "/api/rooms/"+room.ID+"/join", map[string]any{"password": "s3cret!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	join := decode[joinResponse](t, resp)
	claims, err := e.tokens.Verify(join.Token)
	require.NoError(t, err)
	sessionKey := strconv.FormatInt(claims.SessionID, 10)
	_, _, err = e.registry.Connect(context.Background(), roomID, "conn-1", sessionKey, nopSubscriber{})
	require.NoError(t, err)

	body, contentType := multipartFile(t, "cat.png", []byte("pngbytes"))
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/rooms/"+room.ID+"/upload", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+join.Token)

	uploadResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, uploadResp.StatusCode)
	upload := decode[map[string]any](t, uploadResp)
	assert.Equal(t, "cat.png", upload["name"])

	// The media message landed in the transcript
	msgs, err := e.store.ListMessages(context.Background(), roomID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "media", msgs[0].Kind)
	assert.Contains(t, msgs[0].Content, "cat.png")

	// Fetch it back with the same token
	fetchReq, err := http.NewRequest(http.MethodGet, e.server.URL+"/api/rooms/"+room.ID+"/media/cat.png", nil)
	require.NoError(t, err)
	fetchReq.Header.Set("Authorization", "Bearer "+join.Token)

	fetchResp, err := http.DefaultClient.Do(fetchReq)
	require.NoError(t, err)
	defer fetchResp.Body.Close()
	assert.Equal(t, http.StatusOK, fetchResp.StatusCode)

	// And without a token it is refused
	plain, err := http.Get(e.server.URL + "/api/rooms/" + room.ID + "/media/cat.png")
	require.NoError(t, err)
	defer plain.Body.Close()
	assert.Equal(t, http.StatusForbidden, plain.StatusCode)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
}

type nopSubscriber struct{}

func (nopSubscriber) TrySend(registry.Event) error { return nil }

func multipartFile(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func mustUUID(t *testing.T, s string) (id uuid.UUID) {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
