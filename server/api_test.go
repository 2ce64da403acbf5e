package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"MusicPro/config"
	"MusicPro/core/auth"
	"MusicPro/core/library"
	"MusicPro/model"
	"MusicPro/repository"
	"MusicPro/session"
	"MusicPro/storage"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserRepo is an in-memory UserRepository for exercising the session
// strategy without a database.
type fakeUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*model.User)}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *model.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return 0, fmt.Errorf("create user %s: %w", user.Email, repository.ErrDuplicateUser)
	}
	r.nextID++
	stored := *user
	stored.ID = r.nextID
	r.byEmail[user.Email] = &stored
	return stored.ID, nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

// newTestRouter wires the API the same way Start does, minus the outer
// http.Server, on top of temp-dir backends.
func newTestRouter(t *testing.T, strategy config.Strategy) *mux.Router {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.NewFileStore(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	blobs, err := storage.NewFSStore(dir)
	require.NoError(t, err)

	cfg := &config.Config{
		AuthStrategy:  strategy,
		SessionMaxAge: time.Hour,
		UploadDir:     dir,
	}

	var authorizer auth.Authorizer = auth.TokenAuthorizer{}
	var sessions session.Store
	var userRepo repository.UserRepository
	if strategy == config.StrategySession {
		authorizer = auth.SessionAuthorizer{}
		memStore := session.NewMemoryStore()
		t.Cleanup(memStore.Close)
		sessions = memStore
		userRepo = newFakeUserRepo()
	}

	svc := library.NewService(store, blobs, authorizer, true)
	h := NewAPIHandler(svc, userRepo, sessions, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	if strategy == config.StrategySession {
		router.Use(h.SessionMiddleware)
	}
	protect := func(next http.HandlerFunc) http.HandlerFunc {
		if strategy == config.StrategySession {
			return h.RequireSession(next)
		}
		return next
	}

	router.HandleFunc("/api/upload", protect(h.UploadSongsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/songs", h.ListSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{filename}", h.DeleteSongHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/cover", protect(h.UploadCoverHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lyrics", protect(h.UploadLyricsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lyrics/{filename}", h.GetLyricsHandler).Methods(http.MethodGet)

	if strategy == config.StrategySession {
		router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
		router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
		router.HandleFunc("/api/auth/logout", h.LogoutHandler).Methods(http.MethodPost)
		router.HandleFunc("/api/auth/me", h.MeHandler).Methods(http.MethodGet)
	} else {
		router.PathPrefix("/api/auth/").HandlerFunc(AuthDisabledHandler)
	}

	return router
}

type filePart struct {
	field       string
	filename    string
	contentType string
	content     string
}

// multipartBody builds a multipart form with explicit per-part MIME types,
// which is what the upload handlers validate against.
func multipartBody(t *testing.T, parts []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		header.Set("Content-Type", p.contentType)
		pw, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(router *mux.Router, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body), "body: %s", rr.Body.String())
	return body
}

func uploadSong(t *testing.T, router *mux.Router, name, content string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, []filePart{
		{field: "songs", filename: name, contentType: "audio/mpeg", content: content},
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return do(router, req)
}

func register(t *testing.T, router *mux.Router, email, password string) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	payload := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := do(router, req)
	return rr, rr.Result().Cookies()
}

func TestAPI_TokenFlow(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	rr := uploadSong(t, router, "My Song.mp3", "audio bytes", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, true, body["ok"])

	files := body["files"].([]any)
	require.Len(t, files, 1)
	file := files[0].(map[string]any)
	filename := file["filename"].(string)
	token := file["deleteToken"].(string)
	assert.Regexp(t, `^my-song-\d+\.mp3$`, filename)
	assert.Len(t, token, 64)

	// The listing never carries the secret or its hash.
	rr = do(router, httptest.NewRequest(http.MethodGet, "/api/songs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	listing := rr.Body.String()
	assert.NotContains(t, listing, token)
	assert.NotContains(t, listing, "deleteToken")
	assert.Contains(t, listing, filename)

	// Deletion without the secret fails closed.
	req := httptest.NewRequest(http.MethodDelete, "/api/songs/"+filename, nil)
	rr = do(router, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/songs/"+filename, nil)
	req.Header.Set("Authorization", "Bearer "+strings.Repeat("0", 64))
	rr = do(router, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/songs/"+filename, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Gone means gone, even with the right secret.
	req = httptest.NewRequest(http.MethodDelete, "/api/songs/"+filename, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = do(router, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_UploadRejectsNonAudio(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	body, contentType := multipartBody(t, []filePart{
		{field: "songs", filename: "notes.txt", contentType: "text/plain", content: "hi"},
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := do(router, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decode(t, rr)
	assert.Equal(t, false, resp["ok"])
}

func TestAPI_UploadPartialBatch(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	body, contentType := multipartBody(t, []filePart{
		{field: "songs", filename: "good.mp3", contentType: "audio/mpeg", content: "x"},
		{field: "songs", filename: "bad.txt", contentType: "text/plain", content: "x"},
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := do(router, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode(t, rr)
	assert.Len(t, resp["files"].([]any), 1)
	assert.Len(t, resp["failures"].([]any), 1)
}

func TestAPI_UploadWithoutFiles(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	body, contentType := multipartBody(t, nil, map[string]string{"unrelated": "field"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := do(router, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_AuthEndpointsDisabledUnderTokenStrategy(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{}`))
	rr := do(router, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_CoverAndLyrics(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	rr := uploadSong(t, router, "song.mp3", "x", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	file := decode(t, rr)["files"].([]any)[0].(map[string]any)
	filename := file["filename"].(string)
	base := strings.TrimSuffix(filename, ".mp3")

	body, contentType := multipartBody(t, []filePart{
		{field: "file", filename: "art.jpg", contentType: "image/jpeg", content: "imgbytes"},
	}, map[string]string{"filename": filename})
	req := httptest.NewRequest(http.MethodPost, "/api/cover", body)
	req.Header.Set("Content-Type", contentType)
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decode(t, rr)["file"].(map[string]any)
	assert.Equal(t, "/uploads/covers/"+base+".jpg", rec["coverUrl"])

	body, contentType = multipartBody(t, nil, map[string]string{
		"filename": filename,
		"lyrics":   "some lyric text",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/lyrics", body)
	req.Header.Set("Content-Type", contentType)
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(router, httptest.NewRequest(http.MethodGet, "/api/lyrics/"+base+".txt", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode(t, rr)
	assert.Equal(t, "txt", resp["type"])
	assert.Equal(t, "some lyric text", resp["content"])

	// Lyrics for a song nobody uploaded.
	rr = do(router, httptest.NewRequest(http.MethodGet, "/api/lyrics/nope.txt", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_CoverRejectsNonImage(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	rr := uploadSong(t, router, "song.mp3", "x", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	filename := decode(t, rr)["files"].([]any)[0].(map[string]any)["filename"].(string)

	body, contentType := multipartBody(t, []filePart{
		{field: "file", filename: "evil.exe", contentType: "application/octet-stream", content: "x"},
	}, map[string]string{"filename": filename})
	req := httptest.NewRequest(http.MethodPost, "/api/cover", body)
	req.Header.Set("Content-Type", contentType)
	rr = do(router, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_SessionFlow(t *testing.T) {
	router := newTestRouter(t, config.StrategySession)

	// Anonymous uploads are rejected outright.
	rr := uploadSong(t, router, "song.mp3", "x", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, aliceCookies := register(t, router, "alice@example.com", "secret1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotEmpty(t, aliceCookies)

	// Duplicate registration conflicts.
	rr, _ = register(t, router, "alice@example.com", "other")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = uploadSong(t, router, "song.mp3", "x", aliceCookies)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	file := decode(t, rr)["files"].([]any)[0].(map[string]any)
	filename := file["filename"].(string)
	// No delete secret under the session strategy.
	_, hasToken := file["deleteToken"]
	assert.False(t, hasToken)

	_, bobCookies := register(t, router, "bob@example.com", "secret2")
	require.NotEmpty(t, bobCookies)

	// Bob's valid session does not authorize deleting Alice's file.
	req := httptest.NewRequest(http.MethodDelete, "/api/songs/"+filename, nil)
	for _, c := range bobCookies {
		req.AddCookie(c)
	}
	rr = do(router, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Neither does no session at all.
	rr = do(router, httptest.NewRequest(http.MethodDelete, "/api/songs/"+filename, nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Listing marks ownership per viewer.
	req = httptest.NewRequest(http.MethodGet, "/api/songs", nil)
	for _, c := range aliceCookies {
		req.AddCookie(c)
	}
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	views := decode(t, rr)["files"].([]any)
	require.Len(t, views, 1)
	assert.Equal(t, true, views[0].(map[string]any)["mine"])

	req = httptest.NewRequest(http.MethodDelete, "/api/songs/"+filename, nil)
	for _, c := range aliceCookies {
		req.AddCookie(c)
	}
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestAPI_LoginAndLogout(t *testing.T) {
	router := newTestRouter(t, config.StrategySession)

	_, _ = register(t, router, "carol@example.com", "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"carol@example.com","password":"wrong"}`))
	rr := do(router, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"carol@example.com","password":"hunter2"}`))
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)["user"].(map[string]any)
	assert.Equal(t, "carol@example.com", user["email"])

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// The session is revoked server-side, not just expired in the browser.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = do(router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode(t, rr)["user"])
}

func TestAPI_RegisterValidation(t *testing.T) {
	router := newTestRouter(t, config.StrategySession)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing email", `{"password":"x"}`},
		{"invalid email", `{"email":"not-an-email","password":"x"}`},
		{"missing password", `{"email":"a@b.com"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body))
			rr := do(router, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestAPI_MeAnonymous(t *testing.T) {
	router := newTestRouter(t, config.StrategySession)

	rr := do(router, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode(t, rr)["user"])
}

func TestAPI_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, config.StrategyToken)

	req := httptest.NewRequest(http.MethodOptions, "/api/songs", nil)
	rr := do(router, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
