package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micropost-be/internal/api"
	"micropost-be/internal/database"
	"micropost-be/internal/geoip"
	"micropost-be/internal/models"
	"micropost-be/internal/monitoring"
	"micropost-be/internal/services"
	"micropost-be/internal/websocket"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"city":"Oslo","region":"Oslo","country":"NO"}`))
	}))
	t.Cleanup(geoSrv.Close)

	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	geoClient := geoip.NewClient(geoSrv.URL, 2*time.Second)
	eventService := services.NewEventService(db, nil)
	userService := services.NewUserService(db, geoClient, eventService)
	postService := services.NewPostService(db, eventService)
	statUpdater := monitoring.NewStatUpdater(db, nil)

	return api.NewRouter(websocket.NewHub(), userService, postService, eventService, statUpdater)
}

func do(t *testing.T, router *chi.Mux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func register(t *testing.T, router *chi.Mux, username, email string) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/register/", "", map[string]string{
		"username": username, "email": email, "password": "pw123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]string
	decode(t, rec, &resp)
	require.NotEmpty(t, resp["access_token"])
	return resp["access_token"]
}

func TestRegisterLoginAndLikeScenario(t *testing.T) {
	router := newTestRouter(t)

	aliceToken := register(t, router, "alice", "a@x.com")
	bobToken := register(t, router, "bob", "b@x.com")

	// Alice creates a post.
	rec := do(t, router, http.MethodPost, "/posts/", aliceToken, map[string]string{
		"name": "hi", "text": "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post models.Post
	decode(t, rec, &post)
	assert.EqualValues(t, 1, post.ID)
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, []string{}, post.Likes)

	// Bob likes it.
	rec = do(t, router, http.MethodPost, "/posts/1/like/", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/posts/1/", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &post)
	assert.Equal(t, []string{"bob"}, post.Likes)
	assert.Equal(t, 1, post.LikeCount)

	// A second like from Bob is declined.
	rec = do(t, router, http.MethodPost, "/posts/1/like/", bobToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp map[string]string
	decode(t, rec, &errResp)
	assert.Equal(t, "You have already liked this post", errResp["error"])

	// Unlike, then unlike again.
	rec = do(t, router, http.MethodDelete, "/posts/1/like/", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodDelete, "/posts/1/like/", bobToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &errResp)
	assert.Equal(t, "You have not liked this post", errResp["error"])
}

func TestAuthRequiredOnPosts(t *testing.T) {
	router := newTestRouter(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/posts/"},
		{http.MethodPost, "/posts/"},
		{http.MethodGet, "/posts/1/"},
		{http.MethodPost, "/posts/1/like/"},
		{http.MethodGet, "/events/"},
		{http.MethodGet, "/me/"},
	} {
		rec := do(t, router, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}

	rec := do(t, router, http.MethodGet, "/posts/", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/register/", "", map[string]string{
		"username": "alice", "email": "not-an-email", "password": "pw123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp map[string]string
	decode(t, rec, &errResp)
	assert.Equal(t, "Invalid email format", errResp["error"])

	rec = do(t, router, http.MethodPost, "/register/", "", map[string]string{
		"username": "alice", "email": "a@x.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &errResp)
	assert.Equal(t, "All fields are required", errResp["error"])

	// Duplicate signups: the second one fails cleanly.
	register(t, router, "alice", "a@x.com")
	rec = do(t, router, http.MethodPost, "/register/", "", map[string]string{
		"username": "alice", "email": "fresh@x.com", "password": "pw123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &errResp)
	assert.Equal(t, "Username or email already taken", errResp["error"])
}

func TestRegisterGeolocationFailure(t *testing.T) {
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer geoSrv.Close()

	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	defer db.Close()

	eventService := services.NewEventService(db, nil)
	userService := services.NewUserService(db, geoip.NewClient(geoSrv.URL, 2*time.Second), eventService)
	postService := services.NewPostService(db, eventService)
	router := api.NewRouter(websocket.NewHub(), userService, postService, eventService, monitoring.NewStatUpdater(db, nil))

	rec := do(t, router, http.MethodPost, "/register/", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "pw123",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The aborted signup left nothing behind; the name is free to retry.
	var users int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&users))
	assert.Equal(t, 0, users)
}

func TestLoginFailures(t *testing.T) {
	router := newTestRouter(t)
	register(t, router, "alice", "a@x.com")

	wrongPassword := do(t, router, http.MethodPost, "/login/", "", map[string]string{
		"username": "alice", "password": "nope",
	})
	unknownUser := do(t, router, http.MethodPost, "/login/", "", map[string]string{
		"username": "nobody", "password": "pw123",
	})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	// Identical body for both, so usernames can't be probed.
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())

	rec := do(t, router, http.MethodPost, "/login/", "", map[string]string{
		"username": "alice", "password": "pw123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp["access_token"])
}

func TestUpdateDeleteOwnershipOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	aliceToken := register(t, router, "alice", "a@x.com")
	bobToken := register(t, router, "bob", "b@x.com")

	rec := do(t, router, http.MethodPost, "/posts/", aliceToken, map[string]string{
		"name": "hi", "text": "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPut, "/posts/1/", bobToken, map[string]string{
		"name": "stolen", "text": "mine now",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, router, http.MethodDelete, "/posts/1/", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodPut, "/posts/1/", aliceToken, map[string]string{
		"name": "renamed", "text": "still mine",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, "/posts/1/", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	decode(t, rec, &resp)
	assert.Equal(t, "Post deleted successfully", resp["message"])

	rec = do(t, router, http.MethodGet, "/posts/1/", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostValidationOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router, "alice", "a@x.com")

	longName := make([]byte, 101)
	for i := range longName {
		longName[i] = 'a'
	}
	rec := do(t, router, http.MethodPost, "/posts/", token, map[string]string{
		"name": string(longName), "text": "hello",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp map[string]string
	decode(t, rec, &errResp)
	assert.Equal(t, "Name must be at most 100 characters", errResp["error"])

	rec = do(t, router, http.MethodPost, "/posts/", token, map[string]string{
		"name": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeAndEventsEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router, "alice", "a@x.com")

	rec := do(t, router, http.MethodGet, "/me/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User    models.User        `json:"user"`
		Profile models.UserProfile `json:"profile"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "alice", me.User.Username)
	assert.Equal(t, "Oslo", me.Profile.City)
	assert.Equal(t, "NO", me.Profile.Country)

	do(t, router, http.MethodPost, "/posts/", token, map[string]string{"name": "hi", "text": "hello"})

	rec = do(t, router, http.MethodGet, "/events/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.Event
	decode(t, rec, &events)
	require.NotEmpty(t, events)

	types := make(map[string]bool)
	for _, event := range events {
		types[event.Type] = true
	}
	assert.True(t, types["user.register"])
	assert.True(t, types["post.create"])
}
