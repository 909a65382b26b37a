package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell/inkwell-backend/internal/auth"
	"github.com/inkwell/inkwell-backend/internal/config"
	gdb "github.com/inkwell/inkwell-backend/internal/db"
	"github.com/inkwell/inkwell-backend/internal/metrics"
	"github.com/inkwell/inkwell-backend/internal/posts"
	"github.com/inkwell/inkwell-backend/internal/store"
	"github.com/inkwell/inkwell-backend/internal/uploads"
	"github.com/inkwell/inkwell-backend/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	metricsOnce sync.Once
	testMetrics *metrics.Metrics
)

// sharedMetrics returns one metrics instance for all tests; the prometheus
// exporter registers collectors globally and cannot be set up twice.
func sharedMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	metricsOnce.Do(func() {
		m, _, err := metrics.Setup("inkwell-api-test")
		if err != nil {
			t.Fatalf("metrics setup: %v", err)
		}
		testMetrics = m
	})
	return testMetrics
}

type testEnv struct {
	router *chi.Mux
	tokens *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop().Sugar()
	m := sharedMetrics(t)

	db := gdb.NewInMemoryDatabase()
	ctx := context.Background()
	require.NoError(t, gdb.ConnectAndMigrate(ctx, db, gdb.AllSchemas()))

	cache, err := store.NewCache("", logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	uploadStore, err := uploads.NewStorage(t.TempDir(), 1024*1024)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:      "test",
		HTTPAddr: ":0",
		Uploads:  config.UploadsConfig{Dir: uploadStore.Dir(), MaxSizeBytes: 1024 * 1024},
	}

	postSvc := posts.NewService(db, logger, m)
	userSvc := users.NewService(db, logger)
	tokens := auth.NewManager("test-secret", time.Hour)

	handler := NewHandler(postSvc, userSvc, tokens, cache, uploadStore, db, cfg, logger)
	mw := NewMiddleware(logger, m, tokens, cache)
	router := handler.Routes(mw, nil, []string{"http://localhost:3000"}, 6000)

	return &testEnv{router: router, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, email string) (string, UserDTO) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/auth/register", "", RegisterRequest{
		Username: username,
		Email:    email,
		Password: "sup3rsecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User
}

func (e *testEnv) createPost(t *testing.T, token, title string) PostDTO {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/posts", token, CreatePostRequest{
		Title:   title,
		Content: "Content long enough to pass validation.",
		Tags:    []string{"testing"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post PostDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	return post
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var dto ReadyDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "ready", dto.Status)
	assert.Equal(t, "ok", dto.Checks["database"])
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	token, user := env.register(t, "hwriter", "hannah@example.com")
	assert.Equal(t, "hwriter", user.Username)

	// The issued token authenticates /me.
	rec := env.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me UserDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, user.ID, me.ID)

	// Login with the same credentials.
	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", LoginRequest{
		Email:    "hannah@example.com",
		Password: "sup3rsecret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong password is a 401.
	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", LoginRequest{
		Email:    "hannah@example.com",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "hwriter", "hannah@example.com")

	rec := env.do(t, http.MethodPost, "/v1/auth/register", "", RegisterRequest{
		Username: "hwriter",
		Email:    "other@example.com",
		Password: "sup3rsecret",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "hwriter", "hannah@example.com")

	rec := env.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The revoked token no longer authenticates.
	rec = env.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreatePostRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/posts", "", CreatePostRequest{
		Title:   "No Auth Post",
		Content: "Content long enough to pass validation.",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/posts", "garbage-token", CreatePostRequest{
		Title:   "No Auth Post",
		Content: "Content long enough to pass validation.",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndGetPost(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.register(t, "hwriter", "hannah@example.com")

	post := env.createPost(t, token, "Hello, World!")
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, user.ID, post.AuthorID)

	// Fetch by slug.
	rec := env.do(t, http.MethodGet, "/v1/posts/hello-world", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var bySlug PostDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bySlug))
	assert.Equal(t, post.ID, bySlug.ID)

	// Fetch by id.
	rec = env.do(t, http.MethodGet, "/v1/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var byID PostDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byID))
	assert.Equal(t, post.Slug, byID.Slug)
}

func TestGetPostNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/posts/never-written", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "POST_NOT_FOUND", errResp.Code)
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "hwriter", "hannah@example.com")

	rec := env.do(t, http.MethodPost, "/v1/posts", token, CreatePostRequest{
		Title:   "Hi",
		Content: "Content long enough to pass validation.",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
}

func TestListPosts(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "hwriter", "hannah@example.com")

	for i := 0; i < 12; i++ {
		env.createPost(t, token, fmt.Sprintf("Numbered Post %02d", i))
		time.Sleep(time.Millisecond)
	}

	rec := env.do(t, http.MethodGet, "/v1/posts?page=1&pageSize=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list PostListDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Posts, 10)
	assert.Equal(t, int64(12), list.TotalPosts)
	assert.Equal(t, 2, list.TotalPages)
	assert.Equal(t, 1, list.CurrentPage)
	assert.Equal(t, "Numbered Post 11", list.Posts[0].Title)

	rec = env.do(t, http.MethodGet, "/v1/posts?page=2&pageSize=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Posts, 2)
}

func TestUpdatePost(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "hwriter", "hannah@example.com")
	post := env.createPost(t, token, "Before The Rename")

	newTitle := "After The Rename"
	rec := env.do(t, http.MethodPatch, "/v1/posts/"+post.ID, token, UpdatePostRequest{Title: &newTitle})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated PostDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "After The Rename", updated.Title)
	assert.Equal(t, "after-the-rename", updated.Slug)
	// Untouched fields survive.
	assert.Equal(t, post.Content, updated.Content)
	assert.Equal(t, post.Tags, updated.Tags)
}

func TestUpdatePostForbiddenForNonAuthor(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.register(t, "hwriter", "hannah@example.com")
	otherToken, _ := env.register(t, "gexplorer", "george@example.com")

	post := env.createPost(t, ownerToken, "Owned By Hannah")

	newTitle := "Hijacked Title"
	rec := env.do(t, http.MethodPatch, "/v1/posts/"+post.ID, otherToken, UpdatePostRequest{Title: &newTitle})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/posts/"+post.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "hwriter", "hannah@example.com")
	post := env.createPost(t, token, "Doomed Post")

	rec := env.do(t, http.MethodDelete, "/v1/posts/"+post.Slug, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/posts/"+post.Slug, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/posts/"+post.Slug, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePostMultipartWithImage(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "hwriter", "hannah@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Post With An Image"))
	require.NoError(t, mw.WriteField("content", "Content long enough to pass validation."))
	require.NoError(t, mw.WriteField("tags", "photos,travel"))

	fw, err := mw.CreateFormFile("featuredImage", "cover.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\nfakeimagedata"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post PostDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "post-with-an-image", post.Slug)
	assert.Equal(t, []string{"photos", "travel"}, post.Tags)
	assert.Contains(t, post.FeaturedImage, "/uploads/featuredImage-")

	// The stored image is served back.
	rec = env.do(t, http.MethodGet, post.FeaturedImage, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "hwriter", "hannah@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("featuredImage", "payload.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "UNSUPPORTED_TYPE", errResp.Code)
}
