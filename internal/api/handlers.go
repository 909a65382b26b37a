package api

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell/inkwell-backend/internal/auth"
	"github.com/inkwell/inkwell-backend/internal/config"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"github.com/inkwell/inkwell-backend/internal/posts"
	"github.com/inkwell/inkwell-backend/internal/store"
	"github.com/inkwell/inkwell-backend/internal/uploads"
	"github.com/inkwell/inkwell-backend/internal/users"
	"go.uber.org/zap"
)

type Handler struct {
	postSvc  *posts.Service
	userSvc  *users.Service
	tokens   *auth.Manager
	cache    *store.Cache
	uploads  *uploads.Storage
	database interfaces.Database
	config   *config.Config
	logger   *zap.SugaredLogger
}

func NewHandler(
	postSvc *posts.Service,
	userSvc *users.Service,
	tokens *auth.Manager,
	cache *store.Cache,
	uploadStore *uploads.Storage,
	database interfaces.Database,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		postSvc:  postSvc,
		userSvc:  userSvc,
		tokens:   tokens,
		cache:    cache,
		uploads:  uploadStore,
		database: database,
		config:   cfg,
		logger:   logger,
	}
}

// Health endpoints

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "cache": "ok"}
	status := http.StatusOK

	if !h.database.IsHealthy(r.Context()) {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		checks["cache"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	dto := ReadyDTO{Status: "ready", Checks: checks}
	if status != http.StatusOK {
		dto.Status = "not_ready"
	}
	h.writeJSON(w, status, dto)
}

// Auth endpoints

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}

	user, err := h.userSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Errorw("Token issuance failed", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "could not issue token")
		return
	}

	h.writeJSON(w, http.StatusCreated, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		User:      userToDTO(user),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}

	user, err := h.userSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Errorw("Token issuance failed", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "could not issue token")
		return
	}

	h.writeJSON(w, http.StatusOK, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		User:      userToDTO(user),
	})
}

// Logout revokes the presented token until its natural expiry.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}

	remaining := time.Duration(0)
	if claims.ExpiresAt != nil {
		remaining = time.Until(claims.ExpiresAt.Time)
	}
	if err := h.cache.DenyToken(r.Context(), claims.ID, remaining); err != nil {
		h.logger.Errorw("Token revocation failed", "jti", claims.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "LOGOUT_ERROR", "could not revoke token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}

	user, err := h.userSvc.GetByID(r.Context(), claims.UserID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, userToDTO(user))
}

// Post endpoints

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", posts.DefaultPageSize)

	result, err := h.postSvc.List(r.Context(), page, pageSize)
	if err != nil {
		h.writePostError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, postPageToDTO(result))
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	post, err := h.postSvc.Get(r.Context(), identifier)
	if err != nil {
		h.writePostError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, postToDTO(post))
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}

	var input posts.CreateInput
	if isMultipart(r) {
		req, imagePath, err := h.parseMultipartPost(r)
		if err != nil {
			h.writeUploadError(w, err)
			return
		}
		input = posts.CreateInput{
			Title:         req.Title,
			Content:       req.Content,
			Tags:          req.Tags,
			FeaturedImage: imagePath,
		}
	} else {
		var req CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
			return
		}
		input = posts.CreateInput{
			Title:         req.Title,
			Content:       req.Content,
			Tags:          req.Tags,
			FeaturedImage: req.FeaturedImage,
		}
	}

	post, err := h.postSvc.Create(r.Context(), claims.UserID, input)
	if err != nil {
		h.writePostError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, postToDTO(post))
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}
	identifier := chi.URLParam(r, "identifier")

	var input posts.UpdateInput
	if isMultipart(r) {
		req, imagePath, err := h.parseMultipartPost(r)
		if err != nil {
			h.writeUploadError(w, err)
			return
		}
		if req.Title != "" {
			input.Title = &req.Title
		}
		if req.Content != "" {
			input.Content = &req.Content
		}
		if req.Tags != nil {
			input.Tags = &req.Tags
		}
		if imagePath != "" {
			input.FeaturedImage = &imagePath
		}
	} else {
		var req UpdatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
			return
		}
		input = posts.UpdateInput(req)
	}

	post, err := h.postSvc.Update(r.Context(), claims.UserID, identifier, input)
	if err != nil {
		h.writePostError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, postToDTO(post))
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}
	identifier := chi.URLParam(r, "identifier")

	if err := h.postSvc.Delete(r.Context(), claims.UserID, identifier); err != nil {
		h.writePostError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores a standalone image and returns its public path, for
// clients that upload before creating the post.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.config.Uploads.MaxSizeBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form data")
		return
	}

	_, fh, err := r.FormFile("featuredImage")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "MISSING_FILE", "featuredImage file is required")
		return
	}

	path, err := h.uploads.Save(fh)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, UploadResponse{Path: path})
}

// parseMultipartPost reads post fields and an optional featuredImage file
// from a multipart form. Tags may be sent as repeated "tags" fields or one
// comma-separated value.
func (h *Handler) parseMultipartPost(r *http.Request) (CreatePostRequest, string, error) {
	if err := r.ParseMultipartForm(h.config.Uploads.MaxSizeBytes); err != nil {
		return CreatePostRequest{}, "", errMultipartForm
	}

	req := CreatePostRequest{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
	}
	if values := r.MultipartForm.Value["tags"]; len(values) > 0 {
		if len(values) == 1 && strings.Contains(values[0], ",") {
			for _, t := range strings.Split(values[0], ",") {
				if t = strings.TrimSpace(t); t != "" {
					req.Tags = append(req.Tags, t)
				}
			}
		} else {
			req.Tags = values
		}
	}

	var fh *multipart.FileHeader
	if files := r.MultipartForm.File["featuredImage"]; len(files) > 0 {
		fh = files[0]
	}
	if fh == nil {
		return req, "", nil
	}

	path, err := h.uploads.Save(fh)
	if err != nil {
		return CreatePostRequest{}, "", err
	}
	return req, path, nil
}

var errMultipartForm = errors.New("invalid multipart form")

// Utility methods

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}

// writePostError maps post service errors onto HTTP statuses. Internal
// detail stays in the logs.
func (h *Handler) writePostError(w http.ResponseWriter, err error) {
	var verr *posts.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, posts.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "POST_NOT_FOUND", "post not found")
	case errors.Is(err, posts.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "FORBIDDEN", "you do not own this post")
	case errors.Is(err, posts.ErrSlugConflict):
		h.writeError(w, http.StatusConflict, "SLUG_CONFLICT", "could not derive a unique slug, retry the request")
	default:
		h.logger.Errorw("Post operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func (h *Handler) writeUserError(w http.ResponseWriter, err error) {
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	case errors.Is(err, users.ErrUserExists):
		h.writeError(w, http.StatusConflict, "USER_EXISTS", "username or email already registered")
	case errors.Is(err, users.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	default:
		h.logger.Errorw("User operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, uploads.ErrUnsupportedType):
		h.writeError(w, http.StatusBadRequest, "UNSUPPORTED_TYPE", "only jpeg, jpg, png and gif images are accepted")
	case errors.Is(err, uploads.ErrTooLarge):
		h.writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "image exceeds the size limit")
	case errors.Is(err, errMultipartForm):
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form data")
	default:
		h.logger.Errorw("Upload failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "UPLOAD_ERROR", "could not store upload")
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}
