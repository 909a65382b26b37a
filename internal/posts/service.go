package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/inkwell/inkwell-backend/internal/db/entities"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"go.uber.org/zap"
)

// Field length bounds, in runes.
const (
	titleMinLen   = 5
	titleMaxLen   = 200
	contentMinLen = 10
	contentMaxLen = 10000
)

// DefaultPageSize matches the public listing contract.
const (
	DefaultPageSize = 10
	maxPageSize     = 100
)

// maxWriteRetries bounds how often a write is retried after losing a slug
// race to a concurrent creation or rename.
const maxWriteRetries = 3

// Metrics is the subset of metric recording the service needs.
type Metrics interface {
	RecordSlugCollision(ctx context.Context)
	RecordPostCreated(ctx context.Context)
}

type noopMetrics struct{}

func (noopMetrics) RecordSlugCollision(ctx context.Context) {}
func (noopMetrics) RecordPostCreated(ctx context.Context)   {}

// CreateInput carries the fields of a new post. Content is stored as raw
// markup; sanitization is a rendering-time concern, not handled here.
type CreateInput struct {
	Title         string
	Content       string
	Tags          []string
	FeaturedImage string
}

// UpdateInput is a partial update: nil fields keep their stored value. An
// explicitly empty FeaturedImage clears the image reference.
type UpdateInput struct {
	Title         *string
	Content       *string
	Tags          *[]string
	FeaturedImage *string
}

// Page is one page of the post listing, newest first.
type Page struct {
	Items       []*entities.Post
	TotalCount  int64
	TotalPages  int
	CurrentPage int
	PageSize    int
}

// Service owns post identity and mutation: slug derivation, id-or-slug
// resolution, and author-gated update/delete.
type Service struct {
	repo     interfaces.Repository
	resolver *Resolver
	logger   *zap.SugaredLogger
	metrics  Metrics
}

// NewService creates the post service on the given database.
func NewService(database interfaces.Database, logger *zap.SugaredLogger, metrics Metrics) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	repo := database.Repository(entities.PostSchema)
	return &Service{
		repo:     repo,
		resolver: NewResolver(repo, logger),
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolver exposes the slug resolver, mainly for tests.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// List returns posts ordered by creation time descending. Pages below 1 are
// treated as page 1; a non-positive pageSize falls back to the default.
func (s *Service) List(ctx context.Context, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize
	result, err := s.repo.FindMany(ctx, &interfaces.Query{
		OrderBy: []interfaces.OrderBy{{Field: "created_at", Direction: "desc"}},
		Limit:   &pageSize,
		Offset:  &offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	items := make([]*entities.Post, 0, len(result.Data))
	for _, record := range result.Data {
		items = append(items, entities.PostFromRecord(record))
	}

	totalPages := int((result.Total + int64(pageSize) - 1) / int64(pageSize))

	return &Page{
		Items:       items,
		TotalCount:  result.Total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
	}, nil
}

// Get resolves a post by either its identifier or its slug. Tokens with the
// identifier's exact lexical shape are looked up by id, all others by slug.
func (s *Service) Get(ctx context.Context, token string) (*entities.Post, error) {
	var record map[string]interface{}
	var err error

	if IsID(token) {
		record, err = s.repo.GetByID(ctx, interfaces.StringID(token))
	} else {
		record, err = s.repo.FindOne(ctx, &interfaces.Query{
			Where: &interfaces.Filters{
				Conditions: []interfaces.Filter{{Field: "slug", Value: token}},
			},
		})
	}

	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve post %q: %w", token, err)
	}

	return entities.PostFromRecord(record), nil
}

// Create validates the input, derives a unique slug, and persists a new post
// authored by authorID. A slug race lost at write time advances the suffix
// and retries, bounded by maxWriteRetries.
func (s *Service) Create(ctx context.Context, authorID string, input CreateInput) (*entities.Post, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)

	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	for attempt := 0; attempt <= maxWriteRetries; attempt++ {
		slug, err := s.resolver.Resolve(ctx, title, "")
		if err != nil {
			return nil, err
		}

		record := map[string]interface{}{
			"id":        NewID(),
			"title":     title,
			"slug":      slug,
			"content":   content,
			"tags":      tags,
			"author_id": authorID,
		}
		if input.FeaturedImage != "" {
			record["featured_image"] = input.FeaturedImage
		}

		created, err := s.repo.Create(ctx, record)
		if errors.Is(err, interfaces.ErrUniqueConstraint) {
			s.metrics.RecordSlugCollision(ctx)
			s.logger.Warnw("slug race lost on create, retrying",
				"slug", slug, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}

		s.metrics.RecordPostCreated(ctx)
		return entities.PostFromRecord(created), nil
	}

	return nil, ErrSlugConflict
}

// Update applies a partial update to the post resolved from token. Only the
// author may update; the slug is re-derived only when the title actually
// changes, excluding the post's own id from the uniqueness check.
func (s *Service) Update(ctx context.Context, callerID, token string, input UpdateInput) (*entities.Post, error) {
	post, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != callerID {
		return nil, ErrForbidden
	}

	fields := map[string]interface{}{}

	titleChanged := false
	title := post.Title
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		if title != post.Title {
			titleChanged = true
			fields["title"] = title
		}
	}

	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if err := validateContent(content); err != nil {
			return nil, err
		}
		fields["content"] = content
	}

	if input.Tags != nil {
		fields["tags"] = *input.Tags
	}

	if input.FeaturedImage != nil {
		if *input.FeaturedImage == "" {
			fields["featured_image"] = nil
		} else {
			fields["featured_image"] = *input.FeaturedImage
		}
	}

	if !titleChanged {
		// Covers the empty-fields case too: the store still refreshes
		// updated_at, which is the contract for a successful mutation.
		return s.applyUpdate(ctx, post.ID, fields)
	}

	// Title changed: re-derive the slug, retrying if a concurrent write
	// claims the candidate between resolution and persistence.
	for attempt := 0; attempt <= maxWriteRetries; attempt++ {
		slug, err := s.resolver.Resolve(ctx, title, post.ID)
		if err != nil {
			return nil, err
		}
		fields["slug"] = slug

		updated, err := s.applyUpdate(ctx, post.ID, fields)
		if errors.Is(err, interfaces.ErrUniqueConstraint) {
			s.metrics.RecordSlugCollision(ctx)
			s.logger.Warnw("slug race lost on update, retrying",
				"post_id", post.ID, "slug", slug, "attempt", attempt+1)
			continue
		}
		return updated, err
	}

	return nil, ErrSlugConflict
}

func (s *Service) applyUpdate(ctx context.Context, id string, fields map[string]interface{}) (*entities.Post, error) {
	record, err := s.repo.Update(ctx, interfaces.StringID(id), fields)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, interfaces.ErrUniqueConstraint) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", id, err)
	}
	return entities.PostFromRecord(record), nil
}

// Delete permanently removes the post resolved from token. Only the author
// may delete. The id and slug are retired, never reassigned.
func (s *Service) Delete(ctx context.Context, callerID, token string) error {
	post, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if post.AuthorID != callerID {
		return ErrForbidden
	}

	err = s.repo.Delete(ctx, interfaces.StringID(post.ID))
	if errors.Is(err, interfaces.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete post %s: %w", post.ID, err)
	}
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	switch {
	case n == 0:
		return &ValidationError{Field: "title", Message: "title is required"}
	case n < titleMinLen:
		return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at least %d characters", titleMinLen)}
	case n > titleMaxLen:
		return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", titleMaxLen)}
	}
	return nil
}

func validateContent(content string) error {
	n := utf8.RuneCountInString(content)
	switch {
	case n == 0:
		return &ValidationError{Field: "content", Message: "content is required"}
	case n < contentMinLen:
		return &ValidationError{Field: "content", Message: fmt.Sprintf("must be at least %d characters", contentMinLen)}
	case n > contentMaxLen:
		return &ValidationError{Field: "content", Message: fmt.Sprintf("must be at most %d characters", contentMaxLen)}
	}
	return nil
}
