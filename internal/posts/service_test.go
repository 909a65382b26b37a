package posts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inkwell/inkwell-backend/internal/db/backends/memory"
	"github.com/inkwell/inkwell-backend/internal/db/entities"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := memory.NewDatabase()
	ctx := context.Background()
	require.NoError(t, db.Connect(ctx))
	require.NoError(t, db.Migrate(ctx, []*interfaces.Schema{entities.UserSchema, entities.PostSchema}))

	// Posts reference their author, so seed one.
	userRepo := db.Repository(entities.UserSchema)
	_, err := userRepo.Create(ctx, map[string]interface{}{
		"id":            "author-1",
		"username":      "author",
		"email":         "author@example.com",
		"password_hash": "x",
		"role":          entities.RoleUser,
	})
	require.NoError(t, err)
	_, err = userRepo.Create(ctx, map[string]interface{}{
		"id":            "author-2",
		"username":      "other",
		"email":         "other@example.com",
		"password_hash": "x",
		"role":          entities.RoleUser,
	})
	require.NoError(t, err)

	return NewService(db, zap.NewNop().Sugar(), nil)
}

func validInput(title string) CreateInput {
	return CreateInput{
		Title:   title,
		Content: "Some content long enough to pass validation.",
		Tags:    []string{"testing"},
	}
}

func TestCreateDerivesSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, "author-1", validInput("Hello, World!"))
	require.NoError(t, err)

	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, "Hello, World!", post.Title)
	assert.Equal(t, "author-1", post.AuthorID)
	assert.True(t, IsID(post.ID), "post id %q must have the identifier shape", post.ID)
	assert.False(t, post.CreatedAt.IsZero())
	assert.False(t, post.UpdatedAt.IsZero())
}

func TestCreateSameTitleGetsSuffixedSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "author-1", validInput("Repeated Title"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, "author-2", validInput("Repeated Title"))
	require.NoError(t, err)
	third, err := svc.Create(ctx, "author-1", validInput("Repeated Title"))
	require.NoError(t, err)

	assert.Equal(t, "repeated-title", first.Slug)
	assert.Equal(t, "repeated-title-1", second.Slug)
	assert.Equal(t, "repeated-title-2", third.Slug)
}

func TestCreateConcurrentSameTitle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	const writers = 6

	results := make([]*entities.Post, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Create(ctx, "author-1", validInput("Race For The Slug"))
		}(i)
	}
	wg.Wait()

	slugs := make(map[string]struct{})
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i], "writer %d", i)
		require.NotNil(t, results[i])
		assert.True(t, strings.HasPrefix(results[i].Slug, "race-for-the-slug"))

		_, dup := slugs[results[i].Slug]
		assert.False(t, dup, "slug %q assigned twice", results[i].Slug)
		slugs[results[i].Slug] = struct{}{}
	}
	assert.Len(t, slugs, writers)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	testCases := []struct {
		name  string
		input CreateInput
		field string
	}{
		{"missing title", CreateInput{Content: "valid content here"}, "title"},
		{"short title", CreateInput{Title: "Hi", Content: "valid content here"}, "title"},
		{"long title", CreateInput{Title: strings.Repeat("a", 201), Content: "valid content here"}, "title"},
		{"whitespace only title", CreateInput{Title: "     ", Content: "valid content here"}, "title"},
		{"missing content", CreateInput{Title: "Valid Title"}, "content"},
		{"short content", CreateInput{Title: "Valid Title", Content: "too short"}, "content"},
		{"long content", CreateInput{Title: "Valid Title", Content: strings.Repeat("a", 10001)}, "content"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "author-1", tc.input)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreateTitleBoundsAreRunes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Five multibyte runes satisfy the minimum even though the byte count
	// suggests much more.
	post, err := svc.Create(ctx, "author-1", validInput("日記日記日"))
	require.NoError(t, err)
	assert.Equal(t, "post", post.Slug)
}

func TestGetByIDAndBySlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Lookup Target"))
	require.NoError(t, err)

	byID, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	bySlug, err := svc.Get(ctx, "lookup-target")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing-slug")
	assert.ErrorIs(t, err, ErrNotFound)

	// An id-shaped token that matches nothing is a miss, not a slug lookup.
	_, err = svc.Get(ctx, NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePartialFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", CreateInput{
		Title:         "Original Title",
		Content:       "Original content of the post.",
		Tags:          []string{"one"},
		FeaturedImage: "/uploads/featuredImage-1.png",
	})
	require.NoError(t, err)

	newContent := "Replacement content for the post."
	updated, err := svc.Update(ctx, "author-1", created.ID, UpdateInput{Content: &newContent})
	require.NoError(t, err)

	assert.Equal(t, "Original Title", updated.Title)
	assert.Equal(t, newContent, updated.Content)
	assert.Equal(t, []string{"one"}, updated.Tags)
	assert.Equal(t, "/uploads/featuredImage-1.png", updated.FeaturedImage)
	// Content-only updates never touch the slug.
	assert.Equal(t, created.Slug, updated.Slug)
}

func TestUpdateClearsFeaturedImage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", CreateInput{
		Title:         "Image Post",
		Content:       "Original content of the post.",
		FeaturedImage: "/uploads/featuredImage-2.png",
	})
	require.NoError(t, err)

	empty := ""
	updated, err := svc.Update(ctx, "author-1", created.ID, UpdateInput{FeaturedImage: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.FeaturedImage)
}

func TestUpdateTitleRederivesSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Before Rename"))
	require.NoError(t, err)
	assert.Equal(t, "before-rename", created.Slug)

	newTitle := "After Rename"
	updated, err := svc.Update(ctx, "author-1", created.ID, UpdateInput{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "after-rename", updated.Slug)

	// The old slug is freed for future posts.
	fresh, err := svc.Create(ctx, "author-1", validInput("Before Rename"))
	require.NoError(t, err)
	assert.Equal(t, "before-rename", fresh.Slug)
}

func TestUpdateSameTitleKeepsSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Slug Keeper"))
	require.NoError(t, err)

	sameTitle := "Slug Keeper"
	updated, err := svc.Update(ctx, "author-1", created.ID, UpdateInput{Title: &sameTitle})
	require.NoError(t, err)
	assert.Equal(t, created.Slug, updated.Slug)
}

func TestUpdateRefreshesUpdatedAt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Timestamp Post"))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	newContent := "Replacement content for the post."
	updated, err := svc.Update(ctx, "author-1", created.ID, UpdateInput{Content: &newContent})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestUpdateForbiddenForNonAuthor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Owned Post"))
	require.NoError(t, err)

	newContent := "Replacement content for the post."
	_, err = svc.Update(ctx, "author-2", created.ID, UpdateInput{Content: &newContent})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateValidatesChangedFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Validated Post"))
	require.NoError(t, err)

	shortTitle := "Hi"
	_, err = svc.Update(ctx, "author-1", created.ID, UpdateInput{Title: &shortTitle})
	assert.True(t, IsValidation(err), "expected validation error, got %v", err)

	shortContent := "nope"
	_, err = svc.Update(ctx, "author-1", created.ID, UpdateInput{Content: &shortContent})
	assert.True(t, IsValidation(err), "expected validation error, got %v", err)
}

func TestDeleteOnlyByAuthor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Deletable Post"))
	require.NoError(t, err)

	err = svc.Delete(ctx, "author-2", created.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Delete(ctx, "author-1", created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, created.Slug)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBySlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "author-1", validInput("Slug Deletion"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "author-1", "slug-deletion"))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPagination(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := svc.Create(ctx, "author-1", validInput(fmt.Sprintf("Numbered Post %02d", i)))
		require.NoError(t, err)
		time.Sleep(time.Millisecond) // distinct creation times for stable ordering
	}

	page, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, int64(25), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)

	// Newest first.
	assert.Equal(t, "Numbered Post 24", page.Items[0].Title)

	last, err := svc.List(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, last.Items, 5)
	assert.Equal(t, "Numbered Post 04", last.Items[0].Title)

	// Pages past the end are empty, not an error.
	beyond, err := svc.List(ctx, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, int64(25), beyond.TotalCount)
}

func TestListClampsPageArguments(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, "author-1", validInput(fmt.Sprintf("Clamp Post %d", i)))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = svc.List(ctx, -5, 100000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, maxPageSize, page.PageSize)
}

func TestNilTagsStoredAsEmptySlice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, "author-1", CreateInput{
		Title:   "Tagless Post",
		Content: "Content without any tags attached.",
	})
	require.NoError(t, err)
	assert.NotNil(t, post.Tags)
	assert.Empty(t, post.Tags)
}
