package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"go.uber.org/zap"
)

// maxSlugProbes caps the suffix search so adversarial input (many posts with
// colliding titles) cannot spin the resolver unbounded.
const maxSlugProbes = 50

// fallbackSlug is used when a title normalizes to nothing, e.g. a title made
// entirely of punctuation.
const fallbackSlug = "post"

// Slugify normalizes a title into a lowercase, hyphen-delimited base slug.
// Runs of non-alphanumeric characters collapse to a single hyphen; leading
// and trailing hyphens are trimmed.
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}

	return b.String()
}

// Resolver derives globally unique slugs against the post collection. It is
// read-only: callers persist the returned slug themselves, and the store's
// unique index on slug remains the final arbiter under concurrent writes.
type Resolver struct {
	repo   interfaces.Repository
	logger *zap.SugaredLogger
}

// NewResolver creates a resolver over the post repository.
func NewResolver(repo interfaces.Repository, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns a slug derived from title that no other post currently
// uses. On rename, excludeID is the id of the post being renamed so its own
// slug does not count as a collision. The result is unique at the moment of
// the check only; writers must handle a unique-constraint violation by
// calling Resolve again.
func (r *Resolver) Resolve(ctx context.Context, title, excludeID string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = fallbackSlug
	}

	candidate := base
	for probe := 1; probe <= maxSlugProbes; probe++ {
		// A slug must never look like a post identifier, or id-or-slug
		// lookups would become ambiguous.
		if !IsID(candidate) {
			taken, err := r.taken(ctx, candidate, excludeID)
			if err != nil {
				return "", err
			}
			if !taken {
				if candidate != base {
					r.logger.Debugw("slug collision resolved", "base", base, "slug", candidate)
				}
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, probe)
	}

	return "", fmt.Errorf("%w: exhausted %d candidates for %q", ErrSlugConflict, maxSlugProbes, base)
}

func (r *Resolver) taken(ctx context.Context, slug, excludeID string) (bool, error) {
	where := &interfaces.Filters{
		Conditions: []interfaces.Filter{
			{Field: "slug", Value: slug},
		},
	}
	if excludeID != "" {
		where.Conditions = append(where.Conditions, interfaces.Filter{
			Field:    "id",
			Operator: &interfaces.FilterOperator{Ne: excludeID},
		})
	}

	_, err := r.repo.FindOne(ctx, &interfaces.Query{Where: where})
	if errors.Is(err, interfaces.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("slug lookup: %w", err)
	}
	return true, nil
}
