package posts

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

// Post identifiers are 24 lowercase hex characters. The shape is disjoint
// from every slug the resolver can produce (the resolver refuses to emit a
// slug matching it), so a lookup token parses unambiguously as one or the
// other.
var idPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// NewID returns a fresh random post identifier. IDs are never recycled;
// deleting a post permanently retires its id.
func NewID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken beyond recovery.
		panic("posts: cannot read random bytes: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// IsID reports whether token has the exact lexical shape of a post
// identifier. Tokens that do not match are treated as slugs.
func IsID(token string) bool {
	return idPattern.MatchString(token)
}
