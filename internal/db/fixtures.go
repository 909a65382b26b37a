package db

import (
	"github.com/inkwell/inkwell-backend/internal/db/entities"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// UserFixtures provides sample accounts for seeding. The password hashes are
// bcrypt digests of "changeme" and only intended for local development.
var UserFixtures = []map[string]interface{}{
	{
		"username":      "hwriter",
		"email":         "hannah@example.com",
		"password_hash": "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		"role":          entities.RoleUser,
	},
	{
		"username":      "gexplorer",
		"email":         "george@example.com",
		"password_hash": "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		"role":          entities.RoleUser,
	},
	{
		"username":      "siteadmin",
		"email":         "admin@example.com",
		"password_hash": "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		"role":          entities.RoleAdmin,
	},
}

// PostFixtures provides sample posts for seeding. Slugs are pre-derived from
// the titles so seeding does not depend on the resolver.
func PostFixtures(authorIDs []string) []map[string]interface{} {
	if len(authorIDs) == 0 {
		return []map[string]interface{}{}
	}

	secondAuthor := authorIDs[0]
	if len(authorIDs) > 1 {
		secondAuthor = authorIDs[1]
	}

	return []map[string]interface{}{
		{
			"title":     "Getting Started with Inkwell",
			"slug":      "getting-started-with-inkwell",
			"content":   "This is the first post on a fresh Inkwell installation. Edit or delete it, then start writing!",
			"tags":      []string{"meta", "welcome"},
			"author_id": authorIDs[0],
		},
		{
			"title":     "Ten Places to Write About",
			"slug":      "ten-places-to-write-about",
			"content":   "Travel writing starts with a list. Here are ten places worth a thousand words each...",
			"tags":      []string{"travel", "lists"},
			"author_id": secondAuthor,
		},
		{
			"title":     "On Keeping a Notebook",
			"slug":      "on-keeping-a-notebook",
			"content":   "The habit of writing things down changes what you notice. A notebook is a net for ideas...",
			"tags":      []string{"craft"},
			"author_id": authorIDs[0],
		},
	}
}

// AllSchemas returns all entity schemas for migration.
func AllSchemas() []*interfaces.Schema {
	return []*interfaces.Schema{
		entities.UserSchema,
		entities.PostSchema,
	}
}
