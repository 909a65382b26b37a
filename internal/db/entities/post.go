package entities

import (
	"time"

	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// Post is a published blog entry. The slug is the public-facing key and is
// globally unique; the id never changes and is never reused.
type Post struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Slug          string    `json:"slug" db:"slug"`
	Content       string    `json:"content" db:"content"`
	FeaturedImage string    `json:"featured_image,omitempty" db:"featured_image"`
	Tags          []string  `json:"tags" db:"tags"`
	AuthorID      string    `json:"author_id" db:"author_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PostFromRecord builds a Post from a repository record.
func PostFromRecord(record map[string]interface{}) *Post {
	p := &Post{}
	p.ID, _ = record["id"].(string)
	p.Title, _ = record["title"].(string)
	p.Slug, _ = record["slug"].(string)
	p.Content, _ = record["content"].(string)
	if img, ok := record["featured_image"].(string); ok {
		p.FeaturedImage = img
	}
	if tags, ok := record["tags"].([]string); ok {
		p.Tags = tags
	}
	p.AuthorID, _ = record["author_id"].(string)
	if t, ok := record["created_at"].(time.Time); ok {
		p.CreatedAt = t
	}
	if t, ok := record["updated_at"].(time.Time); ok {
		p.UpdatedAt = t
	}
	return p
}

// PostSchema defines the database schema for posts. The unique index on slug
// is the hard guarantee behind slug uniqueness; the resolver's probe loop is
// only an optimization on top of it.
var PostSchema = &interfaces.Schema{
	TableName: "posts",
	Fields: map[string]interfaces.FieldSchema{
		"id": {
			Type:       "string",
			PrimaryKey: true,
		},
		"title": {
			Type: "string",
		},
		"slug": {
			Type:   "string",
			Unique: true,
		},
		"content": {
			Type: "string",
		},
		"featured_image": {
			Type:     "string",
			Nullable: true,
		},
		"tags": {
			Type:     "strings",
			Nullable: true,
		},
		"author_id": {
			Type: "string",
			ForeignKey: &interfaces.ForeignKey{
				Table:    "users",
				Column:   "id",
				OnDelete: "CASCADE",
			},
		},
		"created_at": {
			Type: "time",
		},
		"updated_at": {
			Type: "time",
		},
	},
	Indexes: []interfaces.Index{
		{
			Name:    "idx_posts_slug",
			Columns: []string{"slug"},
			Unique:  true,
		},
		{
			Name:    "idx_posts_author",
			Columns: []string{"author_id"},
		},
		{
			Name:    "idx_posts_created",
			Columns: []string{"created_at"},
		},
	},
}
