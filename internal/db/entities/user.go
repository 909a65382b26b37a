package entities

import (
	"time"

	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserFromRecord builds a User from a repository record.
func UserFromRecord(record map[string]interface{}) *User {
	u := &User{}
	u.ID, _ = record["id"].(string)
	u.Username, _ = record["username"].(string)
	u.Email, _ = record["email"].(string)
	u.PasswordHash, _ = record["password_hash"].(string)
	u.Role, _ = record["role"].(string)
	if t, ok := record["created_at"].(time.Time); ok {
		u.CreatedAt = t
	}
	if t, ok := record["updated_at"].(time.Time); ok {
		u.UpdatedAt = t
	}
	return u
}

// UserSchema defines the database schema for users.
var UserSchema = &interfaces.Schema{
	TableName: "users",
	Fields: map[string]interfaces.FieldSchema{
		"id": {
			Type:       "string",
			PrimaryKey: true,
		},
		"username": {
			Type:   "string",
			Unique: true,
		},
		"email": {
			Type:   "string",
			Unique: true,
		},
		"password_hash": {
			Type: "string",
		},
		"role": {
			Type:         "string",
			DefaultValue: RoleUser,
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
			Name:    "idx_users_username",
			Columns: []string{"username"},
			Unique:  true,
		},
		{
			Name:    "idx_users_email",
			Columns: []string{"email"},
			Unique:  true,
		},
	},
}
