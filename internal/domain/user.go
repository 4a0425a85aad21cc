package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User mirrors one Clerk account into the blog's users collection.
// ClerkID is the provider's subject id and never changes.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"             json:"id"`
	ClerkID        string             `bson:"clerk_id"                  json:"clerk_id"`
	Email          string             `bson:"email"                     json:"email"`
	FirstName      string             `bson:"first_name"                json:"first_name"`
	LastName       string             `bson:"last_name"                 json:"last_name"`
	Username       string             `bson:"username"                  json:"username"`
	ProfilePicture string             `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"`
	IsAdmin        bool               `bson:"is_admin"                  json:"is_admin"`
	CreatedAt      time.Time          `bson:"created_at"                json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"                json:"updated_at"`
}

// UserFields is the subset of User a webhook delivery is allowed to write.
// IsAdmin is intentionally absent: it belongs to admin tooling, not sync.
type UserFields struct {
	ClerkID        string
	Email          string
	FirstName      string
	LastName       string
	Username       string
	ProfilePicture string
}
