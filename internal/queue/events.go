package queue

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Routing keys on the user.events exchange.
const (
	KeyUserSynced  = "user.synced"
	KeyUserDeleted = "user.deleted"
)

// UserSynced is emitted after a Clerk user is mirrored into Mongo.
type UserSynced struct {
	UserID   primitive.ObjectID `json:"user_id"`
	ClerkID  string             `json:"clerk_id"`
	Email    string             `json:"email"`
	Username string             `json:"username"`
	SyncedAt time.Time          `json:"synced_at"`
}

// UserDeleted is emitted after a user is removed.
type UserDeleted struct {
	ClerkID   string    `json:"clerk_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
