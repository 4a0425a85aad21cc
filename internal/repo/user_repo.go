package repo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/blogware/user-sync-service/internal/domain"
)

// UpsertUser writes all provided fields unconditionally, keyed by clerk_id.
// Replaying the same event is a no-op apart from updated_at: the upsert is a
// single atomic FindOneAndUpdate, so concurrent deliveries cannot create
// duplicates. created_at and is_admin are only written on insert.
func (s *Store) UpsertUser(ctx context.Context, f domain.UserFields) (*domain.User, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"email":           f.Email,
			"first_name":      f.FirstName,
			"last_name":       f.LastName,
			"username":        f.Username,
			"profile_picture": f.ProfilePicture,
			"updated_at":      now,
		},
		"$setOnInsert": bson.M{
			"clerk_id":   f.ClerkID,
			"is_admin":   false,
			"created_at": now,
		},
	}

	res := s.users.FindOneAndUpdate(ctx,
		bson.M{"clerk_id": f.ClerkID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var u domain.User
	if err := res.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the record if present. A missing record is not an
// error: deletion webhooks can arrive more than once.
func (s *Store) DeleteUser(ctx context.Context, clerkID string) error {
	_, err := s.users.DeleteOne(ctx, bson.M{"clerk_id": clerkID})
	return err
}

func (s *Store) FindUserByClerkID(ctx context.Context, clerkID string) (*domain.User, error) {
	var u domain.User
	err := s.users.FindOne(ctx, bson.M{"clerk_id": clerkID}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
