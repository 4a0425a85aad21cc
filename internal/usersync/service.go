package usersync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blogware/user-sync-service/internal/domain"
	"github.com/blogware/user-sync-service/internal/log"
	"github.com/blogware/user-sync-service/internal/queue"
)

// Store is the persistence surface the sync service needs. *repo.Store
// implements it; tests substitute an in-memory fake.
type Store interface {
	EnsureConnected(ctx context.Context) error
	UpsertUser(ctx context.Context, f domain.UserFields) (*domain.User, error)
	DeleteUser(ctx context.Context, clerkID string) error
}

type Service struct {
	Store    Store
	Events   queue.Publisher
	Exchange string
}

func NewService(store Store, events queue.Publisher, exchange string) *Service {
	if events == nil {
		events = queue.NewNoop()
	}
	return &Service{Store: store, Events: events, Exchange: exchange}
}

// CreateOrUpdateUser upserts the user keyed by clerk_id and returns the
// persisted record. Store failures propagate to the caller; the event
// publish is best-effort.
func (s *Service) CreateOrUpdateUser(ctx context.Context, f domain.UserFields, reqID string) (*domain.User, error) {
	if err := s.Store.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	u, err := s.Store.UpsertUser(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := s.Events.Publish(ctx, s.Exchange, queue.KeyUserSynced, queue.UserSynced{
		UserID:   u.ID,
		ClerkID:  u.ClerkID,
		Email:    u.Email,
		Username: u.Username,
		SyncedAt: time.Now().UTC(),
	}, reqID); err != nil {
		log.L.Warn("publish user.synced", zap.String("clerk_id", u.ClerkID), zap.Error(err))
	}
	return u, nil
}

// DeleteUser removes the mirrored record. Deleting an unknown id succeeds.
func (s *Service) DeleteUser(ctx context.Context, clerkID, reqID string) error {
	if err := s.Store.EnsureConnected(ctx); err != nil {
		return err
	}
	if err := s.Store.DeleteUser(ctx, clerkID); err != nil {
		return err
	}

	if err := s.Events.Publish(ctx, s.Exchange, queue.KeyUserDeleted, queue.UserDeleted{
		ClerkID:   clerkID,
		DeletedAt: time.Now().UTC(),
	}, reqID); err != nil {
		log.L.Warn("publish user.deleted", zap.String("clerk_id", clerkID), zap.Error(err))
	}
	return nil
}
