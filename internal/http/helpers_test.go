package http_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	svix "github.com/svix/svix-webhooks/go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/blogware/user-sync-service/internal/clerk"
	"github.com/blogware/user-sync-service/internal/domain"
	api "github.com/blogware/user-sync-service/internal/http"
	"github.com/blogware/user-sync-service/internal/log"
	"github.com/blogware/user-sync-service/internal/queue"
	"github.com/blogware/user-sync-service/internal/usersync"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// fakeStore is an in-memory usersync.Store keyed by clerk id.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]domain.User
	connects    int
	upserts     int
	failConnect bool
	failUpsert  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]domain.User)}
}

func (f *fakeStore) EnsureConnected(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.failConnect {
		return errors.New("mongo unreachable")
	}
	return nil
}

func (f *fakeStore) UpsertUser(ctx context.Context, fields domain.UserFields) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failUpsert {
		return nil, errors.New("write failed")
	}
	now := time.Now().UTC()
	u, ok := f.users[fields.ClerkID]
	if !ok {
		u = domain.User{ID: primitive.NewObjectID(), ClerkID: fields.ClerkID, CreatedAt: now}
	}
	u.Email = fields.Email
	u.FirstName = fields.FirstName
	u.LastName = fields.LastName
	u.Username = fields.Username
	u.ProfilePicture = fields.ProfilePicture
	u.UpdatedAt = now
	f.users[fields.ClerkID] = u
	return &u, nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, clerkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, clerkID)
	return nil
}

func (f *fakeStore) get(clerkID string) (domain.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[clerkID]
	return u, ok
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type patchCall struct {
	ClerkID  string
	Metadata clerk.PublicMetadata
}

type fakePatcher struct {
	mu    sync.Mutex
	calls []patchCall
	err   error
}

func (f *fakePatcher) PatchPublicMetadata(ctx context.Context, clerkID string, md clerk.PublicMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, patchCall{ClerkID: clerkID, Metadata: md})
	return f.err
}

func (f *fakePatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeDedup is an in-memory http.DeliveryLog.
type fakeDedup struct {
	mu      sync.Mutex
	seen    map[string]bool
	seenErr error
	markErr error
}

func newFakeDedup() *fakeDedup { return &fakeDedup{seen: make(map[string]bool)} }

func (f *fakeDedup) WebhookSeen(ctx context.Context, msgID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenErr != nil {
		return false, f.seenErr
	}
	return f.seen[msgID], nil
}

func (f *fakeDedup) MarkWebhook(ctx context.Context, msgID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.seen[msgID] = true
	return nil
}

func (f *fakeDedup) isSeen(msgID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[msgID]
}

type testEnv struct {
	Store   *fakeStore
	Patcher *fakePatcher
	Dedup   *fakeDedup
	Webhook *svix.Webhook
	Router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if _, err := log.Init(false); err != nil {
		t.Fatalf("log init: %v", err)
	}

	wh, err := svix.NewWebhook(testSecret)
	if err != nil {
		t.Fatalf("svix webhook: %v", err)
	}

	fs := newFakeStore()
	fp := &fakePatcher{}
	fd := newFakeDedup()
	svc := usersync.NewService(fs, queue.NewNoop(), "user.events")
	h := api.NewHandler(svc, wh, fp, fd, nil, time.Hour)

	return &testEnv{Store: fs, Patcher: fp, Dedup: fd, Webhook: wh, Router: api.NewRouter(h)}
}

// deliver signs body with the test secret and posts it like svix would.
func (e *testEnv) deliver(t *testing.T, msgID, body string) *httptest.ResponseRecorder {
	t.Helper()
	now := time.Now()
	sig, err := e.Webhook.Sign(msgID, now, []byte(body))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/webhooks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	e.Router.ServeHTTP(w, req)
	return w
}
