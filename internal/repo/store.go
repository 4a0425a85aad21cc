package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/blogware/user-sync-service/internal/log"
)

type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// Store owns the Mongo connection and the users collection. The connection
// is dialed lazily: the first operation that needs persistence dials,
// concurrent callers share that one attempt through the singleflight group.
type Store struct {
	uri    string
	dbname string

	mu     sync.Mutex
	state  ConnState
	client *mongo.Client
	db     *mongo.Database
	users  *mongo.Collection

	sf singleflight.Group
}

func NewStore(uri, dbname string) *Store {
	return &Store{uri: uri, dbname: dbname}
}

func (s *Store) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureConnected dials on first use and is a cheap no-op afterwards.
// A failed attempt leaves the store Disconnected so the next request retries.
func (s *Store) EnsureConnected(ctx context.Context) error {
	if s.State() == Connected {
		return nil
	}
	_, err, _ := s.sf.Do("connect", func() (interface{}, error) {
		return nil, s.connect(ctx)
	})
	return err
}

func (s *Store) connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Connected {
		s.mu.Unlock()
		return nil
	}
	s.state = Connecting
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		s.state = Disconnected
		s.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(ctx, options.Client().
		ApplyURI(s.uri).
		SetRetryWrites(true).
		SetMaxPoolSize(50),
	)
	if err != nil {
		return fail(err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return fail(err)
	}

	db := cli.Database(s.dbname)
	users := db.Collection("users")
	if err := ensureUserIndexes(ctx, users); err != nil {
		_ = cli.Disconnect(context.Background())
		return fail(err)
	}

	s.mu.Lock()
	s.client = cli
	s.db = db
	s.users = users
	s.state = Connected
	s.mu.Unlock()

	log.L.Info("connected to mongo", zap.String("db", s.dbname))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	cli := s.client
	s.mu.Unlock()
	if cli == nil {
		return errors.New("not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return cli.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	cli := s.client
	s.client = nil
	s.state = Disconnected
	s.mu.Unlock()
	if cli == nil {
		return nil
	}
	return cli.Disconnect(ctx)
}

func ensureUserIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clerk_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_clerk_id"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_username"),
		},
	})
	return err
}

func IsDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}
