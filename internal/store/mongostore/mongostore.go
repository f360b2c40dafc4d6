// Package mongostore implements internal/store.Store against MongoDB.
// Collections mirror the original schema's names (classes, users,
// pending_sends, parser_cursors); the day-replace operation uses a
// Mongo session transaction so Reconciler's add/remove never leaves the
// collection half-updated, and the full-resync query is expressed as a
// single aggregation pipeline ($unwind the user's groups, $lookup
// matching classes) rather than an application-side join.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/store"
)

const (
	defaultClassesCollection      = "classes"
	defaultUsersCollection        = "users"
	defaultPendingSendsCollection = "pending_sends"
	defaultCursorsCollection      = "parser_cursors"
	defaultTimeout                = 10 * time.Second
)

// Options configures a Store.
type Options struct {
	Client   *mongo.Client
	Database string
	Timeout  time.Duration
}

// Store is a MongoDB-backed store.Store.
type Store struct {
	client       *mongo.Client
	classes      *mongo.Collection
	users        *mongo.Collection
	pendingSends *mongo.Collection
	cursors      *mongo.Collection
	timeout      time.Duration
}

var _ store.Store = (*Store)(nil)

// New connects to the given database and ensures indexes exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db := opts.Client.Database(opts.Database)
	s := &Store{
		client:       opts.Client,
		classes:      db.Collection(defaultClassesCollection),
		users:        db.Collection(defaultUsersCollection),
		pendingSends: db.Collection(defaultPendingSendsCollection),
		cursors:      db.Collection(defaultCursorsCollection),
		timeout:      timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongostore: ensuring indexes: %w", err)
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.classes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "range.start", Value: 1}},
	}); err != nil {
		return err
	}
	if _, err := s.classes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "groups.code", Value: 1}},
	}); err != nil {
		return err
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "groups.code", Value: 1}},
	}); err != nil {
		return err
	}
	if _, err := s.pendingSends.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "class_id", Value: 1}, {Key: "lead_time_ns", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.pendingSends.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "fire_at", Value: 1}},
	}); err != nil {
		return err
	}
	if _, err := s.cursors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// WithinTransaction runs fn inside a Mongo session transaction.
// Reconciler's replace-day step is the only caller — it needs the
// added-insert and removed-delete to commit atomically, or neither.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongostore: starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return nil, fn(sessCtx)
	})
	return err
}
