// Package store defines the persistence contract every other component
// depends on. internal/store/mongostore implements it against MongoDB;
// internal/store/memstore implements it in-process for unit tests, since
// a live Mongo server cannot run inside `go test`.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/model"
)

// ErrNotFound is returned by single-item lookups that found nothing.
var ErrNotFound = errors.New("store: not found")

// ResyncPair is one (user, class) membership edge produced by
// FullResyncPairs: user is subscribed to one of class's groups.
type ResyncPair struct {
	User  model.User
	Class model.StoredClass
}

// Store is the persistence contract for the whole scraper: the
// reconciled schedule, subscriber records, and the materialized
// pending-notification table.
type Store interface {
	// WithinTransaction runs fn inside a single multi-document
	// transaction, committing on a nil return and aborting otherwise.
	// Reconciler's day replace is the only caller that needs this.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// DayClasses returns every stored class whose Range.Start falls
	// within the UTC calendar day containing day.
	DayClasses(ctx context.Context, day time.Time) ([]model.StoredClass, error)
	// InsertClasses adds new classes for a day, inside a transaction
	// started by the caller via WithinTransaction.
	InsertClasses(ctx context.Context, classes []model.Class) ([]model.StoredClass, error)
	// DeleteClasses removes the given stored classes, inside a
	// transaction started by the caller via WithinTransaction.
	DeleteClasses(ctx context.Context, ids []string) error
	// ClassByID looks up a single stored class by its storage id.
	ClassByID(ctx context.Context, id string) (model.StoredClass, error)

	// Cursor returns the named parser cursor, or ErrNotFound if it has
	// never been saved.
	Cursor(ctx context.Context, name string) (model.ParserCursor, error)
	// SaveCursor upserts a parser cursor by name.
	SaveCursor(ctx context.Context, cursor model.ParserCursor) error

	// UsersInGroup returns every user subscribed to the given group code.
	UsersInGroup(ctx context.Context, groupCode string) ([]model.User, error)
	// User looks up a single user by id, or ErrNotFound.
	User(ctx context.Context, id string) (model.User, error)

	// ClassesInGroups returns every stored class containing any of the
	// given group codes and starting after the given instant. Backs
	// NotificationPlanner's UserUpdate handler, which needs "every
	// future class this user's groups touch" without the full
	// cross-product FullResyncPairs computes for every user.
	ClassesInGroups(ctx context.Context, groups []string, after time.Time) ([]model.StoredClass, error)

	// FullResyncPairs returns every (user, class) pair where the user is
	// subscribed to one of the class's groups and the class is still in
	// the future. Backs NotificationPlanner's periodic full resync.
	FullResyncPairs(ctx context.Context, now time.Time) ([]ResyncPair, error)

	// UpsertPendingSend inserts or replaces a pending send keyed by
	// (UserID, ClassID, LeadTime).
	UpsertPendingSend(ctx context.Context, ps model.PendingSend) error
	// DeletePendingSendsForUser removes every pending send for a user,
	// used when a user's subscriptions change and are about to be
	// recomputed from scratch.
	DeletePendingSendsForUser(ctx context.Context, userID string) error
	// DeletePendingSendsForClass removes every pending send referencing
	// a class, used when that class is cancelled.
	DeletePendingSendsForClass(ctx context.Context, classID string) (affectedUserIDs []string, err error)
	// DueSends returns every pending send with FireAt <= asOf.
	DueSends(ctx context.Context, asOf time.Time) ([]model.PendingSend, error)
	// DeleteSends removes pending sends by id — Dispatcher calls this
	// with exactly the ids DueSends just returned.
	DeleteSends(ctx context.Context, ids []string) error
	// DeleteStaleSends removes any pending send whose FireAt is before
	// olderThan without having been picked up by DueSends — a sweep of
	// past-due rows that will never fire.
	DeleteStaleSends(ctx context.Context, olderThan time.Time) error
}
