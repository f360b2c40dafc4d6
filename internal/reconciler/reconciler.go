// Package reconciler computes the added/removed diff between a freshly
// parsed day and the classes already stored for it, and applies that
// diff transactionally. It is the only component that writes to the
// classes collection.
package reconciler

import (
	"context"
	"fmt"

	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/store"
)

// Reconciler diffs a parsed day against the persisted one and commits
// the difference in a single transaction.
type Reconciler struct {
	store store.Store
}

// New returns a Reconciler backed by s.
func New(s store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// ReconcileDay computes and applies the delta for the day containing
// parsed[0].Range.Start. An empty parsed slice is a no-op — ScheduleParser
// returning nothing for a day is treated as "nothing changed", never as
// "the whole day was cancelled", since a parse failure upstream would
// otherwise wipe a day's classes.
func (r *Reconciler) ReconcileDay(ctx context.Context, parsed []model.Class) (model.ClassDelta, error) {
	if len(parsed) == 0 {
		return model.ClassDelta{}, nil
	}

	day := parsed[0].Range.Start
	var delta model.ClassDelta

	err := r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		stored, err := r.store.DayClasses(ctx, day)
		if err != nil {
			return fmt.Errorf("reconciler: loading stored day: %w", err)
		}

		dbByHash := make(map[[32]byte]model.StoredClass, len(stored))
		for _, sc := range stored {
			dbByHash[sc.Class.ContentHash()] = sc
		}

		parsedByHash := make(map[[32]byte]model.Class, len(parsed))
		for _, c := range parsed {
			parsedByHash[c.ContentHash()] = c
		}

		var toInsert []model.Class
		for hash, c := range parsedByHash {
			if _, ok := dbByHash[hash]; !ok {
				toInsert = append(toInsert, c)
			}
		}

		var toRemove []model.StoredClass
		var removeIDs []string
		for hash, sc := range dbByHash {
			if _, ok := parsedByHash[hash]; !ok {
				toRemove = append(toRemove, sc)
				removeIDs = append(removeIDs, sc.ID)
			}
		}

		var inserted []model.StoredClass
		if len(toInsert) > 0 {
			inserted, err = r.store.InsertClasses(ctx, toInsert)
			if err != nil {
				return fmt.Errorf("reconciler: inserting added classes: %w", err)
			}
		}
		if len(removeIDs) > 0 {
			if err := r.store.DeleteClasses(ctx, removeIDs); err != nil {
				return fmt.Errorf("reconciler: deleting removed classes: %w", err)
			}
		}

		delta = model.ClassDelta{Added: inserted, Removed: toRemove}
		return nil
	})
	if err != nil {
		return model.ClassDelta{}, err
	}
	return delta, nil
}
