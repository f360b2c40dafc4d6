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

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func (s *Store) DayClasses(ctx context.Context, day time.Time) ([]model.StoredClass, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start, end := dayBounds(day)
	cur, err := s.classes.Find(ctx, bson.M{
		"range.start": bson.M{"$gte": start, "$lt": end},
	})
	if err != nil {
		return nil, fmt.Errorf("mongostore: DayClasses: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.StoredClass
	for cur.Next(ctx) {
		var doc classDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongostore: DayClasses: decode: %w", err)
		}
		out = append(out, doc.toStoredClass())
	}
	return out, cur.Err()
}

func (s *Store) InsertClasses(ctx context.Context, classes []model.Class) ([]model.StoredClass, error) {
	if len(classes) == 0 {
		return nil, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	docs := make([]any, len(classes))
	for i, c := range classes {
		docs[i] = fromClass(c)
	}
	res, err := s.classes.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("mongostore: InsertClasses: %w", err)
	}

	out := make([]model.StoredClass, len(classes))
	for i, c := range classes {
		id, _ := res.InsertedIDs[i].(bson.ObjectID)
		out[i] = model.StoredClass{ID: id.Hex(), Class: c}
	}
	return out, nil
}

func (s *Store) DeleteClasses(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	objIDs := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return fmt.Errorf("mongostore: DeleteClasses: invalid id %q: %w", id, err)
		}
		objIDs = append(objIDs, oid)
	}
	_, err := s.classes.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	if err != nil {
		return fmt.Errorf("mongostore: DeleteClasses: %w", err)
	}
	return nil
}

func (s *Store) ClassByID(ctx context.Context, id string) (model.StoredClass, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.StoredClass{}, fmt.Errorf("mongostore: ClassByID: invalid id %q: %w", id, err)
	}
	var doc classDoc
	if err := s.classes.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.StoredClass{}, store.ErrNotFound
		}
		return model.StoredClass{}, fmt.Errorf("mongostore: ClassByID: %w", err)
	}
	return doc.toStoredClass(), nil
}

func (s *Store) Cursor(ctx context.Context, name string) (model.ParserCursor, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc cursorDoc
	if err := s.cursors.FindOne(ctx, bson.M{"_id": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.ParserCursor{}, store.ErrNotFound
		}
		return model.ParserCursor{}, fmt.Errorf("mongostore: Cursor: %w", err)
	}
	return doc.toCursor(), nil
}

func (s *Store) SaveCursor(ctx context.Context, cursor model.ParserCursor) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := fromCursor(cursor)
	_, err := s.cursors.UpdateOne(ctx,
		bson.M{"_id": doc.Name},
		bson.M{"$set": bson.M{
			"last_day_parsed":   doc.LastDayParsed,
			"last_day_reparsed": doc.LastDayReparsed,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongostore: SaveCursor: %w", err)
	}
	return nil
}

func (s *Store) UsersInGroup(ctx context.Context, groupCode string) ([]model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.users.Find(ctx, bson.M{"groups.code": groupCode})
	if err != nil {
		return nil, fmt.Errorf("mongostore: UsersInGroup: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongostore: UsersInGroup: decode: %w", err)
		}
		out = append(out, doc.toUser())
	}
	return out, cur.Err()
}

func (s *Store) User(ctx context.Context, id string) (model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, fmt.Errorf("mongostore: User: %w", err)
	}
	return doc.toUser(), nil
}

func (s *Store) ClassesInGroups(ctx context.Context, groups []string, after time.Time) ([]model.StoredClass, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.classes.Find(ctx, bson.M{
		"groups.code":  bson.M{"$in": groups},
		"range.start":  bson.M{"$gt": after},
	})
	if err != nil {
		return nil, fmt.Errorf("mongostore: ClassesInGroups: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.StoredClass
	for cur.Next(ctx) {
		var doc classDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongostore: ClassesInGroups: decode: %w", err)
		}
		out = append(out, doc.toStoredClass())
	}
	return out, cur.Err()
}

// resyncRowDoc is one row of the full-resync aggregation: a user
// document (post-$unwind on groups, so "groups" itself is no longer
// useful and is omitted) joined to one class it matches.
type resyncRowDoc struct {
	ID           string                      `bson:"_id"`
	JoinDate     time.Time                   `bson:"join_date"`
	Role         string                      `bson:"role"`
	Language     string                      `bson:"language"`
	Constraints  []notificationConstraintDoc `bson:"constraints"`
	MatchedClass classDoc                    `bson:"matched_class"`
}

// FullResyncPairs joins every user's groups against every class's
// groups in a single aggregation: $unwind the user's group list so each
// group becomes its own row, $lookup classes whose groups.code matches
// that group, $unwind the match, $match to only future classes. A user
// in two groups that both appear on the same class produces two rows
// from Mongo; those are deduplicated here since the caller only wants
// each (user, class) edge once.
func (s *Store) FullResyncPairs(ctx context.Context, now time.Time) ([]store.ResyncPair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$groups"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         defaultClassesCollection,
			"localField":   "groups.code",
			"foreignField": "groups.code",
			"as":           "matched_classes",
		}}},
		{{Key: "$unwind", Value: "$matched_classes"}},
		{{Key: "$match", Value: bson.M{"matched_classes.range.start": bson.M{"$gte": now}}}},
		{{Key: "$project", Value: bson.M{
			"_id":           1,
			"join_date":     1,
			"role":          1,
			"language":      1,
			"constraints":   1,
			"matched_class": "$matched_classes",
		}}},
	}

	cur, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongostore: FullResyncPairs: %w", err)
	}
	defer cur.Close(ctx)

	seen := map[string]struct{}{}
	var out []store.ResyncPair
	for cur.Next(ctx) {
		var row resyncRowDoc
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("mongostore: FullResyncPairs: decode: %w", err)
		}

		sc := row.MatchedClass.toStoredClass()
		key := row.ID + "|" + sc.ID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		constraints := make([]model.NotificationConstraint, len(row.Constraints))
		for i, c := range row.Constraints {
			constraints[i] = model.NotificationConstraint{LeadTime: time.Duration(c.LeadTimeNS)}
		}

		out = append(out, store.ResyncPair{
			User: model.User{
				ID:          row.ID,
				JoinDate:    row.JoinDate,
				Role:        model.Role(row.Role),
				Language:    model.Language(row.Language),
				Constraints: constraints,
			},
			Class: sc,
		})
	}
	return out, cur.Err()
}

func (s *Store) UpsertPendingSend(ctx context.Context, ps model.PendingSend) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"user_id":      ps.UserID,
		"class_id":     ps.ClassID,
		"lead_time_ns": int64(ps.LeadTime),
	}
	update := bson.M{
		"$set": bson.M{"fire_at": ps.FireAt},
		"$setOnInsert": bson.M{
			"user_id":      ps.UserID,
			"class_id":     ps.ClassID,
			"lead_time_ns": int64(ps.LeadTime),
		},
	}
	_, err := s.pendingSends.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: UpsertPendingSend: %w", err)
	}
	return nil
}

func (s *Store) DeletePendingSendsForUser(ctx context.Context, userID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.pendingSends.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("mongostore: DeletePendingSendsForUser: %w", err)
	}
	return nil
}

func (s *Store) DeletePendingSendsForClass(ctx context.Context, classID string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.pendingSends.Find(ctx, bson.M{"class_id": classID})
	if err != nil {
		return nil, fmt.Errorf("mongostore: DeletePendingSendsForClass: find: %w", err)
	}
	seen := map[string]struct{}{}
	var affected []string
	for cur.Next(ctx) {
		var doc pendingSendDoc
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, fmt.Errorf("mongostore: DeletePendingSendsForClass: decode: %w", err)
		}
		if _, ok := seen[doc.UserID]; !ok {
			seen[doc.UserID] = struct{}{}
			affected = append(affected, doc.UserID)
		}
	}
	cur.Close(ctx)
	if err := cur.Err(); err != nil {
		return nil, err
	}

	if _, err := s.pendingSends.DeleteMany(ctx, bson.M{"class_id": classID}); err != nil {
		return nil, fmt.Errorf("mongostore: DeletePendingSendsForClass: delete: %w", err)
	}
	return affected, nil
}

func (s *Store) DueSends(ctx context.Context, asOf time.Time) ([]model.PendingSend, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.pendingSends.Find(ctx, bson.M{"fire_at": bson.M{"$lte": asOf}})
	if err != nil {
		return nil, fmt.Errorf("mongostore: DueSends: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.PendingSend
	for cur.Next(ctx) {
		var doc pendingSendDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongostore: DueSends: decode: %w", err)
		}
		out = append(out, doc.toPendingSend())
	}
	return out, cur.Err()
}

func (s *Store) DeleteSends(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	objIDs := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return fmt.Errorf("mongostore: DeleteSends: invalid id %q: %w", id, err)
		}
		objIDs = append(objIDs, oid)
	}
	_, err := s.pendingSends.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	if err != nil {
		return fmt.Errorf("mongostore: DeleteSends: %w", err)
	}
	return nil
}

func (s *Store) DeleteStaleSends(ctx context.Context, olderThan time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.pendingSends.DeleteMany(ctx, bson.M{"fire_at": bson.M{"$lt": olderThan}})
	if err != nil {
		return fmt.Errorf("mongostore: DeleteStaleSends: %w", err)
	}
	return nil
}
