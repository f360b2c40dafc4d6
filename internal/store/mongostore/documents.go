package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hdbg/pjatkbot-go/internal/model"
)

type groupDoc struct {
	Code string `bson:"code"`
}

type placeDoc struct {
	Kind string `bson:"kind"`
	Room string `bson:"room,omitempty"`
}

type rangeDoc struct {
	Start time.Time `bson:"start"`
	End   time.Time `bson:"end"`
}

type classDoc struct {
	ID       bson.ObjectID `bson:"_id,omitempty"`
	Name     string        `bson:"name"`
	Code     string        `bson:"code"`
	Kind     string        `bson:"kind"`
	Lecturer string        `bson:"lecturer"`
	Range    rangeDoc      `bson:"range"`
	Place    placeDoc      `bson:"place"`
	Groups   []groupDoc    `bson:"groups"`
}

func fromClass(c model.Class) classDoc {
	groups := make([]groupDoc, len(c.Groups))
	for i, g := range c.Groups {
		groups[i] = groupDoc{Code: g.Code}
	}
	return classDoc{
		Name:     c.Name,
		Code:     c.Code,
		Kind:     string(c.Kind),
		Lecturer: c.Lecturer,
		Range:    rangeDoc{Start: c.Range.Start, End: c.Range.End},
		Place:    placeDoc{Kind: string(c.Place.Kind), Room: c.Place.Room},
		Groups:   groups,
	}
}

func (d classDoc) toStoredClass() model.StoredClass {
	groups := make([]model.Group, len(d.Groups))
	for i, g := range d.Groups {
		groups[i] = model.Group{Code: g.Code}
	}
	return model.StoredClass{
		ID: d.ID.Hex(),
		Class: model.Class{
			Name:     d.Name,
			Code:     d.Code,
			Kind:     model.ClassKind(d.Kind),
			Lecturer: d.Lecturer,
			Range:    model.TimeRange{Start: d.Range.Start, End: d.Range.End},
			Place:    model.ClassPlace{Kind: model.PlaceKind(d.Place.Kind), Room: d.Place.Room},
			Groups:   groups,
		},
	}
}

type notificationConstraintDoc struct {
	LeadTimeNS int64 `bson:"lead_time_ns"`
}

type userDoc struct {
	ID          string                      `bson:"_id"`
	JoinDate    time.Time                   `bson:"join_date"`
	Role        string                      `bson:"role"`
	Language    string                      `bson:"language"`
	Groups      []groupDoc                  `bson:"groups"`
	Constraints []notificationConstraintDoc `bson:"constraints"`
}

func (d userDoc) toUser() model.User {
	constraints := make([]model.NotificationConstraint, len(d.Constraints))
	for i, c := range d.Constraints {
		constraints[i] = model.NotificationConstraint{LeadTime: time.Duration(c.LeadTimeNS)}
	}
	groups := make([]model.Group, len(d.Groups))
	for i, g := range d.Groups {
		groups[i] = model.Group{Code: g.Code}
	}
	return model.User{
		ID:          d.ID,
		JoinDate:    d.JoinDate,
		Role:        model.Role(d.Role),
		Language:    model.Language(d.Language),
		Groups:      groups,
		Constraints: constraints,
	}
}

type pendingSendDoc struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"user_id"`
	ClassID    string        `bson:"class_id"`
	LeadTimeNS int64         `bson:"lead_time_ns"`
	FireAt     time.Time     `bson:"fire_at"`
}

func (d pendingSendDoc) toPendingSend() model.PendingSend {
	return model.PendingSend{
		ID:       d.ID.Hex(),
		UserID:   d.UserID,
		ClassID:  d.ClassID,
		LeadTime: time.Duration(d.LeadTimeNS),
		FireAt:   d.FireAt,
	}
}

type cursorDoc struct {
	Name            string    `bson:"_id"`
	LastDayParsed   time.Time `bson:"last_day_parsed"`
	LastDayReparsed time.Time `bson:"last_day_reparsed"`
}

func fromCursor(c model.ParserCursor) cursorDoc {
	return cursorDoc{Name: c.Name, LastDayParsed: c.LastDayParsed, LastDayReparsed: c.LastDayReparsed}
}

func (d cursorDoc) toCursor() model.ParserCursor {
	return model.ParserCursor{Name: d.Name, LastDayParsed: d.LastDayParsed, LastDayReparsed: d.LastDayReparsed}
}
