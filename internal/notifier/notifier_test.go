package notifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/notifier"
	"github.com/hdbg/pjatkbot-go/internal/store/memstore"
)

func newPlanner(ms *memstore.Store) (*notifier.Planner, *bus.Topic[bus.NotificationEvent]) {
	outbound := bus.New[bus.NotificationEvent](8)
	p := notifier.New(notifier.Config{
		Store:          ms,
		Updates:        bus.New[bus.UpdateEvent](8),
		Outbound:       outbound,
		ResyncInterval: time.Hour,
	})
	return p, outbound
}

func TestClassAddedSchedulesPendingSendsPerConstraint(t *testing.T) {
	ms := memstore.New()
	ms.SeedUser(model.User{
		ID:          "u1",
		Groups:      []model.Group{{Code: "WIs I.1"}},
		Constraints: []model.NotificationConstraint{{LeadTime: 10 * time.Minute}, {LeadTime: time.Hour}},
	})
	p, _ := newPlanner(ms)

	start := time.Now().Add(2 * time.Hour)
	sc := model.StoredClass{ID: "c1", Class: model.Class{
		Range:  model.TimeRange{Start: start, End: start.Add(90 * time.Minute)},
		Groups: []model.Group{{Code: "WIs I.1"}},
	}}

	if err := p.ClassAdded(context.Background(), sc); err != nil {
		t.Fatalf("ClassAdded: %v", err)
	}

	due, err := ms.DueSends(context.Background(), start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DueSends: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 pending sends, got %d", len(due))
	}
}

func TestClassAddedSkipsConstraintsThatAlreadyElapsed(t *testing.T) {
	ms := memstore.New()
	ms.SeedUser(model.User{
		ID:          "u1",
		Groups:      []model.Group{{Code: "WIs I.1"}},
		Constraints: []model.NotificationConstraint{{LeadTime: 48 * time.Hour}},
	})
	p, _ := newPlanner(ms)

	start := time.Now().Add(time.Hour)
	sc := model.StoredClass{ID: "c1", Class: model.Class{
		Range:  model.TimeRange{Start: start, End: start.Add(time.Hour)},
		Groups: []model.Group{{Code: "WIs I.1"}},
	}}

	if err := p.ClassAdded(context.Background(), sc); err != nil {
		t.Fatalf("ClassAdded: %v", err)
	}

	due, err := ms.DueSends(context.Background(), start.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("DueSends: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no pending sends for an already-elapsed lead time, got %d", len(due))
	}
}

func TestClassRemovedCascadesAndEmitsEvent(t *testing.T) {
	ms := memstore.New()
	ms.SeedUser(model.User{
		ID:          "u1",
		Groups:      []model.Group{{Code: "WIs I.1"}},
		Constraints: []model.NotificationConstraint{{LeadTime: 10 * time.Minute}},
	})
	p, outbound := newPlanner(ms)

	start := time.Now().Add(2 * time.Hour)
	sc := model.StoredClass{ID: "c1", Class: model.Class{
		Name:   "Algorithms",
		Range:  model.TimeRange{Start: start, End: start.Add(time.Hour)},
		Groups: []model.Group{{Code: "WIs I.1"}},
	}}
	if err := p.ClassAdded(context.Background(), sc); err != nil {
		t.Fatalf("ClassAdded: %v", err)
	}

	if err := p.ClassRemoved(context.Background(), sc); err != nil {
		t.Fatalf("ClassRemoved: %v", err)
	}

	due, err := ms.DueSends(context.Background(), start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DueSends: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected cascade delete, got %d pending sends", len(due))
	}

	select {
	case ev := <-outbound.Recv():
		if ev.Kind != bus.NotificationClassDeleted || len(ev.UserIDs) != 1 || ev.UserIDs[0] != "u1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a ClassDeleted event")
	}
}

func TestUserUpdateRecomputesFromScratch(t *testing.T) {
	ms := memstore.New()
	p, _ := newPlanner(ms)

	start := time.Now().Add(2 * time.Hour)
	sc := model.StoredClass{ID: "c1", Class: model.Class{
		Range:  model.TimeRange{Start: start, End: start.Add(time.Hour)},
		Groups: []model.Group{{Code: "WIs I.1"}},
	}}
	if _, err := ms.InsertClasses(context.Background(), []model.Class{sc.Class}); err != nil {
		t.Fatalf("seed class: %v", err)
	}

	u := model.User{
		ID:          "u1",
		Groups:      []model.Group{{Code: "WIs I.1"}},
		Constraints: []model.NotificationConstraint{{LeadTime: 10 * time.Minute}},
	}
	ms.SeedUser(u)

	if err := p.UserUpdate(context.Background(), u); err != nil {
		t.Fatalf("UserUpdate: %v", err)
	}

	due, err := ms.DueSends(context.Background(), start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DueSends: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 pending send after UserUpdate, got %d", len(due))
	}
}

func TestFullResyncConverges(t *testing.T) {
	ms := memstore.New()
	start := time.Now().Add(2 * time.Hour)
	sc := model.StoredClass{Class: model.Class{
		Range:  model.TimeRange{Start: start, End: start.Add(time.Hour)},
		Groups: []model.Group{{Code: "WIs I.1"}},
	}}
	if _, err := ms.InsertClasses(context.Background(), []model.Class{sc.Class}); err != nil {
		t.Fatalf("seed class: %v", err)
	}
	ms.SeedUser(model.User{
		ID:          "u1",
		Groups:      []model.Group{{Code: "WIs I.1"}},
		Constraints: []model.NotificationConstraint{{LeadTime: 10 * time.Minute}},
	})

	p, _ := newPlanner(ms)
	if err := p.FullResync(context.Background(), time.Now()); err != nil {
		t.Fatalf("FullResync: %v", err)
	}

	due, err := ms.DueSends(context.Background(), start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DueSends: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 pending send after resync, got %d", len(due))
	}
}
