package reconciler_test

import (
	"context"
	"testing"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/reconciler"
	"github.com/hdbg/pjatkbot-go/internal/store/memstore"
)

func class(name string, start time.Time) model.Class {
	return model.Class{
		Name:     name,
		Code:     "CODE-1",
		Kind:     model.KindLecture,
		Lecturer: "Dr. Test",
		Range:    model.TimeRange{Start: start, End: start.Add(90 * time.Minute)},
		Place:    model.ClassPlace{Kind: model.PlaceOnSite, Room: "101"},
		Groups:   []model.Group{{Code: "WIs I.1"}},
	}
}

func TestReconcileDayInsertsNewClasses(t *testing.T) {
	ms := memstore.New()
	r := reconciler.New(ms)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	delta, err := r.ReconcileDay(context.Background(), []model.Class{class("Algorithms", day.Add(9*time.Hour))})
	if err != nil {
		t.Fatalf("ReconcileDay: %v", err)
	}
	if len(delta.Added) != 1 || len(delta.Removed) != 0 {
		t.Fatalf("expected 1 added, 0 removed, got %+v", delta)
	}

	stored, err := ms.DayClasses(context.Background(), day)
	if err != nil {
		t.Fatalf("DayClasses: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored class, got %d", len(stored))
	}
}

func TestReconcileDayIsIdempotent(t *testing.T) {
	ms := memstore.New()
	r := reconciler.New(ms)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	c := class("Algorithms", day.Add(9*time.Hour))

	if _, err := r.ReconcileDay(context.Background(), []model.Class{c}); err != nil {
		t.Fatalf("first ReconcileDay: %v", err)
	}

	delta, err := r.ReconcileDay(context.Background(), []model.Class{c})
	if err != nil {
		t.Fatalf("second ReconcileDay: %v", err)
	}
	if !delta.Empty() {
		t.Fatalf("expected empty delta on re-reconcile, got %+v", delta)
	}
}

func TestReconcileDayRemovesVanishedClasses(t *testing.T) {
	ms := memstore.New()
	r := reconciler.New(ms)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	c := class("Algorithms", day.Add(9*time.Hour))

	if _, err := r.ReconcileDay(context.Background(), []model.Class{c}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	delta, err := r.ReconcileDay(context.Background(), []model.Class{class("Databases", day.Add(11*time.Hour))})
	if err != nil {
		t.Fatalf("ReconcileDay: %v", err)
	}
	if len(delta.Added) != 1 || len(delta.Removed) != 1 {
		t.Fatalf("expected 1 added, 1 removed, got %+v", delta)
	}
	if delta.Removed[0].Class.Name != "Algorithms" {
		t.Fatalf("expected Algorithms removed, got %s", delta.Removed[0].Class.Name)
	}
}

func TestReconcileDayEmptyParsedIsNoop(t *testing.T) {
	ms := memstore.New()
	r := reconciler.New(ms)

	delta, err := r.ReconcileDay(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReconcileDay: %v", err)
	}
	if !delta.Empty() {
		t.Fatalf("expected empty delta for empty input, got %+v", delta)
	}
}
