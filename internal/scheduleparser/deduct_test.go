package scheduleparser

import (
	"testing"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/model"
)

func TestDeductKind(t *testing.T) {
	tests := []struct {
		label string
		want  model.ClassKind
	}{
		{"Wykład", model.KindLecture},
		{"Lektorat", model.KindLecture},
		{"Ćwiczenia", model.KindSeminar},
		{"Internet - ćwiczenia", model.KindSeminar},
		{"Projekt dyplomowy", model.KindDiplomaThesis},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := deductKind(tt.label)
			if err != nil {
				t.Fatalf("deductKind(%q) error: %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("deductKind(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestDeductKindUnrecognized(t *testing.T) {
	if _, err := deductKind("Coś nowego"); err == nil {
		t.Fatal("expected error for unrecognized class type")
	}
}

func TestDeductGroups(t *testing.T) {
	got := deductGroups("WIs I.1, WIs I.2,  WIs I.3 ")
	want := []string{"WIs I.1", "WIs I.2", "WIs I.3"}
	if len(got) != len(want) {
		t.Fatalf("deductGroups length = %d, want %d", len(got), len(want))
	}
	for i, g := range got {
		if g.Code != want[i] {
			t.Errorf("deductGroups[%d] = %q, want %q", i, g.Code, want[i])
		}
	}
}

func TestDeductRange(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	rng, err := deductRange("02.03.2026", "09:00:00", "10:30:00", loc)
	if err != nil {
		t.Fatalf("deductRange error: %v", err)
	}

	wantStart := time.Date(2026, 3, 2, 9, 0, 0, 0, loc).UTC()
	if !rng.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", rng.Start, wantStart)
	}
	if rng.End.Sub(rng.Start) != 90*time.Minute {
		t.Errorf("duration = %v, want 90m", rng.End.Sub(rng.Start))
	}
}

func TestDeductPlaceOnline(t *testing.T) {
	place := deductPlace("", "background-color:#3AEB34;color:#000;")
	if place.Kind != model.PlaceOnline {
		t.Errorf("Kind = %v, want %v", place.Kind, model.PlaceOnline)
	}
}

func TestDeductPlaceOnSite(t *testing.T) {
	place := deductPlace(" 101 ", "")
	if place.Kind != model.PlaceOnSite {
		t.Errorf("Kind = %v, want %v", place.Kind, model.PlaceOnSite)
	}
	if place.Room != "101" {
		t.Errorf("Room = %q, want %q", place.Room, "101")
	}
}
