package scheduleparser

import (
	"fmt"
	"strings"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/model"
)

// deductKind maps the portal's Polish class-type label to our ClassKind.
// An unrecognized label is a hard, loud failure: a new class type means
// the portal introduced something this parser has never seen, and
// silently dropping it would corrupt every user's schedule rather than
// just failing one parse cycle.
func deductKind(label string) (model.ClassKind, error) {
	switch strings.TrimSpace(label) {
	case "Wykład", "Lektorat":
		return model.KindLecture, nil
	case "Ćwiczenia", "Internet - ćwiczenia":
		return model.KindSeminar, nil
	case "Projekt dyplomowy":
		return model.KindDiplomaThesis, nil
	default:
		return "", fmt.Errorf("unrecognized class type label %q", label)
	}
}

// deductGroups splits the portal's comma-separated group list.
func deductGroups(label string) []model.Group {
	parts := strings.Split(label, ",")
	groups := make([]model.Group, 0, len(parts))
	for _, p := range parts {
		code := strings.TrimSpace(p)
		if code == "" {
			continue
		}
		groups = append(groups, model.Group{Code: code})
	}
	return groups
}

// deductRange parses the portal's date/start/end labels in Europe/Warsaw
// local time and converts the result to UTC for storage.
func deductRange(dateLabel, startLabel, endLabel string, loc *time.Location) (model.TimeRange, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(dateLabel), loc)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("parsing date %q: %w", dateLabel, err)
	}

	start, err := combineDateTime(day, strings.TrimSpace(startLabel), loc)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("parsing start time %q: %w", startLabel, err)
	}
	end, err := combineDateTime(day, strings.TrimSpace(endLabel), loc)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("parsing end time %q: %w", endLabel, err)
	}

	return model.TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}

func combineDateTime(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(timeLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

// deductPlace decides whether a class is online or on-site. The portal
// never labels this explicitly; instead the class's overview-table cell
// style (roomStyle) paints it a fixed green when the class has no
// physical room.
func deductPlace(roomLabel, roomStyle string) model.ClassPlace {
	if strings.Contains(roomStyle, onlineColorSubstr) {
		return model.ClassPlace{Kind: model.PlaceOnline}
	}
	return model.ClassPlace{Kind: model.PlaceOnSite, Room: strings.TrimSpace(roomLabel)}
}
