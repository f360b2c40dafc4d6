package sender

import (
	"fmt"
	"math"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/model"
)

// messageTemplates holds the two notification kinds' format strings per
// language. Neither the teacher nor the rest of the pack import an
// i18n library for anything this small — see DESIGN.md — so this is a
// plain map rather than gotext/go-i18n.
var messageTemplates = map[model.Language]struct {
	scheduled    string
	classDeleted string
}{
	model.LanguageEnglish: {
		scheduled:    "Reminder: %s starts in %d minutes (%s).",
		classDeleted: "Cancelled: %s has been removed from the schedule.",
	},
	model.LanguagePolish: {
		scheduled:    "Przypomnienie: %s zaczyna się za %d minut (%s).",
		classDeleted: "Odwołano: %s zostały usunięte z planu.",
	},
	model.LanguageUkrainian: {
		scheduled:    "Нагадування: %s починається через %d хв (%s).",
		classDeleted: "Скасовано: %s видалено з розкладу.",
	},
	model.LanguageRussian: {
		scheduled:    "Напоминание: %s начинается через %d мин (%s).",
		classDeleted: "Отменено: %s удалены из расписания.",
	},
}

// renderMessage renders ev for lang. now is the instant of rendering —
// the Scheduled message's "starts in N minutes" is always computed
// against it, per spec.md §6's N = round((class.start − now).minutes),
// never against the PendingSend's originally configured lead time: at
// dispatcher poll-interval granularity the two routinely diverge.
func renderMessage(lang model.Language, ev bus.NotificationEvent, now time.Time) string {
	tpl, ok := messageTemplates[lang]
	if !ok {
		tpl = messageTemplates[model.LanguageEnglish]
	}

	switch ev.Kind {
	case bus.NotificationClassDeleted:
		return fmt.Sprintf(tpl.classDeleted, ev.Class.Name)
	case bus.NotificationScheduled:
		minutes := int(math.Round(ev.Class.Range.Start.Sub(now).Minutes()))
		return fmt.Sprintf(tpl.scheduled, ev.Class.Name, minutes, placeLabel(ev.Class.Place))
	default:
		return fmt.Sprintf("%s: %s", ev.Kind, ev.Class.Name)
	}
}

func placeLabel(p model.ClassPlace) string {
	if p.Kind == model.PlaceOnline {
		return "online"
	}
	return "room " + p.Room
}
