package bus

import (
	"time"

	"github.com/hdbg/pjatkbot-go/internal/model"
)

// UpdateKind identifies the reason a class set changed, so subscribers
// can tell a new class from a removed one or a user-preference edit
// without a type switch per payload.
type UpdateKind string

const (
	UpdateClassAdded   UpdateKind = "class_added"
	UpdateClassRemoved UpdateKind = "class_removed"
	UpdateUserChanged  UpdateKind = "user_changed"
)

// UpdateEvent flows from ParserManager/Reconciler to NotificationPlanner.
type UpdateEvent struct {
	Kind  UpdateKind
	Class model.StoredClass // set for UpdateClassAdded / UpdateClassRemoved
	User  model.User        // set for UpdateUserChanged
}

// NotificationKind distinguishes a reminder from a cancellation notice.
type NotificationKind string

const (
	NotificationScheduled    NotificationKind = "scheduled"
	NotificationClassDeleted NotificationKind = "class_deleted"
)

// NotificationEvent flows from NotificationPlanner/Dispatcher to the
// outbound sender.
type NotificationEvent struct {
	Kind    NotificationKind
	UserIDs []string // recipients; always one entry for NotificationScheduled
	Class   model.Class
	// LeadTime is only meaningful for NotificationScheduled: how far
	// before the class start this reminder was requested.
	LeadTime time.Duration
}
