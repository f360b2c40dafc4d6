package model

import "time"

// PendingSend is a materialized (user, class, lead time) tuple: a single
// notification that should fire at FireAt unless the owning class is
// removed or the user's subscription changes first.
type PendingSend struct {
	ID       string
	UserID   string
	ClassID  string // StoredClass.ID
	LeadTime time.Duration
	FireAt   time.Time
}

// ParserCursor tracks which calendar day ParserManager last touched, so
// restarts resume scraping forward instead of from the beginning.
type ParserCursor struct {
	Name            string
	LastDayParsed   time.Time
	LastDayReparsed time.Time
}

// ClassDelta is the result of reconciling a freshly parsed day against
// the stored one: the classes that are new and the ones that vanished.
// Both sides carry storage ids — Added's ids come back from the insert
// that happened inside the same transaction.
type ClassDelta struct {
	Added   []StoredClass
	Removed []StoredClass
}

// Empty reports whether the delta has nothing to apply.
func (d ClassDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}
