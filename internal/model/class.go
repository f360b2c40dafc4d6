// Package model holds the domain types shared by every component of the
// scraper: classes scraped from the portal, the users subscribed to them,
// and the pending notifications derived from the two.
package model

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"time"
)

// ClassKind identifies the pedagogical form of a scheduled class.
type ClassKind string

const (
	KindLecture       ClassKind = "lecture"
	KindSeminar       ClassKind = "seminar"
	KindDiplomaThesis ClassKind = "diploma_thesis"
)

// PlaceKind distinguishes an online class from one held in a physical room.
type PlaceKind string

const (
	PlaceOnline PlaceKind = "online"
	PlaceOnSite PlaceKind = "on_site"
)

// ClassPlace is where a class happens. Room is only meaningful when Kind
// is PlaceOnSite.
type ClassPlace struct {
	Kind PlaceKind
	Room string
}

// TimeRange is a class's start and end instants, always stored in UTC.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Group is a single student group code, e.g. "WIs I.1".
type Group struct {
	Code string
}

// Class is a single scheduled teaching block as scraped from the portal,
// for one calendar day. Two Class values with identical fields are the
// same class even if they were scraped independently — see ContentHash.
type Class struct {
	Name     string
	Code     string
	Kind     ClassKind
	Lecturer string
	Range    TimeRange
	Place    ClassPlace
	Groups   []Group
}

// ContentHash returns a deterministic digest of the class's content,
// independent of slice ordering. Reconciler uses this as the identity
// for set-difference between a freshly parsed day and the stored one:
// two scrapes of the same class produce the same hash even if the
// portal re-orders the Groups column.
func (c Class) ContentHash() [32]byte {
	groups := make([]string, len(c.Groups))
	for i, g := range c.Groups {
		groups[i] = g.Code
	}
	sort.Strings(groups)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", c.Name, c.Code, c.Kind, c.Lecturer)
	binary.Write(h, binary.BigEndian, c.Range.Start.Unix())
	binary.Write(h, binary.BigEndian, c.Range.End.Unix())
	fmt.Fprintf(h, "%s\x00%s\x00", c.Place.Kind, c.Place.Room)
	for _, g := range groups {
		fmt.Fprintf(h, "%s\x00", g)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HasGroup reports whether the class has a group with the given code.
func (c Class) HasGroup(code string) bool {
	for _, g := range c.Groups {
		if g.Code == code {
			return true
		}
	}
	return false
}

// StoredClass pairs a Class with the detached identifier the store
// assigned it. Equality and set-membership for reconciliation always go
// through Class.ContentHash, never through ID — the ID only exists so
// PendingSend and other records can reference a row without duplicating
// its content.
type StoredClass struct {
	ID    string
	Class Class
}
