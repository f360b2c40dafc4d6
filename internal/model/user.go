package model

import "time"

// Role is a user's privilege level. No role is checked by this module;
// roles are carried through from the original schema so downstream
// consumers (the chat front end, out of scope here) don't need a
// separate user table.
type Role string

const (
	RoleUser       Role = "user"
	RoleBetaTester Role = "beta_tester"
	RoleAdmin      Role = "admin"
)

// Language is a user's notification language preference.
type Language string

const (
	LanguageEnglish   Language = "en"
	LanguagePolish    Language = "pl"
	LanguageUkrainian Language = "ukr"
	LanguageRussian   Language = "ru"
)

// NotificationConstraint is how long before a class's start a user wants
// to be reminded. Zero means "at the moment it starts."
type NotificationConstraint struct {
	LeadTime time.Duration
}

// User is a subscriber: an external chat identity plus the group codes
// and lead times that drive notification planning. Groups uses the same
// `[]Group{Code}` shape as Class.Groups — the canonical schema the
// source's two diverging planner variants disagreed on — so group
// matching is always a comparison of Code fields, never of differently
// shaped values on either side.
type User struct {
	ID          string
	JoinDate    time.Time
	Role        Role
	Language    Language
	Groups      []Group
	Constraints []NotificationConstraint
}

// InGroup reports whether the user is a member of the given group code.
func (u User) InGroup(code string) bool {
	for _, g := range u.Groups {
		if g.Code == code {
			return true
		}
	}
	return false
}

// GroupCodes returns the user's group codes as plain strings, for
// queries (store.ClassesInGroups) that take a code list rather than a
// []Group.
func (u User) GroupCodes() []string {
	codes := make([]string, len(u.Groups))
	for i, g := range u.Groups {
		codes[i] = g.Code
	}
	return codes
}
