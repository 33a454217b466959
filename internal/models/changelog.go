package models

import "time"

// Changelog field names written by the lifecycle engine. History queries key
// off these, so they are constants rather than ad-hoc strings.
const (
	FieldStatus = "status"
	FieldSprint = "sprint"
	FieldRank   = "rank"
	FieldEpic   = "epic"
	FieldParent = "parent"
	FieldLink   = "link"
)

// ChangeEntry is one append-only field transition on a work item. Entries are
// never mutated or deleted; together they are the sole source of historical
// truth for the item. Consumers must sort by At before use — insertion order
// from storage is not guaranteed.
type ChangeEntry struct {
	ID       string
	ItemID   string
	Field    string
	OldValue string
	NewValue string
	ActorID  string
	Meta     map[string]string // structural context ("from_status", "linked_key", ...)
	At       time.Time
}
