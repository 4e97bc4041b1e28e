// Package domain defines the versioned tag-bag records, their tag policies,
// the validators guarding mutations and the persistence contracts used by gennotes.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, revisions and persistence buckets.
const (
	// EntityVariant identifies a genomic variant record.
	EntityVariant EntityType = "variant"
	// EntityRelation identifies a typed assertion about one or more variants.
	EntityRelation EntityType = "relation"
)

// Action enumerates the mutations captured in the revision log.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// OAuth scopes consulted by core operations.
const (
	ScopeCommitEdit = "commit-edit"
	ScopeUsername   = "username"
	ScopeEmail      = "email"
)

// Base contains common fields for all domain records.
type Base struct {
	ID int64 `json:"id"`
	// Version is the per-record revision number: 1 after create, +1 per mutation.
	Version   int64     `json:"current_version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Variant is an identifiable genomic position described entirely by tags.
type Variant struct {
	Base
	Tags Tags `json:"tags"`
}

// B37ID returns the derived identifier like "b37-1-883516-G-A", or "" when
// one of the composite key tags is missing.
func (v Variant) B37ID() string {
	key, ok := VariantKeyOf(v.Tags)
	if !ok {
		return ""
	}
	return key.String()
}

// Relation is a typed fact about or between variants. VariantIDs are
// non-owning references fixed at creation.
type Relation struct {
	Base
	Tags       Tags    `json:"tags"`
	VariantIDs []int64 `json:"variant_ids"`
}

// References reports whether the relation names the variant.
func (r Relation) References(variantID int64) bool {
	for _, id := range r.VariantIDs {
		if id == variantID {
			return true
		}
	}
	return false
}

// Author identifies the user credited with a revision.
type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Revision is an immutable snapshot taken at every mutation. A revision with
// Deleted set is the tombstone for its record.
type Revision struct {
	ID        int64      `json:"id"`
	Entity    EntityType `json:"entity"`
	RecordID  int64      `json:"record_id"`
	Version   int64      `json:"version"`
	Action    Action     `json:"action"`
	Tags      Tags       `json:"tags"`
	Author    Author     `json:"author"`
	Comment   string     `json:"comment"`
	Timestamp time.Time  `json:"timestamp"`
	Deleted   bool       `json:"deleted"`
}

// Change describes one record mutation inside a transaction. Version and Tags
// are the post-change values; for deletes Tags holds the final tags and
// Version the tombstone version.
type Change struct {
	Entity   EntityType
	Action   Action
	RecordID int64
	Version  int64
	Tags     Tags
}

// Actor is the authenticated caller passed explicitly into every mutating operation.
type Actor struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Scopes   []string `json:"-"`
}

// HasScope reports whether the actor was granted scope.
func (a Actor) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if strings.EqualFold(s, scope) {
			return true
		}
	}
	return false
}

// Author returns the revision author for the actor.
func (a Actor) Author() Author {
	return Author{ID: a.ID, Username: a.Username}
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool {
	return a.ID == 0 && a.Username == ""
}
