package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Every Create/Update/Delete records a
// Change; AppendRevision writes to the append-only revision log in the same scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateVariant(Variant) (Variant, error)
	UpdateVariant(id int64, mutator func(*Variant) error) (Variant, error)
	CreateRelation(Relation) (Relation, error)
	UpdateRelation(id int64, mutator func(*Relation) error) (Relation, error)
	DeleteRelation(id int64) error
	AppendRevision(Revision) (Revision, error)
	Changes() []Change
}

// TransactionView provides read-only access to committed or in-flight state.
type TransactionView interface {
	FindVariant(id int64) (Variant, bool)
	FindVariantByKey(key VariantKey) (Variant, bool)
	// FilterVariants returns the variants matching any lookup, ordered by id.
	FilterVariants(lookups []Lookup) []Variant
	ListVariants() []Variant
	FindRelation(id int64) (Relation, bool)
	ListRelations() []Relation
	RelationsForVariant(variantID int64) []Relation
	// Revisions returns the revision log of one record, oldest first.
	Revisions(kind EntityType, id int64) []Revision
	// CurrentVersion returns the latest revision version of a record, including deleted ones.
	CurrentVersion(kind EntityType, id int64) (int64, bool)
}

// PersistentStore is a minimal abstraction over durable backends. Transactions
// are serialised: a transaction either commits every mutation and revision it
// produced or none of them.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
}
