// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments and as the transactional engine
// underneath the durable snapshot stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gennotes/pkg/domain"

	"github.com/cockroachdb/errors"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Variant aliases domain.Variant for in-memory persistence operations.
	Variant = domain.Variant
	// Relation aliases domain.Relation.
	Relation = domain.Relation
	// Revision aliases domain.Revision.
	Revision = domain.Revision
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type recordRef struct {
	entity domain.EntityType
	id     int64
}

// Sequences holds the last identifier handed out per counter.
type Sequences struct {
	Variant  int64 `json:"variant"`
	Relation int64 `json:"relation"`
	Revision int64 `json:"revision"`
}

type memoryState struct {
	variants  map[int64]Variant
	relations map[int64]Relation
	// revisions is append-only; clones share the backing array with a capped
	// length so appends inside a transaction never touch committed entries.
	revisions []Revision
	history   map[recordRef][]int
	keys      map[domain.VariantKey]int64
	seq       Sequences
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Variants  map[int64]Variant  `json:"variants"`
	Relations map[int64]Relation `json:"relations"`
	Revisions []Revision         `json:"revisions"`
	Sequences Sequences          `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		variants:  make(map[int64]Variant),
		relations: make(map[int64]Relation),
		history:   make(map[recordRef][]int),
		keys:      make(map[domain.VariantKey]int64),
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		variants:  make(map[int64]Variant, len(s.variants)),
		relations: make(map[int64]Relation, len(s.relations)),
		revisions: s.revisions[:len(s.revisions):len(s.revisions)],
		history:   make(map[recordRef][]int, len(s.history)),
		keys:      make(map[domain.VariantKey]int64, len(s.keys)),
		seq:       s.seq,
	}
	for k, v := range s.variants {
		cloned.variants[k] = cloneVariant(v)
	}
	for k, v := range s.relations {
		cloned.relations[k] = cloneRelation(v)
	}
	for k, v := range s.history {
		cloned.history[k] = v[:len(v):len(v)]
	}
	for k, v := range s.keys {
		cloned.keys[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Variants:  make(map[int64]Variant, len(state.variants)),
		Relations: make(map[int64]Relation, len(state.relations)),
		Revisions: make([]Revision, len(state.revisions)),
		Sequences: state.seq,
	}
	for k, v := range state.variants {
		s.Variants[k] = cloneVariant(v)
	}
	for k, v := range state.relations {
		s.Relations[k] = cloneRelation(v)
	}
	for i, r := range state.revisions {
		s.Revisions[i] = cloneRevision(r)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.seq = s.Sequences
	for k, v := range s.Variants {
		state.variants[k] = cloneVariant(v)
		if key, ok := domain.VariantKeyOf(v.Tags); ok {
			state.keys[key] = k
		}
		if k > state.seq.Variant {
			state.seq.Variant = k
		}
	}
	for k, v := range s.Relations {
		state.relations[k] = cloneRelation(v)
		if k > state.seq.Relation {
			state.seq.Relation = k
		}
	}
	revisions := append([]Revision(nil), s.Revisions...)
	sort.SliceStable(revisions, func(i, j int) bool { return revisions[i].ID < revisions[j].ID })
	for _, r := range revisions {
		state.appendRevision(cloneRevision(r))
		if r.ID > state.seq.Revision {
			state.seq.Revision = r.ID
		}
	}
	return state
}

func (s *memoryState) appendRevision(r Revision) {
	ref := recordRef{entity: r.Entity, id: r.RecordID}
	s.revisions = append(s.revisions, r)
	s.history[ref] = append(s.history[ref], len(s.revisions)-1)
}

func cloneVariant(v Variant) Variant {
	cp := v
	cp.Tags = v.Tags.Clone()
	return cp
}

func cloneRelation(r Relation) Relation {
	cp := r
	cp.Tags = r.Tags.Clone()
	cp.VariantIDs = append([]int64(nil), r.VariantIDs...)
	return cp
}

func cloneRevision(r Revision) Revision {
	cp := r
	cp.Tags = r.Tags.Clone()
	return cp
}

// CommitHook runs inside the store's critical section with the state a
// transaction is about to commit. Returning an error aborts the commit.
type CommitHook func(ctx context.Context, snapshot Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp records and revisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithCommitHook installs a hook that must succeed before state is swapped.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
	hook  CommitHook
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState returns a deep copy of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the committed state with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// transaction represents a mutation set applied to a private copy of the state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces committed state only when fn and the commit hook succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "transaction aborted")
	}
	if s.hook != nil {
		if err := s.hook(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return errors.Wrap(err, "commit hook")
		}
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := newTransactionView(&s.state)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Changes returns the mutations recorded so far, in order.
func (tx *transaction) Changes() []Change {
	out := make([]Change, len(tx.changes))
	for i, c := range tx.changes {
		out[i] = c
		out[i].Tags = c.Tags.Clone()
	}
	return out
}

// CreateVariant stores a new variant and assigns its id.
func (tx *transaction) CreateVariant(v Variant) (Variant, error) {
	key, hasKey := domain.VariantKeyOf(v.Tags)
	if hasKey {
		if _, exists := tx.state.keys[key]; exists {
			return Variant{}, errors.Newf("variant %s already exists", key)
		}
	}
	tx.state.seq.Variant++
	v.ID = tx.state.seq.Variant
	v.Version = 1
	v.CreatedAt = tx.now
	v.UpdatedAt = tx.now
	v.Tags = v.Tags.Clone()
	tx.state.variants[v.ID] = cloneVariant(v)
	if hasKey {
		tx.state.keys[key] = v.ID
	}
	tx.recordChange(Change{Entity: domain.EntityVariant, Action: domain.ActionCreate, RecordID: v.ID, Version: v.Version, Tags: v.Tags.Clone()})
	return cloneVariant(v), nil
}

// UpdateVariant mutates a variant using the provided mutator function.
func (tx *transaction) UpdateVariant(id int64, mutator func(*Variant) error) (Variant, error) {
	current, ok := tx.state.variants[id]
	if !ok {
		return Variant{}, errors.Newf("variant %d not found", id)
	}
	before := cloneVariant(current)
	if err := mutator(&current); err != nil {
		return Variant{}, err
	}
	oldKey, hadKey := domain.VariantKeyOf(before.Tags)
	newKey, hasKey := domain.VariantKeyOf(current.Tags)
	if hasKey && (!hadKey || newKey != oldKey) {
		if other, exists := tx.state.keys[newKey]; exists && other != id {
			return Variant{}, errors.Newf("variant %s already exists", newKey)
		}
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.variants[id] = cloneVariant(current)
	if hadKey {
		delete(tx.state.keys, oldKey)
	}
	if hasKey {
		tx.state.keys[newKey] = id
	}
	tx.recordChange(Change{Entity: domain.EntityVariant, Action: domain.ActionUpdate, RecordID: id, Version: current.Version, Tags: current.Tags.Clone()})
	return cloneVariant(current), nil
}

// CreateRelation stores a new relation; every referenced variant must exist.
func (tx *transaction) CreateRelation(r Relation) (Relation, error) {
	for _, vid := range r.VariantIDs {
		if _, ok := tx.state.variants[vid]; !ok {
			return Relation{}, errors.Newf("variant %d not found", vid)
		}
	}
	tx.state.seq.Relation++
	r.ID = tx.state.seq.Relation
	r.Version = 1
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.relations[r.ID] = cloneRelation(r)
	tx.recordChange(Change{Entity: domain.EntityRelation, Action: domain.ActionCreate, RecordID: r.ID, Version: r.Version, Tags: r.Tags.Clone()})
	return cloneRelation(r), nil
}

// UpdateRelation mutates an existing relation. Variant references are kept.
func (tx *transaction) UpdateRelation(id int64, mutator func(*Relation) error) (Relation, error) {
	current, ok := tx.state.relations[id]
	if !ok {
		return Relation{}, errors.Newf("relation %d not found", id)
	}
	before := cloneRelation(current)
	if err := mutator(&current); err != nil {
		return Relation{}, err
	}
	current.ID = id
	current.VariantIDs = before.VariantIDs
	current.CreatedAt = before.CreatedAt
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.relations[id] = cloneRelation(current)
	tx.recordChange(Change{Entity: domain.EntityRelation, Action: domain.ActionUpdate, RecordID: id, Version: current.Version, Tags: current.Tags.Clone()})
	return cloneRelation(current), nil
}

// DeleteRelation removes a relation. Its revision history is kept.
func (tx *transaction) DeleteRelation(id int64) error {
	current, ok := tx.state.relations[id]
	if !ok {
		return errors.Newf("relation %d not found", id)
	}
	delete(tx.state.relations, id)
	tx.recordChange(Change{Entity: domain.EntityRelation, Action: domain.ActionDelete, RecordID: id, Version: current.Version + 1, Tags: current.Tags.Clone()})
	return nil
}

// AppendRevision assigns the next revision id and timestamp and appends r to the log.
func (tx *transaction) AppendRevision(r Revision) (Revision, error) {
	if r.Entity == "" || r.RecordID == 0 {
		return Revision{}, errors.New("revision requires entity and record id")
	}
	ref := recordRef{entity: r.Entity, id: r.RecordID}
	if idx := tx.state.history[ref]; len(idx) > 0 {
		last := tx.state.revisions[idx[len(idx)-1]]
		if last.Deleted {
			return Revision{}, errors.Newf("%s %d is deleted", r.Entity, r.RecordID)
		}
		if r.Version <= last.Version {
			return Revision{}, errors.Newf("revision version %d for %s %d is not after %d", r.Version, r.Entity, r.RecordID, last.Version)
		}
	}
	tx.state.seq.Revision++
	r.ID = tx.state.seq.Revision
	r.Timestamp = tx.now
	r.Tags = r.Tags.Clone()
	tx.state.appendRevision(r)
	return cloneRevision(r), nil
}

// Read helpers ---------------------------------------------------------------

func (v transactionView) FindVariant(id int64) (Variant, bool) {
	variant, ok := v.state.variants[id]
	if !ok {
		return Variant{}, false
	}
	return cloneVariant(variant), true
}

func (v transactionView) FindVariantByKey(key domain.VariantKey) (Variant, bool) {
	id, ok := v.state.keys[key]
	if !ok {
		return Variant{}, false
	}
	return v.FindVariant(id)
}

// FilterVariants evaluates the OR-combined lookups in a single pass.
func (v transactionView) FilterVariants(lookups []domain.Lookup) []Variant {
	out := make([]Variant, 0, len(lookups))
	if len(lookups) == 0 {
		return out
	}
	for _, variant := range v.state.variants {
		if domain.MatchesAny(lookups, variant) {
			out = append(out, cloneVariant(variant))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListVariants() []Variant {
	out := make([]Variant, 0, len(v.state.variants))
	for _, variant := range v.state.variants {
		out = append(out, cloneVariant(variant))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) FindRelation(id int64) (Relation, bool) {
	r, ok := v.state.relations[id]
	if !ok {
		return Relation{}, false
	}
	return cloneRelation(r), true
}

func (v transactionView) ListRelations() []Relation {
	out := make([]Relation, 0, len(v.state.relations))
	for _, r := range v.state.relations {
		out = append(out, cloneRelation(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) RelationsForVariant(variantID int64) []Relation {
	var out []Relation
	for _, r := range v.state.relations {
		if r.References(variantID) {
			out = append(out, cloneRelation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) Revisions(kind domain.EntityType, id int64) []Revision {
	idx := v.state.history[recordRef{entity: kind, id: id}]
	out := make([]Revision, 0, len(idx))
	for _, i := range idx {
		out = append(out, cloneRevision(v.state.revisions[i]))
	}
	return out
}

func (v transactionView) CurrentVersion(kind domain.EntityType, id int64) (int64, bool) {
	idx := v.state.history[recordRef{entity: kind, id: id}]
	if len(idx) == 0 {
		return 0, false
	}
	return v.state.revisions[idx[len(idx)-1]].Version, true
}
