package core

import (
	"context"
	"strconv"

	"gennotes/internal/infra/persistence/memory"
	"gennotes/pkg/domain"
)

// Service exposes the versioned, revisioned operations over variants and relations.
type Service struct {
	store PersistentStore
	opts  serviceOptions
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{store: store, opts: o}
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Edit is a decoded update request. Fields lists every top-level field the
// client submitted other than the commit comment.
type Edit struct {
	Fields  []string
	Tags    domain.Tags
	Comment string
}

// VariantView is a variant as served to readers, with its derived identifier
// and the relations that reference it.
type VariantView struct {
	domain.Variant
	B37ID     string            `json:"b37_id"`
	Relations []domain.Relation `json:"relation_set"`
}

// CreateVariant validates and stores a new variant.
func (s *Service) CreateVariant(ctx context.Context, actor domain.Actor, tags domain.Tags, comment string) (domain.Variant, error) {
	var created domain.Variant
	err := s.commit(ctx, opCreateVariant, actor, comment, func(tx domain.Transaction) (int64, error) {
		if err := domain.ValidateCreate(tags, domain.VariantPolicy); err != nil {
			return 0, err
		}
		key, _ := domain.VariantKeyOf(tags)
		if existing, ok := tx.Snapshot().FindVariantByKey(key); ok {
			return 0, domain.DuplicateVariant(key, existing.ID)
		}
		var err error
		created, err = tx.CreateVariant(domain.Variant{Tags: tags})
		return created.ID, err
	})
	return created, err
}

// UpdateVariant applies a full (partial=false) or merging update to the
// variant addressed by token, an id or a b37 composite key.
func (s *Service) UpdateVariant(ctx context.Context, actor domain.Actor, token string, edit Edit, partial bool) (domain.Variant, error) {
	var updated domain.Variant
	err := s.commit(ctx, opUpdateVariant, actor, edit.Comment, func(tx domain.Transaction) (int64, error) {
		existing, err := resolveVariant(tx.Snapshot(), token)
		if err != nil {
			return 0, err
		}
		next, err := domain.ValidateUpdate(existing.Tags, edit.Fields, edit.Tags, partial, domain.VariantPolicy)
		if err != nil {
			return 0, err
		}
		updated, err = tx.UpdateVariant(existing.ID, func(v *domain.Variant) error {
			v.Tags = next
			return nil
		})
		return existing.ID, err
	})
	return updated, err
}

// GetVariant returns the variant addressed by token.
func (s *Service) GetVariant(ctx context.Context, token string) (VariantView, error) {
	var out VariantView
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, err := resolveVariant(view, token)
		if err != nil {
			return err
		}
		out = variantView(view, v)
		return nil
	})
	return out, err
}

// ListVariants returns every variant, or when filtered is set the union of
// variants matched by tokens. Malformed tokens are ignored.
func (s *Service) ListVariants(ctx context.Context, tokens []string, filtered bool) ([]VariantView, error) {
	var out []VariantView
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		var variants []domain.Variant
		if filtered {
			variants = view.FilterVariants(domain.ParseLookupList(tokens))
		} else {
			variants = view.ListVariants()
		}
		out = make([]VariantView, 0, len(variants))
		for _, v := range variants {
			out = append(out, variantView(view, v))
		}
		return nil
	})
	return out, err
}

// CreateRelation validates and stores a relation over existing variants.
func (s *Service) CreateRelation(ctx context.Context, actor domain.Actor, tags domain.Tags, variantIDs []int64, comment string) (domain.Relation, error) {
	var created domain.Relation
	err := s.commit(ctx, opCreateRelation, actor, comment, func(tx domain.Transaction) (int64, error) {
		if err := domain.ValidateCreate(tags, domain.RelationPolicy); err != nil {
			return 0, err
		}
		view := tx.Snapshot()
		for _, id := range variantIDs {
			if _, ok := view.FindVariant(id); !ok {
				return 0, domain.UnknownVariant(id)
			}
		}
		var err error
		created, err = tx.CreateRelation(domain.Relation{Tags: tags, VariantIDs: variantIDs})
		return created.ID, err
	})
	return created, err
}

// UpdateRelation applies a full or merging tag update to a relation.
func (s *Service) UpdateRelation(ctx context.Context, actor domain.Actor, id int64, edit Edit, partial bool) (domain.Relation, error) {
	var updated domain.Relation
	err := s.commit(ctx, opUpdateRelation, actor, edit.Comment, func(tx domain.Transaction) (int64, error) {
		existing, ok := tx.Snapshot().FindRelation(id)
		if !ok {
			return 0, domain.NotFound(domain.EntityRelation, strconv.FormatInt(id, 10))
		}
		next, err := domain.ValidateUpdate(existing.Tags, edit.Fields, edit.Tags, partial, domain.RelationPolicy)
		if err != nil {
			return 0, err
		}
		updated, err = tx.UpdateRelation(id, func(r *domain.Relation) error {
			r.Tags = next
			return nil
		})
		return id, err
	})
	return updated, err
}

// DeleteRelation removes a relation when editedVersion matches its current
// version. The check, the tombstone revision and the removal share one
// transaction, so no other mutation can interleave.
func (s *Service) DeleteRelation(ctx context.Context, actor domain.Actor, id int64, editedVersion *int64, comment string) error {
	return s.commit(ctx, opDeleteRelation, actor, comment, func(tx domain.Transaction) (int64, error) {
		view := tx.Snapshot()
		existing, ok := view.FindRelation(id)
		if !ok {
			return 0, domain.NotFound(domain.EntityRelation, strconv.FormatInt(id, 10))
		}
		current, ok := view.CurrentVersion(domain.EntityRelation, id)
		if !ok {
			current = existing.Version
		}
		if err := domain.ValidateDelete(current, editedVersion); err != nil {
			return 0, err
		}
		return id, tx.DeleteRelation(id)
	})
}

// GetRelation returns a relation by id.
func (s *Service) GetRelation(ctx context.Context, id int64) (domain.Relation, error) {
	var out domain.Relation
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		r, ok := view.FindRelation(id)
		if !ok {
			return domain.NotFound(domain.EntityRelation, strconv.FormatInt(id, 10))
		}
		out = r
		return nil
	})
	return out, err
}

// ListRelations returns every live relation ordered by id.
func (s *Service) ListRelations(ctx context.Context) ([]domain.Relation, error) {
	var out []domain.Relation
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		out = view.ListRelations()
		return nil
	})
	return out, err
}

// History lists a record's revisions oldest first, tombstone included.
func (s *Service) History(ctx context.Context, kind domain.EntityType, id int64) ([]domain.Revision, error) {
	var out []domain.Revision
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		out = view.Revisions(kind, id)
		if len(out) == 0 {
			return domain.NotFound(kind, strconv.FormatInt(id, 10))
		}
		return nil
	})
	return out, err
}

// CurrentVersion returns the latest revision version of a record.
func (s *Service) CurrentVersion(ctx context.Context, kind domain.EntityType, id int64) (int64, error) {
	var out int64
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, ok := view.CurrentVersion(kind, id)
		if !ok {
			return domain.NotFound(kind, strconv.FormatInt(id, 10))
		}
		out = v
		return nil
	})
	return out, err
}

// CurrentUser returns the caller's identity; it needs the username and email scopes.
func (s *Service) CurrentUser(actor domain.Actor) (domain.Author, error) {
	for _, scope := range []string{domain.ScopeUsername, domain.ScopeEmail} {
		if !actor.HasScope(scope) {
			return domain.Author{}, domain.Forbidden(scope)
		}
	}
	return actor.Author(), nil
}

func resolveVariant(view domain.TransactionView, token string) (domain.Variant, error) {
	lookup, ok := domain.ParseLookup(token)
	if !ok {
		return domain.Variant{}, domain.NotFound(domain.EntityVariant, token)
	}
	var v domain.Variant
	if lookup.ByID {
		v, ok = view.FindVariant(lookup.ID)
	} else {
		v, ok = view.FindVariantByKey(lookup.Key)
	}
	if !ok {
		return domain.Variant{}, domain.NotFound(domain.EntityVariant, token)
	}
	return v, nil
}

func variantView(view domain.TransactionView, v domain.Variant) VariantView {
	relations := view.RelationsForVariant(v.ID)
	if relations == nil {
		relations = []domain.Relation{}
	}
	return VariantView{Variant: v, B37ID: v.B37ID(), Relations: relations}
}
