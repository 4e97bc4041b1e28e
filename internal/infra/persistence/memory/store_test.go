package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"gennotes/pkg/domain"
)

func variantTags(pos string) domain.Tags {
	return domain.Tags{
		domain.TagChromB37:     "1",
		domain.TagPosB37:       pos,
		domain.TagRefAlleleB37: "G",
		domain.TagVarAlleleB37: "A",
	}
}

func TestStoreCRUDAndQueries(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	var variantID, relationID int64
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		v, err := tx.CreateVariant(domain.Variant{Tags: variantTags("883516")})
		if err != nil {
			return err
		}
		variantID = v.ID
		if v.Version != 1 || !v.CreatedAt.Equal(fixed) {
			t.Fatalf("unexpected stamped variant %+v", v.Base)
		}
		r, err := tx.CreateRelation(domain.Relation{Tags: domain.Tags{"type": "causes"}, VariantIDs: []int64{v.ID}})
		if err != nil {
			return err
		}
		relationID = r.ID
		if _, err := tx.CreateRelation(domain.Relation{Tags: domain.Tags{"type": "x"}, VariantIDs: []int64{999}}); err == nil {
			t.Fatalf("expected unknown variant reference to fail")
		}
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindVariant(variantID); !ok {
			t.Fatalf("variant not found")
		}
		byKey, ok := view.FindVariantByKey(domain.VariantKey{Chrom: "1", Pos: "883516", Ref: "G", Var: "A"})
		if !ok || byKey.ID != variantID {
			t.Fatalf("expected key lookup to find variant")
		}
		rels := view.RelationsForVariant(variantID)
		if len(rels) != 1 || rels[0].ID != relationID {
			t.Fatalf("unexpected relation set %+v", rels)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		updated, err := tx.UpdateRelation(relationID, func(r *domain.Relation) error {
			r.Tags["note"] = "x"
			r.VariantIDs = nil
			return nil
		})
		if err != nil {
			return err
		}
		if updated.Version != 2 || len(updated.VariantIDs) != 1 {
			t.Fatalf("expected version bump and kept references, got %+v", updated)
		}
		return tx.DeleteRelation(relationID)
	}); err != nil {
		t.Fatalf("update/delete: %v", err)
	}

	changesSeen := 0
	_ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		changesSeen = len(tx.Changes())
		return nil
	})
	if changesSeen != 0 {
		t.Fatalf("changes must be scoped to a transaction")
	}

	_ = store.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindRelation(relationID); ok {
			t.Fatalf("relation should be deleted")
		}
		if len(view.ListRelations()) != 0 || len(view.ListVariants()) != 1 {
			t.Fatalf("unexpected listing sizes")
		}
		return nil
	})
}

func TestStoreRecordsChangesForRevisions(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var id int64
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		r, err := tx.CreateRelation(domain.Relation{Tags: domain.Tags{"type": "causes"}})
		if err != nil {
			return err
		}
		id = r.ID
		changes := tx.Changes()
		if len(changes) != 1 || changes[0].Action != domain.ActionCreate || changes[0].Version != 1 {
			t.Fatalf("unexpected changes %+v", changes)
		}
		_, err = tx.AppendRevision(domain.Revision{Entity: domain.EntityRelation, RecordID: r.ID, Version: 1, Action: domain.ActionCreate, Tags: r.Tags})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.DeleteRelation(id); err != nil {
			return err
		}
		c := tx.Changes()[0]
		if c.Action != domain.ActionDelete || c.Version != 2 || c.Tags["type"] != "causes" {
			t.Fatalf("unexpected delete change %+v", c)
		}
		_, err := tx.AppendRevision(domain.Revision{Entity: domain.EntityRelation, RecordID: id, Version: c.Version, Action: domain.ActionDelete, Tags: c.Tags, Deleted: true})
		return err
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_ = store.View(ctx, func(view domain.TransactionView) error {
		revs := view.Revisions(domain.EntityRelation, id)
		if len(revs) != 2 || !revs[1].Deleted || revs[1].ID <= revs[0].ID {
			t.Fatalf("unexpected history %+v", revs)
		}
		if v, ok := view.CurrentVersion(domain.EntityRelation, id); !ok || v != 2 {
			t.Fatalf("expected current version 2, got %d %v", v, ok)
		}
		return nil
	})
}

func TestAppendRevisionGuards(t *testing.T) {
	store := NewStore()
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.AppendRevision(domain.Revision{}); err == nil {
			t.Fatalf("expected missing entity to fail")
		}
		if _, err := tx.AppendRevision(domain.Revision{Entity: domain.EntityVariant, RecordID: 1, Version: 2}); err != nil {
			return err
		}
		if _, err := tx.AppendRevision(domain.Revision{Entity: domain.EntityVariant, RecordID: 1, Version: 2}); err == nil {
			t.Fatalf("expected non-increasing version to fail")
		}
		if _, err := tx.AppendRevision(domain.Revision{Entity: domain.EntityVariant, RecordID: 1, Version: 3, Deleted: true}); err != nil {
			return err
		}
		if _, err := tx.AppendRevision(domain.Revision{Entity: domain.EntityVariant, RecordID: 1, Version: 4}); err == nil {
			t.Fatalf("expected revision after tombstone to fail")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := NewStore()
	sentinel := errors.New("boom")
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateVariant(domain.Variant{Tags: variantTags("1")}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if got := len(store.ExportState().Variants); got != 0 {
		t.Fatalf("expected rollback, found %d variants", got)
	}
}

func TestCommitHookFailureRollsBack(t *testing.T) {
	hookErr := errors.New("disk full")
	calls := 0
	store := NewStore(WithCommitHook(func(_ context.Context, snap Snapshot) error {
		calls++
		if len(snap.Variants) != 1 || len(snap.Revisions) != 1 {
			t.Fatalf("hook must see the pending state, got %+v", snap)
		}
		return hookErr
	}))
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		v, err := tx.CreateVariant(domain.Variant{Tags: variantTags("1")})
		if err != nil {
			return err
		}
		_, err = tx.AppendRevision(domain.Revision{Entity: domain.EntityVariant, RecordID: v.ID, Version: 1})
		return err
	})
	if !errors.Is(err, hookErr) || calls != 1 {
		t.Fatalf("expected hook error, got %v (calls=%d)", err, calls)
	}
	state := store.ExportState()
	if len(state.Variants) != 0 || len(state.Revisions) != 0 {
		t.Fatalf("expected nothing committed, got %+v", state)
	}
}

func TestDuplicateVariantKeyRejected(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	create := func() error {
		return store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateVariant(domain.Variant{Tags: variantTags("5")})
			return err
		})
	}
	if err := create(); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := create(); err == nil {
		t.Fatalf("expected duplicate composite key to fail")
	}
}

func TestFilterVariantsUnion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, pos := range []string{"10", "20", "30"} {
			if _, err := tx.CreateVariant(domain.Variant{Tags: variantTags(pos)}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	lookups := domain.ParseLookupList([]string{"1", "b37-1-30-G-A", "b37-1"})
	_ = store.View(ctx, func(view domain.TransactionView) error {
		got := view.FilterVariants(lookups)
		if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
			t.Fatalf("unexpected union %+v", got)
		}
		if len(view.FilterVariants(nil)) != 0 {
			t.Fatalf("empty filter must match nothing")
		}
		return nil
	})
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		v, err := tx.CreateVariant(domain.Variant{Tags: variantTags("7")})
		if err != nil {
			return err
		}
		_, err = tx.AppendRevision(domain.Revision{Entity: domain.EntityVariant, RecordID: v.ID, Version: 1})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	snap := store.ExportState()

	restored := NewStore()
	restored.ImportState(snap)
	_ = restored.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindVariantByKey(domain.VariantKey{Chrom: "1", Pos: "7", Ref: "G", Var: "A"}); !ok {
			t.Fatalf("key index not rebuilt")
		}
		if v, ok := view.CurrentVersion(domain.EntityVariant, 1); !ok || v != 1 {
			t.Fatalf("history index not rebuilt")
		}
		return nil
	})
	if err := restored.RunInTransaction(ctx, func(tx domain.Transaction) error {
		v, err := tx.CreateVariant(domain.Variant{Tags: variantTags("8")})
		if err != nil {
			return err
		}
		if v.ID != 2 {
			t.Fatalf("expected sequences restored, got id %d", v.ID)
		}
		return nil
	}); err != nil {
		t.Fatalf("create after import: %v", err)
	}
}
