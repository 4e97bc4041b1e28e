package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"gennotes/internal/infra/persistence/memory"
	"gennotes/pkg/domain"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T, rows *sqlmock.Rows) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	restore := OverrideSQLOpen(func(driver, _ string) (*sql.DB, error) {
		if driver != defaultDriver {
			t.Fatalf("unexpected driver %q", driver)
		}
		return db, nil
	})
	t.Cleanup(restore)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS state")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectState)).WillReturnRows(rows)

	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, mock
}

func TestNewStoreLoadsSnapshot(t *testing.T) {
	rows := sqlmock.NewRows([]string{"bucket", "payload"}).
		AddRow(memory.BucketVariants, []byte(`{"4":{"id":4,"current_version":2,"tags":{"chrom-b37":"1","pos-b37":"10","ref-allele-b37":"G","var-allele-b37":"A"}}}`)).
		AddRow(memory.BucketSequences, []byte(`{"variant":4,"relation":0,"revision":0}`)).
		AddRow("legacy", []byte(`{}`))
	store, mock := newMockStore(t, rows)

	_ = store.View(context.Background(), func(view domain.TransactionView) error {
		v, ok := view.FindVariantByKey(domain.VariantKey{Chrom: "1", Pos: "10", Ref: "G", Var: "A"})
		if !ok || v.ID != 4 || v.Version != 2 {
			t.Fatalf("expected variant 4 loaded, got %+v %v", v, ok)
		}
		return nil
	})
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunInTransactionPersistsEveryBucket(t *testing.T) {
	store, mock := newMockStore(t, sqlmock.NewRows([]string{"bucket", "payload"}))

	mock.ExpectBegin()
	for _, bucket := range memory.Buckets {
		mock.ExpectExec(regexp.QuoteMeta(upsertState)).
			WithArgs(bucket, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRelation(domain.Relation{Tags: domain.Tags{"type": "causes"}})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	store, mock := newMockStore(t, sqlmock.NewRows([]string{"bucket", "payload"}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertState)).
		WithArgs(memory.BucketVariants, sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRelation(domain.Relation{Tags: domain.Tags{"type": "causes"}})
		return err
	})
	if err == nil {
		t.Fatalf("expected persist error")
	}
	_ = store.View(context.Background(), func(view domain.TransactionView) error {
		if len(view.ListRelations()) != 0 {
			t.Fatalf("relation must not be visible after failed persist")
		}
		return nil
	})
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewStoreSurfacesDDLFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE")).WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatalf("expected ddl error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
