package core

import (
	"context"
	"time"

	"gennotes/pkg/domain"

	"github.com/cockroachdb/errors"
)

// mutation runs inside a store transaction and returns the id of the record it
// acted on.
type mutation func(tx domain.Transaction) (int64, error)

// commit is the unit of work behind every mutating operation. It checks the
// actor's scope, runs fn in one store transaction, evaluates the integrity
// rules and appends a revision for each change fn recorded. Mutation and
// revisions commit together or not at all.
func (s *Service) commit(ctx context.Context, op string, actor domain.Actor, comment string, fn mutation) (err error) {
	started := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	var recordID int64
	defer func() {
		s.observe(ctx, op, actor, recordID, time.Since(started), err)
		span.End(err)
	}()

	if !actor.HasScope(domain.ScopeCommitEdit) {
		return domain.Forbidden(domain.ScopeCommitEdit)
	}
	author := actor.Author()
	err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		if err != nil {
			return err
		}
		recordID = id
		changes := tx.Changes()
		if err := s.opts.rules.Evaluate(ctx, tx.Snapshot(), changes); err != nil {
			return err
		}
		for _, change := range changes {
			rev := domain.Revision{
				Entity:   change.Entity,
				RecordID: change.RecordID,
				Version:  change.Version,
				Action:   change.Action,
				Tags:     change.Tags,
				Author:   author,
				Comment:  comment,
				Deleted:  change.Action == domain.ActionDelete,
			}
			if _, err := tx.AppendRevision(rev); err != nil {
				return errors.Wrapf(err, "append revision for %s %d", change.Entity, change.RecordID)
			}
		}
		return nil
	})
	return err
}

func (s *Service) observe(ctx context.Context, op string, actor domain.Actor, recordID int64, duration time.Duration, err error) {
	s.opts.metrics.Observe(ctx, op, err == nil, duration)

	meta, ok := operationMetadata[op]
	if ok {
		entry := AuditEntry{
			Operation: op,
			Entity:    meta.entity,
			Action:    meta.action,
			RecordID:  recordID,
			Actor:     actor.Author(),
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: s.opts.clock.Now(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.opts.audit.Record(ctx, entry)
	}

	switch {
	case err == nil:
		s.opts.logger.Info("operation committed", "operation", op, "record_id", recordID, "user", actor.Username, "duration", duration)
	case isDomainError(err):
		s.opts.logger.Warn("operation rejected", "operation", op, "user", actor.Username, "error", err)
	default:
		s.opts.logger.Error("operation failed", "operation", op, "user", actor.Username, "error", err)
	}
}

func isDomainError(err error) bool {
	_, ok := domain.AsError(err)
	return ok
}
