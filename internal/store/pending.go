package store

import (
	"context"
	"strconv"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// AddPending appends op to the pending_sync collection and sets op.ID.
func (t *Tx) AddPending(op *models.PendingOperation) error {
	if op == nil || !op.Type.Valid() {
		return apperrors.New(apperrors.ErrInvalid, "invalid pending operation")
	}
	op.ID = 0

	rec, err := op.ToRecord()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "encode pending operation", err)
	}
	if err := t.Save(models.PendingSync, rec); err != nil {
		return err
	}
	op.ID, _ = rec["id"].(int64)
	return nil
}

// UpdatePending replaces a stored operation, typically after its retry count changed.
func (t *Tx) UpdatePending(op *models.PendingOperation) error {
	if op == nil || op.ID == 0 {
		return apperrors.New(apperrors.ErrInvalid, "pending operation has no id")
	}
	rec, err := op.ToRecord()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "encode pending operation", err)
	}
	return t.Save(models.PendingSync, rec)
}

// GetAllPending returns every queued operation.
func (t *Tx) GetAllPending() ([]*models.PendingOperation, error) {
	recs, err := t.GetAll(models.PendingSync, "", "")
	if err != nil {
		return nil, err
	}
	return decodePending(recs)
}

// GetPending returns the operation with the given id, or nil when absent.
func (t *Tx) GetPending(id int64) (*models.PendingOperation, error) {
	rec, err := t.Get(models.PendingSync, strconv.FormatInt(id, 10))
	if err != nil || rec == nil {
		return nil, err
	}
	op, err := models.PendingFromRecord(rec)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "decode pending operation", err)
	}
	return op, nil
}

// RemovePending deletes an operation by id.
func (t *Tx) RemovePending(id int64) error {
	return t.Delete(models.PendingSync, strconv.FormatInt(id, 10))
}

func decodePending(recs []models.Record) ([]*models.PendingOperation, error) {
	ops := make([]*models.PendingOperation, 0, len(recs))
	for _, rec := range recs {
		op, err := models.PendingFromRecord(rec)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, "decode pending operation", err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// AddPending appends op in its own transaction.
func (s *Store) AddPending(ctx context.Context, op *models.PendingOperation) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.AddPending(op)
	})
}

// UpdatePending replaces op in its own transaction.
func (s *Store) UpdatePending(ctx context.Context, op *models.PendingOperation) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.UpdatePending(op)
	})
}

// GetAllPending returns every queued operation.
func (s *Store) GetAllPending(ctx context.Context) ([]*models.PendingOperation, error) {
	var ops []*models.PendingOperation
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		ops, err = tx.GetAllPending()
		return err
	})
	return ops, err
}

// GetPendingByType returns queued operations of one type via the type index.
func (s *Store) GetPendingByType(ctx context.Context, opType models.OperationType) ([]*models.PendingOperation, error) {
	recs, err := s.GetAll(ctx, models.PendingSync, "type", string(opType))
	if err != nil {
		return nil, err
	}
	return decodePending(recs)
}

// RemovePending deletes an operation by id in its own transaction.
func (s *Store) RemovePending(ctx context.Context, id int64) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.RemovePending(id)
	})
}

// CountPending returns the number of queued operations.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	return s.Count(ctx, models.PendingSync)
}
