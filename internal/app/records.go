package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aykha18/tajir-optimized-sub001/internal/billing"
	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
	"github.com/aykha18/tajir-optimized-sub001/internal/store"
	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
	"github.com/aykha18/tajir-optimized-sub001/internal/tempid"
)

// SaveResult describes where a saved record went.
type SaveResult struct {
	ID string `json:"id"`
	// Queued is set when the record was stored locally and waits for sync.
	Queued bool          `json:"queued"`
	Record models.Record `json:"record,omitempty"`
}

// SaveBill computes the bill totals and saves it.
func (a *App) SaveBill(ctx context.Context, rec models.Record) (SaveResult, error) {
	if rec == nil {
		return SaveResult{}, apperrors.New(apperrors.ErrInvalid, "bill is nil")
	}
	bill, err := billing.Apply(rec, a.vatRate)
	if err != nil {
		return SaveResult{}, err
	}
	return a.save(ctx, models.OperationBill, bill)
}

// SaveCustomer saves a customer.
func (a *App) SaveCustomer(ctx context.Context, rec models.Record) (SaveResult, error) {
	return a.save(ctx, models.OperationCustomer, rec)
}

// SaveProduct saves a product.
func (a *App) SaveProduct(ctx context.Context, rec models.Record) (SaveResult, error) {
	return a.save(ctx, models.OperationProduct, rec)
}

// Save saves a record of the given type.
func (a *App) Save(ctx context.Context, opType models.OperationType, rec models.Record) (SaveResult, error) {
	switch opType {
	case models.OperationBill:
		return a.SaveBill(ctx, rec)
	case models.OperationCustomer, models.OperationProduct:
		return a.save(ctx, opType, rec)
	}
	return SaveResult{}, apperrors.Newf(apperrors.ErrInvalid, "unknown operation type %q", opType)
}

// save sends rec straight to the server when online and caches the answer.
// If the server cannot be reached the record takes the offline path; a
// rejection by the server is returned as is.
func (a *App) save(ctx context.Context, opType models.OperationType, rec models.Record) (SaveResult, error) {
	if rec == nil {
		return SaveResult{}, apperrors.Newf(apperrors.ErrInvalid, "%s is nil", opType)
	}
	collection, _ := opType.Collection()

	if a.monitor.IsOnline() {
		created, err := a.remote.Create(ctx, opType, rec)
		if err == nil {
			out := rec.Clone()
			for k, v := range created {
				out[k] = v
			}
			key := out.Key(collection)
			if key != "" {
				if err := a.store.Save(ctx, collection, out); err != nil {
					a.logger.Warn("failed to cache saved record",
						zap.String("type", string(opType)), zap.String("key", key), zap.Error(err))
				}
			}
			return SaveResult{ID: key, Record: out}, nil
		}
		if apperrors.StatusOf(err) != 0 || ctx.Err() != nil {
			return SaveResult{}, err
		}
		a.logger.Warn("server unreachable, saving offline",
			zap.String("type", string(opType)), zap.Error(err))
	}

	id, err := a.queue.Enqueue(ctx, opType, rec)
	if err != nil {
		return SaveResult{}, err
	}
	stored, err := a.store.Get(ctx, collection, id)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{ID: id, Queued: true, Record: stored}, nil
}

// LoadCustomers returns every customer.
func (a *App) LoadCustomers(ctx context.Context) ([]models.Record, error) {
	return a.Load(ctx, models.Customers)
}

// LoadProducts returns every product.
func (a *App) LoadProducts(ctx context.Context) ([]models.Record, error) {
	return a.Load(ctx, models.Products)
}

// LoadBills returns every bill.
func (a *App) LoadBills(ctx context.Context) ([]models.Record, error) {
	return a.Load(ctx, models.Bills)
}

// Load fetches a collection from the server when online and refreshes the
// local cache with it. Offline, or when the fetch fails, the cached records
// are returned instead. Records still waiting to sync are kept in the cache.
func (a *App) Load(ctx context.Context, collection models.Collection) ([]models.Record, error) {
	switch collection {
	case models.Bills, models.Customers, models.Products:
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownCollection, "collection %q cannot be loaded", collection)
	}

	if a.monitor.IsOnline() {
		recs, err := a.remote.List(ctx, collection)
		if err == nil {
			a.refreshCache(ctx, collection, recs)
			return recs, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		a.logger.Warn("remote load failed, using local cache",
			zap.String("collection", string(collection)), zap.Error(err))
	}

	return a.store.GetAll(ctx, collection, "", "")
}

func (a *App) refreshCache(ctx context.Context, collection models.Collection, recs []models.Record) {
	err := a.store.Update(ctx, func(tx *store.Tx) error {
		for _, rec := range recs {
			if rec.Key(collection) == "" {
				continue
			}
			if err := tx.Save(collection, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		a.logger.Warn("failed to refresh local cache",
			zap.String("collection", string(collection)), zap.Error(err))
	}
}

// FindCustomersByPhone looks a customer up in the local cache.
func (a *App) FindCustomersByPhone(ctx context.Context, phone string) ([]models.Record, error) {
	if phone == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "phone is required")
	}
	return a.store.GetAll(ctx, models.Customers, "phone", phone)
}

// reconcile replaces the temporary copy of a synced record with the
// server's copy once the server has assigned its own identifier.
func (a *App) reconcile(ev syncpkg.Event) {
	if ev.Type != syncpkg.EventSyncItemSynced {
		return
	}
	opType, _ := ev.Data["type"].(string)
	tempKey, _ := ev.Data["key"].(string)
	server, _ := ev.Data["record"].(models.Record)
	collection, ok := models.OperationType(opType).Collection()
	if !ok || len(server) == 0 || !tempid.IsTemporary(tempKey) {
		return
	}
	serverKey := server.Key(collection)
	if serverKey == "" || serverKey == tempKey {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.store.Update(ctx, func(tx *store.Tx) error {
		local, err := tx.Get(collection, tempKey)
		if err != nil {
			return err
		}
		merged := models.Record{}
		for k, v := range local {
			merged[k] = v
		}
		for k, v := range server {
			merged[k] = v
		}
		delete(merged, "offline_created")
		if err := tx.Delete(collection, tempKey); err != nil {
			return err
		}
		return tx.Save(collection, merged)
	})
	if err != nil {
		a.logger.Warn("failed to reconcile synced record",
			zap.String("collection", string(collection)),
			zap.String("temp_key", tempKey),
			zap.String("server_key", serverKey),
			zap.Error(err))
		return
	}
	a.logger.Debug("reconciled synced record",
		zap.String("temp_key", tempKey), zap.String("server_key", serverKey))
}
