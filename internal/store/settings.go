package store

import (
	"context"

	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// SaveSetting stores value under key; the last write wins.
func (t *Tx) SaveSetting(key string, value interface{}) error {
	return t.Save(models.Settings, models.Record{"key": key, "value": value})
}

// GetSetting returns the value stored under key and whether it exists.
func (t *Tx) GetSetting(key string) (interface{}, bool, error) {
	rec, err := t.Get(models.Settings, key)
	if err != nil || rec == nil {
		return nil, false, err
	}
	return rec["value"], true, nil
}

// SaveSetting stores value under key in its own transaction.
func (s *Store) SaveSetting(ctx context.Context, key string, value interface{}) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.SaveSetting(key, value)
	})
}

// GetSetting returns the value stored under key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (interface{}, bool, error) {
	var (
		value interface{}
		found bool
	)
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		value, found, err = tx.GetSetting(key)
		return err
	})
	return value, found, err
}
