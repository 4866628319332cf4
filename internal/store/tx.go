package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// Tx exposes the store primitives inside one SQLite transaction.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

func lookup(collection models.Collection) (collectionDef, error) {
	def, ok := collectionDefs[collection]
	if !ok {
		return collectionDef{}, apperrors.Newf(apperrors.ErrUnknownCollection, "unknown collection %q", collection)
	}
	return def, nil
}

// Save inserts or replaces rec by primary key. In auto-increment
// collections a missing key is assigned and written back into rec.
func (t *Tx) Save(collection models.Collection, rec models.Record) error {
	def, err := lookup(collection)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.New(apperrors.ErrInvalid, "record is nil")
	}

	key := rec.Key(collection)
	if key == "" && !def.autoIncrement {
		return apperrors.Newf(apperrors.ErrInvalid, "record has no %s", def.key)
	}

	data, err := rec.Value()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "encode record", err)
	}

	columns := append([]string{}, def.indexes...)
	columns = append(columns, "data")
	args := append(def.indexValues(rec), data)

	if key == "" {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			def.table(), strings.Join(columns, ", "), placeholders(len(columns)))
		res, err := t.tx.ExecContext(t.ctx, query, args...)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, "insert into "+def.table(), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, "read assigned id", err)
		}
		rec[def.key] = id
		return nil
	}

	updates := make([]string, len(columns))
	for i, c := range columns {
		updates[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, %s) ON CONFLICT(%s) DO UPDATE SET %s",
		def.table(), def.key, strings.Join(columns, ", "), placeholders(len(columns)),
		def.key, strings.Join(updates, ", "))

	if _, err := t.tx.ExecContext(t.ctx, query, append([]interface{}{key}, args...)...); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "upsert into "+def.table(), err)
	}
	return nil
}

// Get returns the record stored under key, or nil when absent.
func (t *Tx) Get(collection models.Collection, key string) (models.Record, error) {
	def, err := lookup(collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s, data FROM %s WHERE %s = ?", def.key, def.table(), def.key)
	rec, err := scanRecord(def, t.tx.QueryRowContext(t.ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "get from "+def.table(), err)
	}
	return rec, nil
}

// GetAll returns every record of the collection in storage order, or only
// those whose index field equals value when index is not empty.
func (t *Tx) GetAll(collection models.Collection, index, value string) ([]models.Record, error) {
	def, err := lookup(collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s, data FROM %s", def.key, def.table())
	var args []interface{}
	if index != "" {
		if !def.hasIndex(index) {
			return nil, apperrors.Newf(apperrors.ErrInvalid, "collection %s has no index %q", def.name, index)
		}
		query += fmt.Sprintf(" WHERE %s = ?", index)
		args = append(args, value)
	}
	query += " ORDER BY rowid"

	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "scan "+def.table(), err)
	}
	defer rows.Close()

	var recs []models.Record
	for rows.Next() {
		rec, err := scanRecord(def, rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, "scan "+def.table(), err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "scan "+def.table(), err)
	}
	return recs, nil
}

// Delete removes the record stored under key. Absent keys are not an error.
func (t *Tx) Delete(collection models.Collection, key string) error {
	def, err := lookup(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", def.table(), def.key)
	if _, err := t.tx.ExecContext(t.ctx, query, key); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "delete from "+def.table(), err)
	}
	return nil
}

// Clear removes every record of the collection.
func (t *Tx) Clear(collection models.Collection) error {
	def, err := lookup(collection)
	if err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM "+def.table()); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "clear "+def.table(), err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (t *Tx) Count(collection models.Collection) (int, error) {
	def, err := lookup(collection)
	if err != nil {
		return 0, err
	}

	var n int
	if err := t.tx.QueryRowContext(t.ctx, "SELECT COUNT(*) FROM "+def.table()).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrPersistence, "count "+def.table(), err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads a (key, data) row. Auto-increment keys live only in the
// key column, so they are copied into the record.
func scanRecord(def collectionDef, row rowScanner) (models.Record, error) {
	var (
		rawKey interface{}
		rec    models.Record
	)
	if err := row.Scan(&rawKey, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = models.Record{}
	}
	if def.autoIncrement {
		if id, ok := rawKey.(int64); ok {
			rec[def.key] = id
		}
	}
	return rec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
