// Package models provides data model definitions for the POS offline store.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Collection names a record collection in the local store.
type Collection string

const (
	Customers   Collection = "customers"
	Products    Collection = "products"
	Bills       Collection = "bills"
	PendingSync Collection = "pending_sync"
	Settings    Collection = "settings"
)

// Valid reports whether c is a declared collection.
func (c Collection) Valid() bool {
	switch c {
	case Customers, Products, Bills, PendingSync, Settings:
		return true
	}
	return false
}

// KeyField returns the primary-key field of the collection's records.
func (c Collection) KeyField() string {
	switch c {
	case Customers:
		return "customer_id"
	case Products:
		return "product_id"
	case Bills:
		return "bill_id"
	case PendingSync:
		return "id"
	case Settings:
		return "key"
	}
	return ""
}

// Record is a generic customer, product or bill as a field mapping.
type Record map[string]interface{}

// Key returns the record's primary key for the collection as a string,
// or "" when it is missing or empty.
func (r Record) Key(c Collection) string {
	return r.String(c.KeyField())
}

// String returns a field formatted as a string, "" when absent or nil.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; print integral values without exponent.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer by encoding the record as JSON.
func (r Record) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]interface{}(r))
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON-encoded records.
func (r *Record) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Record", value)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	*r = Record(out)
	return nil
}
