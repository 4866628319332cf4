package store

import (
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// collectionDef describes how a collection maps onto its table. Index
// names double as record field names and column names.
type collectionDef struct {
	name          models.Collection
	key           string
	autoIncrement bool
	indexes       []string
}

var collectionDefs = map[models.Collection]collectionDef{
	models.Customers: {
		name:    models.Customers,
		key:     "customer_id",
		indexes: []string{"name", "phone"},
	},
	models.Products: {
		name:    models.Products,
		key:     "product_id",
		indexes: []string{"name", "type_id"},
	},
	models.Bills: {
		name:    models.Bills,
		key:     "bill_id",
		indexes: []string{"customer_id", "date", "status"},
	},
	models.PendingSync: {
		name:          models.PendingSync,
		key:           "id",
		autoIncrement: true,
		indexes:       []string{"type", "timestamp"},
	},
	models.Settings: {
		name: models.Settings,
		key:  "key",
	},
}

func (d collectionDef) table() string {
	return string(d.name)
}

func (d collectionDef) hasIndex(index string) bool {
	for _, idx := range d.indexes {
		if idx == index {
			return true
		}
	}
	return false
}

// indexValues extracts the indexed fields of rec; empty values are stored as NULL.
func (d collectionDef) indexValues(rec models.Record) []interface{} {
	values := make([]interface{}, len(d.indexes))
	for i, idx := range d.indexes {
		if s := rec.String(idx); s != "" {
			values[i] = s
		}
	}
	return values
}
