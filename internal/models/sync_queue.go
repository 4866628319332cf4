package models

import (
	"encoding/json"
	"fmt"
)

// OperationType identifies what a pending operation creates on the server.
type OperationType string

const (
	OperationBill     OperationType = "bill"
	OperationCustomer OperationType = "customer"
	OperationProduct  OperationType = "product"
)

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	_, ok := t.Collection()
	return ok
}

// Collection returns the collection records of this type are stored in.
func (t OperationType) Collection() (Collection, bool) {
	switch t {
	case OperationBill:
		return Bills, true
	case OperationCustomer:
		return Customers, true
	case OperationProduct:
		return Products, true
	}
	return "", false
}

// Endpoint returns the REST path that creates records of this type.
func (t OperationType) Endpoint() string {
	return "/api/" + string(t) + "s"
}

// TempIDPrefix returns the prefix for temporary identifiers of this type.
func (t OperationType) TempIDPrefix() string {
	switch t {
	case OperationCustomer:
		return "offline_cust"
	case OperationProduct:
		return "offline_prod"
	default:
		return "offline"
	}
}

// PendingOperation represents a mutation that has not been acknowledged by
// the server yet.
type PendingOperation struct {
	ID         int64         `json:"id,omitempty"` // local autoincrement, never sent
	Type       OperationType `json:"type"`
	Data       Record        `json:"data"`
	Timestamp  int64         `json:"timestamp"` // unix millis
	RetryCount int           `json:"retryCount"`
	LastError  string        `json:"lastError,omitempty"`
}

// ToRecord converts the operation into its stored record form.
func (op *PendingOperation) ToRecord() (Record, error) {
	data, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode pending operation: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("encode pending operation: %w", err)
	}
	return rec, nil
}

// PendingFromRecord decodes a stored pending_sync record.
func PendingFromRecord(rec Record) (*PendingOperation, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("decode pending operation: %w", err)
	}
	var op PendingOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("decode pending operation: %w", err)
	}
	return &op, nil
}
