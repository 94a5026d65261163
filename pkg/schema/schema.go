// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package schema defines the table-schema contract consumed by the core
// and a minimal in-memory implementation used in tests.
package schema

import (
	"fmt"
	"sync"

	"github.com/zeebo/errs"
)

// Error is the class for schema resolution failures.
var Error = errs.Class("schema")

// FieldType is a coarse column type tag; the core only needs enough of a
// type system to know which fields are partition/primary-key columns and
// how to format partition values.
type FieldType int

const (
	// TypeString is a UTF-8 string column.
	TypeString FieldType = iota
	// TypeInt is a 64-bit integer column.
	TypeInt
	// TypeFloat is a 64-bit floating point column.
	TypeFloat
)

// Field is one column definition.
type Field struct {
	Name string
	Type FieldType
}

// TableSchema describes a table's row shape at a point in time.
type TableSchema struct {
	ID              int64
	Fields          []Field
	PartitionKeys   []string
	PrimaryKeys     []string
}

// FieldNames returns the ordered names of fields.
func (s TableSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Manager resolves schema ids to TableSchema.
type Manager interface {
	Latest() (TableSchema, error)
	Get(schemaID int64) (TableSchema, error)
}

// InMemoryManager is a simple Manager backed by a map, used by tests.
type InMemoryManager struct {
	mu      sync.RWMutex
	schemas map[int64]TableSchema
	latest  int64
	hasAny  bool
}

// NewInMemoryManager returns an empty schema manager.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{schemas: make(map[int64]TableSchema)}
}

// Register adds or replaces a schema version and advances "latest" if its
// id is newer.
func (m *InMemoryManager) Register(s TableSchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[s.ID] = s
	if !m.hasAny || s.ID > m.latest {
		m.latest = s.ID
		m.hasAny = true
	}
}

// Latest returns the newest registered schema.
func (m *InMemoryManager) Latest() (TableSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasAny {
		return TableSchema{}, Error.Wrap(fmt.Errorf("no schema registered"))
	}
	return m.schemas[m.latest], nil
}

// Get returns the schema for a specific id.
func (m *InMemoryManager) Get(schemaID int64) (TableSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[schemaID]
	if !ok {
		return TableSchema{}, Error.Wrap(fmt.Errorf("schema %d not found", schemaID))
	}
	return s, nil
}

// ValidateExpirationConfig enforces the rule that
// partition.expiration-time may only be set on a partitioned table.
func ValidateExpirationConfig(s TableSchema, expirationConfigured bool) error {
	if expirationConfigured && len(s.PartitionKeys) == 0 {
		return Error.Wrap(fmt.Errorf("Can not set 'partition.expiration-time' for non-partitioned table"))
	}
	return nil
}
