package storage

import (
	"context"
	"time"
)

// KeyValueStore persists JSON-encoded values under string keys
type KeyValueStore interface {
	// Get decodes the value at key into v. Returns false when the key does not exist.
	Get(key string, v any) (bool, error)

	// Set encodes v as JSON and stores it at key
	Set(key string, v any) error

	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error

	// ScanPrefix calls fn for every key starting with prefix, in key order.
	// The raw value is only valid during the call.
	ScanPrefix(prefix string, fn func(key string, raw []byte) error) error

	// ReplacePrefix drops every key under prefix and writes entries in one batch.
	// Entry keys are stored as given and should carry the prefix.
	ReplacePrefix(prefix string, entries map[string]any) error

	// Clear removes every key
	Clear() error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// Count returns the number of keys under prefix ("" for all)
	Count(prefix string) (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// Store combines both interfaces for components that own the database
type Store interface {
	KeyValueStore
	StoreAdmin
}
