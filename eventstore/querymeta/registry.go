package querymeta

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrEmptyOperationName is returned when metadata is registered for an empty operation name.
	ErrEmptyOperationName = errors.New("operation name must not be empty")

	// ErrOperationAlreadyRegistered is returned when metadata is registered twice for the same operation.
	ErrOperationAlreadyRegistered = errors.New("query metadata already registered for operation")

	// ErrNilRegistry is returned when metadata is registered on a nil *Registry.
	ErrNilRegistry = errors.New("query metadata registry is nil")
)

// OperationName identifies a repository operation, e.g. "findAllActive".
type OperationName = string

// Registry maps repository operations to their Meta.
//
// It is populated at startup and read on every query, concurrent reads and writes are safe.
// The zero value is an empty Registry ready for use.
// A nil *Registry is valid for reads and behaves like an empty one, Register on it fails with ErrNilRegistry.
type Registry struct {
	mu    sync.RWMutex
	metas map[OperationName]Meta
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		metas: make(map[OperationName]Meta),
	}
}

// Register attaches meta to the operation.
//
// Registering the same operation twice fails with ErrOperationAlreadyRegistered,
// the registry never decides which of two markers wins.
func (r *Registry) Register(operation OperationName, meta Meta) error {
	if r == nil {
		return ErrNilRegistry
	}

	if operation == "" {
		return ErrEmptyOperationName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.metas == nil {
		r.metas = make(map[OperationName]Meta)
	}

	if _, exists := r.metas[operation]; exists {
		return fmt.Errorf("%w: %s", ErrOperationAlreadyRegistered, operation)
	}

	r.metas[operation] = meta

	return nil
}

// RegisterTemplate attaches a Meta including the given Template to the operation.
func (r *Registry) RegisterTemplate(operation OperationName, template Template) error {
	meta, err := New(Including(template))
	if err != nil {
		return err
	}

	return r.Register(operation, meta)
}

// Lookup returns the Meta registered for the operation and whether there was one.
func (r *Registry) Lookup(operation OperationName) (Meta, bool) {
	if r == nil {
		return Meta{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.metas[operation]

	return meta, ok
}

// MetaFor returns the Meta registered for the operation, or the zero Meta if there is none.
func (r *Registry) MetaFor(operation OperationName) Meta {
	meta, _ := r.Lookup(operation)

	return meta
}

// Operations returns the names of all registered operations, sorted.
func (r *Registry) Operations() []OperationName {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	operations := make([]OperationName, 0, len(r.metas))
	for operation := range r.metas {
		operations = append(operations, operation)
	}

	slices.Sort(operations)

	return operations
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.metas)
}
