package repository

import (
	"context"

	"docvault/internal/model"
)

// Scope selects which lifecycle states a query sees.
type Scope string

const (
	ScopeActive  Scope = "active"
	ScopeTrashed Scope = "trashed"
	ScopeAll     Scope = "all"
)

// NormalizeScope maps arbitrary input to a valid scope. Unrecognized values
// silently fall back to the active scope; bad scope input is never an error.
func NormalizeScope(s string) Scope {
	switch Scope(s) {
	case ScopeActive, ScopeTrashed, ScopeAll:
		return Scope(s)
	default:
		return ScopeActive
	}
}

// WriteBytesFunc persists the file content for a record being created. It is
// invoked inside the creation transaction once the version is assigned, and
// returns the logical storage path the bytes were written to. An error aborts
// the transaction before any row is inserted.
type WriteBytesFunc func(ctx context.Context, version int) (string, error)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here — strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record inside a single transaction that
	// serializes version assignment per content hash and uid assignment
	// globally. writeBytes runs between version assignment and the insert so
	// that no row ever references unwritten bytes.
	Create(ctx context.Context, doc *model.Document, writeBytes WriteBytesFunc) (*model.Document, error)

	// FindByID returns a document by its ID within the given scope.
	FindByID(ctx context.Context, id string, scope Scope) (*model.Document, error)

	// List returns a filtered, paginated list of documents and the total
	// row count for the same filter.
	List(ctx context.Context, q ListQuery) (*PageResult[model.Document], error)

	// SoftDelete marks an active document as trashed. Already-trashed rows
	// are left untouched without error.
	SoftDelete(ctx context.Context, id string) error

	// Restore clears the trashed mark. Returns sql.ErrNoRows when the id does
	// not resolve to a trashed document.
	Restore(ctx context.Context, id string) error

	// Delete removes a document row permanently, whatever its state.
	Delete(ctx context.Context, id string) error
}

// ListQuery holds the filter and pagination parameters for List.
// OwnerID, when non-empty, restricts results to that owner; the caller decides
// whether the actor's administrative bypass leaves it empty.
type ListQuery struct {
	Scope   Scope
	Search  string
	OwnerID string
	Limit   int
	Offset  int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
