// Package remote is the adapter to the remote document store: collections of
// JSON documents addressed by id, queried by field equality, and observable
// through live subscriptions.
package remote

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnavailable       = errors.New("remote store unavailable")
	ErrUnsupportedFilter = errors.New("unsupported filter field")
)

// Collection names.
const (
	Users         = "users"
	Babies        = "babies"
	Milestones    = "milestones"
	Appointments  = "appointments"
	Notifications = "notifications"
)

// Document is one stored record. Data holds the raw field values exactly as
// the store returned them; dates may be timestamp objects or strings.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter selects documents whose Field equals one of Values. The zero Filter
// matches every document of the collection.
type Filter struct {
	Field  string
	Values []string
}

// Where builds a Filter on field.
func Where(field string, values ...string) Filter {
	return Filter{Field: field, Values: values}
}

// filterFields are the fields a Filter may test. Each one has an expression
// index in the documents table and is inlined into queries as a literal.
var filterFields = map[string]bool{
	"parentId":   true,
	"receiverId": true,
	"babyId":     true,
}

func (f Filter) validate() error {
	if f.Field != "" && !filterFields[f.Field] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFilter, f.Field)
	}
	return nil
}

func (f Filter) matches(data map[string]any) bool {
	if f.Field == "" {
		return true
	}
	v, ok := data[f.Field].(string)
	if !ok {
		return false
	}
	for _, want := range f.Values {
		if v == want {
			return true
		}
	}
	return false
}

// Snapshot is the full result set of a subscription at one point in time.
// Err is set when the store could not be queried; Documents is then empty
// and consumers should keep their previous view.
type Snapshot struct {
	Documents []Document
	Err       error
}

type Store interface {
	// Fetch returns matching documents ordered by id.
	Fetch(ctx context.Context, collection string, f Filter) ([]Document, error)
	// Get returns one document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Put creates or replaces a document.
	Put(ctx context.Context, collection, id string, data map[string]any) error
	// Update merges fields into an existing document or returns ErrNotFound.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Listen delivers a snapshot of the matching documents now and after
	// every change, until the subscription or ctx is cancelled.
	Listen(ctx context.Context, collection string, f Filter) (*Subscription, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
