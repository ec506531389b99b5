// Package dispatch validates user input and turns it into backend writes.
//
// A Dispatcher never updates local state. The caller learns about the result
// of a write from the next snapshot on the live feed.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dukerupert/larder/internal/model"
)

// Backend performs writes against the collection store.
type Backend interface {
	Push(ctx context.Context, collection model.Collection, fields map[string]any) (string, error)
	Update(ctx context.Context, collection model.Collection, id string, fields map[string]any) error
	Remove(ctx context.Context, collection model.Collection, id string) error
}

var (
	ErrNoPendingDelete = errors.New("no delete pending")
	ErrEmptyUpdate     = errors.New("nothing to update")
)

// Dispatcher issues validated writes for a single collection.
type Dispatcher struct {
	schema  Schema
	backend Backend
}

func New(collection model.Collection, backend Backend) (*Dispatcher, error) {
	schema, ok := SchemaFor(collection)
	if !ok {
		return nil, fmt.Errorf("no schema for collection %q", collection)
	}
	return &Dispatcher{schema: schema, backend: backend}, nil
}

// Create validates form and pushes a new record. It returns the generated id.
// A *ValidationError means the backend was not called.
func (d *Dispatcher) Create(ctx context.Context, form Form) (string, error) {
	fields, err := d.schema.Parse(form, false)
	if err != nil {
		return "", err
	}
	id, err := d.backend.Push(ctx, d.schema.Collection, fields)
	if err != nil {
		return "", fmt.Errorf("create %s record: %w", d.schema.Collection, err)
	}
	return id, nil
}

// Update sends only the submitted fields of form.
func (d *Dispatcher) Update(ctx context.Context, id string, form Form) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "is required")
	}
	fields, err := d.schema.Parse(form, true)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrEmptyUpdate
	}
	if err := d.backend.Update(ctx, d.schema.Collection, id, fields); err != nil {
		return fmt.Errorf("update %s record: %w", d.schema.Collection, err)
	}
	return nil
}

// Confirmation holds at most one pending delete until it is confirmed or
// cancelled.
type Confirmation struct {
	mu         sync.Mutex
	collection model.Collection
	backend    Backend
	pending    string
}

func (d *Dispatcher) Confirmation() *Confirmation {
	return &Confirmation{collection: d.schema.Collection, backend: d.backend}
}

// RequestDelete marks id for deletion, replacing any earlier request.
func (c *Confirmation) RequestDelete(id string) {
	c.mu.Lock()
	c.pending = id
	c.mu.Unlock()
}

// Pending returns the id awaiting confirmation, or "".
func (c *Confirmation) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Cancel drops the pending request without touching the backend.
func (c *Confirmation) Cancel() {
	c.mu.Lock()
	c.pending = ""
	c.mu.Unlock()
}

// Confirm removes the pending record. The request is cleared even if the
// removal fails.
func (c *Confirmation) Confirm(ctx context.Context) error {
	c.mu.Lock()
	id := c.pending
	c.pending = ""
	c.mu.Unlock()

	if id == "" {
		return ErrNoPendingDelete
	}
	if err := c.backend.Remove(ctx, c.collection, id); err != nil {
		return fmt.Errorf("delete %s record %s: %w", c.collection, id, err)
	}
	return nil
}
