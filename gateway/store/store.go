// Package store defines the persistence layer for completed Responses-API
// documents ("Response Store"). Available implementations:
//
//   - memory: in-memory store for development, testing, and store_type=in_memory
//   - mongo: MongoDB store for store_type=mongodb production deployments
//
// To add a new implementation, create a subpackage that implements the Store
// interface and returns store.ErrNotFound for missing responses.
package store

import (
	"context"
	"errors"

	"github.com/masaicai/openresponses/gateway/responses"
)

// ErrNotFound is returned when a response is not found in the store.
var ErrNotFound = errors.New("response not found")

// Store persists Response documents for later retrieval via
// GET /v1/responses/{id} and /v1/responses/{id}/input_items, and supports
// their deletion. Implementations must be safe for concurrent
// use; store is only consulted when the request set store=true. On
// /v1/responses an omitted field defaults to true; /v1/chat/completions
// persists only on an explicit store=true.
type Store interface {
	// Save persists resp, replacing any existing document with the same ID.
	Save(ctx context.Context, resp *responses.Response, inputItems []responses.InputItem) error

	// Get retrieves a response by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*responses.Response, error)

	// Delete removes a response by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// ListInputItems returns the input items originally submitted alongside
	// the response with the given ID. Returns ErrNotFound if absent.
	ListInputItems(ctx context.Context, id string) ([]responses.InputItem, error)
}
