package engine

import (
	"context"

	"orbit-station/internal/ids"
	"orbit-station/internal/model"
)

// Executor is implemented once per operation kind (spec.md §4.6): it
// declares the resource/action pair used for creation-time authorization,
// validates the operation's input, and performs the mutation once the
// engine has moved the owning request to Processing.
type Executor interface {
	// Authorize returns the (resource, action) pair checked against the
	// permission engine when a request carrying this operation is created,
	// and the resource id to scope that check to (nil for operations with
	// no single target, e.g. AddAccount).
	Authorize(op model.Operation) (resource string, action string, resourceID *ids.ID)

	// Validate checks the operation's input against the domain model and
	// repositories (referenced-id existence, uniqueness that isn't index
	// enforced, etc.) before a request is ever persisted.
	Validate(op model.Operation) error

	// Execute performs the mutation. It runs only after the engine has
	// durably recorded the request as Processing (spec.md §4.5); its
	// returned map becomes the request's execution details on success.
	Execute(ctx context.Context, req model.Request) (map[string]string, error)
}
