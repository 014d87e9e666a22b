// Package resource provides one manager per cloud resource family. Managers
// expose create/describe/delete operations that are idempotent or guarded
// against duplicate-resource errors, and always resolve resources by name or
// tag so teardown can run with no state from the provisioning run.
package resource

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
)

// Status of a cloud resource as observed through describe calls
type Status string

// Resource status values. Transitions are polled, never pushed.
const (
	StatusPending  Status = "PENDING"
	StatusCreating Status = "CREATING"
	StatusActive   Status = "ACTIVE"
	StatusDeleting Status = "DELETING"
	StatusDeleted  Status = "DELETED"
	StatusFailed   Status = "FAILED"
)

// Spec identifies a cloud object uniquely by name within a region scope.
// Immutable once submitted to a manager.
type Spec struct {
	Kind string
	Name string
	Tags map[string]string
}

// Handle is the provider-assigned identity produced by a successful create.
// It is held only for the orchestration run that created it; teardown
// re-resolves resources by name instead.
type Handle struct {
	Kind   string
	ID     string
	Status Status
}

// Lifecycle is the common contract each resource family manager satisfies
// for the orchestrators.
type Lifecycle interface {
	Describe(ctx context.Context, name string) (Status, error)
	Delete(ctx context.Context, name string) error
}

// ErrNotFound indicates a name/tag lookup matched nothing
var ErrNotFound = errors.New("resource not found")

// errorCode extracts the provider error code, or "" for non-API errors
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
