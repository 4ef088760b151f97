package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Handlers translate these to HTTP status codes via a
// single mapError function in the api package.
var (
	ErrNotFound  = errors.New("not found")
	ErrQueueFull = errors.New("queue is at capacity, try again later")
)

// ValidationError aggregates every violated rule for one operation, not
// just the first, so the caller can fix all of them in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, ", ")
}

// ConflictError is an illegal state transition. It carries the current
// status and the attempted action so the refusal is never silent.
type ConflictError struct {
	Status CampaignStatus
	Action CampaignAction
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s campaign with status %s", e.Action, e.Status)
}

// PreconditionError signals a missing or inactive dependency, such as a
// sender snapshot that has not replicated yet.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}
