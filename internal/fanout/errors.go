package fanout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fetch"
)

var (
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrStoreWrite              = errors.New("store write failure")
	ErrInvalidEvent            = errors.New("invalid fan-out event")
	// ErrPartialFetch matches a fetch engine failure on some of the followed users.
	ErrPartialFetch = fetch.ErrPartialFetch
)

// ConfigurationError is returned when no strategy is registered under Name.
// It is a startup failure, never a per-request one.
type ConfigurationError struct {
	Name      string
	Available []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown fan-out strategy %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// CollaboratorError wraps a failed follower-graph or profile lookup.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrCollaboratorUnavailable, e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// StoreWriteError is a failed timeline upsert. Retrying the same post is safe.
type StoreWriteError struct {
	PostID string
	Err    error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s: post %s: %v", ErrStoreWrite, e.PostID, e.Err)
}

func (e *StoreWriteError) Is(target error) bool {
	return target == ErrStoreWrite
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

func graphError(op string, err error) error {
	return &CollaboratorError{Collaborator: "follower-graph", Op: op, Err: err}
}

func profileError(op string, err error) error {
	return &CollaboratorError{Collaborator: "user-profile", Op: op, Err: err}
}
