// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Domain is the ErrorInfo domain attached to every mapped status.
const Domain = "swipe-engine"

var (
	// ErrNotFound means a record the operation depends on is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means a record exists but lacks a required field.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict means a concurrent write invalidated the operation's reads.
	ErrConflict = errors.New("conflict")
	// ErrSwipeCapExceeded is returned when an enforced swipe cap has no room.
	ErrSwipeCapExceeded = errors.New("swipe cap exceeded")
	// ErrEmptyRebalance aborts a recompute that would write no shards.
	ErrEmptyRebalance = errors.New("rebalance produced no shards")
	// ErrAlreadyRunning is returned when another recompute holds the lock.
	ErrAlreadyRunning = errors.New("recompute already running")
	// ErrInvalidArgument marks bad caller input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// InvalidState wraps ErrInvalidState with the record and the missing field.
func InvalidState(kind, id, field string) error {
	return fmt.Errorf("%s %q has no %s: %w", kind, id, field, ErrInvalidState)
}

// Invalid wraps ErrInvalidArgument.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Map converts repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return withInfo(codes.NotFound, "record not found", "NOT_FOUND")

	case errors.Is(err, ErrNotFound):
		return withInfo(codes.NotFound, err.Error(), "NOT_FOUND")

	case errors.Is(err, ErrInvalidState):
		return withInfo(codes.FailedPrecondition, err.Error(), "INVALID_STATE")

	case errors.Is(err, ErrConflict):
		return withInfo(codes.Aborted, err.Error(), "CONFLICT")

	case errors.Is(err, ErrSwipeCapExceeded):
		return withInfo(codes.ResourceExhausted, err.Error(), "SWIPE_CAP_EXCEEDED")

	case errors.Is(err, ErrAlreadyRunning):
		return withInfo(codes.Aborted, err.Error(), "ALREADY_RUNNING")

	case errors.Is(err, ErrEmptyRebalance):
		return withInfo(codes.FailedPrecondition, err.Error(), "EMPTY_REBALANCE")

	case errors.Is(err, ErrInvalidArgument):
		return withInfo(codes.InvalidArgument, err.Error(), "INVALID_ARGUMENT")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// fallback → bubble up error message for debugging
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return withInfo(codes.InvalidArgument, msg, "INVALID_ARGUMENT")
}

// Unauthenticated creates a gRPC Unauthenticated error.
func Unauthenticated(msg string) error {
	return withInfo(codes.Unauthenticated, msg, "UNAUTHENTICATED")
}

func withInfo(code codes.Code, msg, reason string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: Domain})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
