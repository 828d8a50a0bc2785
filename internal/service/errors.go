package service

import (
	"errors"

	"google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"

	"github.com/emrgen/revision/internal/store"
)

var (
	// ErrCrossBranchParent is returned when a version's parent lives on a
	// different branch.
	ErrCrossBranchParent = errors.New("parent version belongs to a different branch")
	// ErrContentMismatch is returned when a version does not belong to the
	// content it was addressed through.
	ErrContentMismatch = errors.New("version does not belong to this content")
	// ErrAlreadyActive is returned when the target of an activation or
	// rollback is already the active version.
	ErrAlreadyActive = errors.New("version is already active")
	// ErrSnapshotCorrupted is returned when a stored content blob cannot
	// be decoded.
	ErrSnapshotCorrupted = errors.New("version snapshot is corrupted")
)

// status helpers keeping the error taxonomy in one place: InvalidArgument
// and NotFound map to caller mistakes, FailedPrecondition to invariant
// conflicts, Internal to storage faults.

func invalidArgument(msg string) error {
	return status.New(codes.InvalidArgument, msg).Err()
}

func notFound(msg string) error {
	return status.New(codes.NotFound, msg).Err()
}

func conflict(msg string) error {
	return status.New(codes.FailedPrecondition, msg).Err()
}

func forbidden(msg string) error {
	return status.New(codes.PermissionDenied, msg).Err()
}

func internal(err error) error {
	return status.New(codes.Internal, err.Error()).Err()
}

// storeErr converts store sentinel errors into their status codes; anything
// unrecognized is an Internal storage fault.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionNotFound),
		errors.Is(err, store.ErrBranchNotFound),
		errors.Is(err, store.ErrRollbackRecordNotFound),
		errors.Is(err, store.ErrStepNotFound),
		errors.Is(err, store.ErrNoActiveVersion):
		return status.New(codes.NotFound, err.Error()).Err()
	default:
		return internal(err)
	}
}

// IsConflict reports whether an engine error is an invariant conflict.
func IsConflict(err error) bool {
	return status.Code(err) == codes.FailedPrecondition
}

// IsNotFound reports whether an engine error is a missing-entity error.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
