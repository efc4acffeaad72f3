package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalog operations
var (
	// ErrAssetNotFound indicates the referenced asset is not in the catalog
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInvalidTransition indicates the requested status change is not legal
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDeleteNotPermitted indicates the delete capability gate is closed
	ErrDeleteNotPermitted = errors.New("permanent delete not permitted")
)

// FailureClass categorizes fetch failures for placeholder selection.
type FailureClass int

const (
	FailureGeneric FailureClass = iota
	FailureNetwork
	FailureCloud
	FailureDecode
)

// String returns a human-readable representation of the failure class
func (c FailureClass) String() string {
	switch c {
	case FailureNetwork:
		return "network"
	case FailureCloud:
		return "cloud"
	case FailureDecode:
		return "decode"
	default:
		return "generic"
	}
}

// FetchError is a classified failure from the asset source. The pipeline
// maps it to a placeholder; it never reaches rendering code.
type FetchError struct {
	Class FailureClass
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %v", e.Class, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with a failure class.
func NewFetchError(class FailureClass, err error) *FetchError {
	return &FetchError{Class: class, Err: err}
}

// ClassOf extracts the failure class from an error chain, defaulting to
// FailureGeneric for unclassified errors.
func ClassOf(err error) FailureClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return FailureGeneric
}
