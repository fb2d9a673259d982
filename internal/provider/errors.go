package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the vendor has no record of what was asked
	// for, either because the commit never built there or because the
	// vendor's retention window has passed
	ErrNotFound = errors.New("not found on vendor")

	// ErrDuplicateBuild indicates vendor history produced two builds
	// for the same commit, which the build directory cannot represent
	ErrDuplicateBuild = errors.New("duplicate build for commit")

	// ErrUnauthorized indicates vendor authentication failed
	ErrUnauthorized = errors.New("vendor authentication failed")

	// ErrVendorUnavailable indicates the vendor is temporarily unavailable
	ErrVendorUnavailable = errors.New("vendor temporarily unavailable")

	// ErrPaginationResume indicates a vendor whose history can only be
	// read once per process was asked to read it again
	ErrPaginationResume = errors.New("vendor does not support resuming pagination")
)

// VendorError represents a vendor-specific HTTP error
type VendorError struct {
	Status  int
	Message string
	Err     error
}

func (e *VendorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vendor error %d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("vendor error %d: %s", e.Status, e.Message)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}
