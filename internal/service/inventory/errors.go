package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates the request was rejected before any store access.
	ErrValidation = errors.New("invalid scan request")

	// ErrStoreUnavailable indicates the backing workbook could not be read or written.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrWriteFailed indicates the workbook was read but the write back failed.
	ErrWriteFailed = fmt.Errorf("%w: write failed", ErrStoreUnavailable)

	// ErrSectionMissing indicates the inventory sheet is absent from the workbook.
	ErrSectionMissing = errors.New("inventory sheet missing")

	// ErrClosed is returned for writes submitted after the service was closed.
	ErrClosed = errors.New("inventory service closed")

	// ErrBackupUnsupported is returned when the store cannot produce file backups.
	ErrBackupUnsupported = errors.New("store does not support backups")
)
