package storage

import "errors"

var (
	// ErrStorageUnavailable indicates the backing store could not be reached
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrRangeNotSatisfiable indicates a requested byte range falls outside the
	// object, typically because the object shrank after its size was probed
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")

	// ErrNotFound indicates the object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrPresignUnsupported indicates the backend cannot issue presigned URLs
	ErrPresignUnsupported = errors.New("presigned uploads not supported by this storage backend")
)
