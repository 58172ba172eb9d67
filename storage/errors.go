package storage

import (
	"errors"
	"fmt"
)

// Common storage errors.
var (
	ErrNotFound       = errors.New("object not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrBucketNotFound = errors.New("bucket not found")
)

type ErrorCode string

const (
	CodeNotFound       ErrorCode = "NotFound"
	CodeAccessDenied   ErrorCode = "AccessDenied"
	CodeBucketNotFound ErrorCode = "BucketNotFound"
	CodeInternalError  ErrorCode = "InternalError"
)

// StorageError carries the classified failure together with the object it
// concerns.
type StorageError struct {
	Code   ErrorCode
	Bucket string
	Key    string
	Err    error
}

func (e *StorageError) Error() string {
	loc := Scheme + e.Bucket + "/" + e.Key
	if e.Err != nil {
		return fmt.Sprintf("storage %s %s: %v", e.Code, loc, e.Err)
	}
	return fmt.Sprintf("storage %s %s", e.Code, loc)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a StorageError against the sentinel of its code.
func (e *StorageError) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == ErrNotFound
	case CodeAccessDenied:
		return target == ErrAccessDenied
	case CodeBucketNotFound:
		return target == ErrBucketNotFound
	}
	return false
}

// IsNotFound reports whether the object itself is missing. A missing bucket
// is not reported as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied checks if error is an "access denied" error.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}
