package storage

import "errors"

// Sentinel errors for blob store operations.
var (
	ErrInvalidName  = errors.New("invalid object name")
	ErrNotFound     = errors.New("object not found")
	ErrNoSuchBucket = errors.New("bucket does not exist")
	ErrAccessDenied = errors.New("access denied")
	ErrThrottled    = errors.New("request throttled")
)
