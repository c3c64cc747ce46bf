package domain

import "errors"

var (
	// ErrNotFound covers both a missing record and a record owned by another
	// user; callers must not be able to tell the two apart.
	ErrNotFound = errors.New("scheduled post not found")
	// ErrAlreadyPosted rejects cancellation of a published post.
	ErrAlreadyPosted = errors.New("post has already been published")
	// ErrNotRetryable rejects retry of anything but a failed post.
	ErrNotRetryable = errors.New("only failed posts can be retried")
	// ErrInvalidContentType rejects payloads of an unknown shape.
	ErrInvalidContentType = errors.New("unknown content type")
	// ErrEmptyPayload rejects scheduling without content.
	ErrEmptyPayload = errors.New("payload must not be empty")
)
