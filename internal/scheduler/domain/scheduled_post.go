package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a scheduled post.
type Status string

const (
	StatusScheduled Status = "scheduled" // waiting for its publish job to run
	StatusPosted    Status = "posted"    // published successfully, terminal
	StatusFailed    Status = "failed"    // publish attempt failed, retryable
	StatusCancelled Status = "cancelled" // withdrawn by the owner, terminal
)

// ContentType describes the shape of the payload handed to the publisher.
type ContentType string

const (
	ContentTypeSinglePost ContentType = "single_post"
	ContentTypeThread     ContentType = "thread"
)

// Valid reports whether ct is a known content type.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTypeSinglePost, ContentTypeThread:
		return true
	}
	return false
}

// ScheduledPost is the unit of work tracked by the scheduler. The record is
// the single source of truth; the publish job carries only its id.
//
// JobID is non-null exactly while Status is StatusScheduled. Every
// transition into StatusScheduled issues a fresh JobID so a job from a
// prior attempt can never be mistaken for the current one.
type ScheduledPost struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	ContentType   ContentType     `json:"content_type"`
	Payload       json.RawMessage `json:"payload"`
	ScheduledFor  time.Time       `json:"scheduled_for"`
	Status        Status          `json:"status"`
	JobID         uuid.NullUUID   `json:"job_id,omitempty"`
	PostedPostIDs []string        `json:"posted_post_ids,omitempty"` // platform ids, set once on posting
	ErrorMessage  sql.NullString  `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewScheduledPost builds a record in the initial state. The job id is
// attached by the scheduler once the queue entry exists.
func NewScheduledPost(userID uuid.UUID, contentType ContentType, payload json.RawMessage, scheduledFor time.Time) *ScheduledPost {
	now := time.Now().UTC()
	return &ScheduledPost{
		ID:           uuid.New(),
		UserID:       userID,
		ContentType:  contentType,
		Payload:      payload,
		ScheduledFor: scheduledFor.UTC(),
		Status:       StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
