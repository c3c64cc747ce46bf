package http

import (
	"encoding/json"
	"time"

	"github.com/postline/postline/internal/scheduler/domain"
)

// --- Request DTOs ---

// SchedulePostRequestDTO creates a new scheduled post. The caller's user id
// comes from the session token, never from the body.
type SchedulePostRequestDTO struct {
	ContentType  string          `json:"content_type" validate:"required,oneof=single_post thread"`
	Payload      json.RawMessage `json:"payload" validate:"required"`
	ScheduledFor time.Time       `json:"scheduled_for" validate:"required"`
}

// --- Response DTOs ---

// ScheduledPostDTO represents a scheduled post in API responses.
type ScheduledPostDTO struct {
	ID            string          `json:"id"`
	ContentType   string          `json:"content_type"`
	Payload       json.RawMessage `json:"payload"`
	ScheduledFor  time.Time       `json:"scheduled_for"`
	Status        string          `json:"status"`
	JobID         string          `json:"job_id,omitempty"`
	PostedPostIDs []string        `json:"posted_post_ids,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CancelResponseDTO acknowledges a cancellation.
type CancelResponseDTO struct {
	Success bool `json:"success"`
}

// RetryResponseDTO acknowledges a retry and exposes the new job id.
type RetryResponseDTO struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

func toScheduledPostDTO(post *domain.ScheduledPost) ScheduledPostDTO {
	dto := ScheduledPostDTO{
		ID:            post.ID.String(),
		ContentType:   string(post.ContentType),
		Payload:       post.Payload,
		ScheduledFor:  post.ScheduledFor,
		Status:        string(post.Status),
		PostedPostIDs: post.PostedPostIDs,
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
	}
	if post.JobID.Valid {
		dto.JobID = post.JobID.UUID.String()
	}
	if post.ErrorMessage.Valid {
		dto.Error = post.ErrorMessage.String
	}
	return dto
}
