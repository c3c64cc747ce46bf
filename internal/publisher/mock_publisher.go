package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/postline/postline/internal/scheduler/domain"
)

// MockPublisher fakes the platform for development and integration testing.
// It can be configured to fail every call or to add artificial latency.
type MockPublisher struct {
	logger     *slog.Logger
	shouldFail bool
	delay      time.Duration
}

func NewMockPublisher(logger *slog.Logger, shouldFail bool, delay time.Duration) *MockPublisher {
	return &MockPublisher{
		logger:     logger.With("provider", "mock"),
		shouldFail: shouldFail,
		delay:      delay,
	}
}

func (m *MockPublisher) Publish(ctx context.Context, contentType domain.ContentType, payload json.RawMessage) (*Result, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, &PublishError{Code: "timeout", Message: ctx.Err().Error()}
		}
	}

	if m.shouldFail {
		m.logger.InfoContext(ctx, "Mock publisher failing by configuration", "content_type", contentType)
		return nil, &PublishError{Code: "mock_failure", Message: "mock publisher configured to fail"}
	}

	ids := []string{uuid.NewString()}
	if contentType == domain.ContentTypeThread {
		// A thread payload is a JSON array of posts; fake one id per entry.
		var parts []json.RawMessage
		if err := json.Unmarshal(payload, &parts); err == nil && len(parts) > 1 {
			for i := 1; i < len(parts); i++ {
				ids = append(ids, uuid.NewString())
			}
		}
	}

	m.logger.InfoContext(ctx, "Mock publish succeeded", "content_type", contentType, "post_ids", ids)
	return &Result{PlatformPostIDs: ids}, nil
}
