package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/postline/postline/internal/scheduler/domain"
)

// Result is what a successful publish returns. A thread yields one platform
// id per post in the thread.
type Result struct {
	PlatformPostIDs []string
}

// PublishError is a failure reported by the platform. Message ends up on the
// record's error field, so it should be meaningful to the post's owner.
type PublishError struct {
	Code    string
	Message string
}

func (e *PublishError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("publish failed (%s): %s", e.Code, e.Message)
	}
	return "publish failed: " + e.Message
}

// Publisher sends content to the external social platform. The scheduler
// treats it as a black box: one blocking call under a caller-set deadline,
// success with platform ids or an error.
type Publisher interface {
	Publish(ctx context.Context, contentType domain.ContentType, payload json.RawMessage) (*Result, error)
}
