package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/postline/postline/internal/publisher"
	"github.com/postline/postline/internal/scheduler/domain"
	"github.com/postline/postline/internal/scheduler/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockScheduledPostRepository struct {
	mock.Mock
}

func (m *MockScheduledPostRepository) Create(ctx context.Context, post *domain.ScheduledPost) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockScheduledPostRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledPost, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*domain.ScheduledPost); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScheduledPostRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.ScheduledPost, error) {
	args := m.Called(ctx, id, userID)
	if p, ok := args.Get(0).(*domain.ScheduledPost); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScheduledPostRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ScheduledPost, error) {
	args := m.Called(ctx, userID, limit)
	if p, ok := args.Get(0).([]*domain.ScheduledPost); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScheduledPostRepository) MarkPosted(ctx context.Context, id, jobID uuid.UUID, postedPostIDs []string) (bool, error) {
	args := m.Called(ctx, id, jobID, postedPostIDs)
	return args.Bool(0), args.Error(1)
}

func (m *MockScheduledPostRepository) MarkFailed(ctx context.Context, id, jobID uuid.UUID, errorMessage string) (bool, error) {
	args := m.Called(ctx, id, jobID, errorMessage)
	return args.Bool(0), args.Error(1)
}

func (m *MockScheduledPostRepository) MarkCancelled(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockScheduledPostRepository) MarkRetried(ctx context.Context, id, userID, newJobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, userID, newJobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockScheduledPostRepository) SwapJob(ctx context.Context, id, oldJobID, newJobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, oldJobID, newJobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockScheduledPostRepository) AttachJob(ctx context.Context, id, newJobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, newJobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockScheduledPostRepository) ListScheduledRefs(ctx context.Context, limit int) ([]domain.JobRef, error) {
	args := m.Called(ctx, limit)
	if refs, ok := args.Get(0).([]domain.JobRef); ok {
		return refs, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Add(ctx context.Context, postID, userID uuid.UUID, delay time.Duration) (uuid.UUID, error) {
	args := m.Called(ctx, postID, userID, delay)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockJobQueue) GetJob(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	args := m.Called(ctx, id)
	if j, ok := args.Get(0).(*queue.Job); ok {
		return j, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJobQueue) Remove(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobQueue) AcquireDue(ctx context.Context, now time.Time, limit int) ([]*queue.Job, error) {
	args := m.Called(ctx, now, limit)
	if jobs, ok := args.Get(0).([]*queue.Job); ok {
		return jobs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJobQueue) Complete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobQueue) Release(ctx context.Context, id uuid.UUID, runAt time.Time) error {
	args := m.Called(ctx, id, runAt)
	return args.Error(0)
}

func (m *MockJobQueue) ReleaseExpired(ctx context.Context, leasedBefore time.Time) (int64, error) {
	args := m.Called(ctx, leasedBefore)
	return args.Get(0).(int64), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, contentType domain.ContentType, payload json.RawMessage) (*publisher.Result, error) {
	args := m.Called(ctx, contentType, payload)
	if r, ok := args.Get(0).(*publisher.Result); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingEvents captures lifecycle events instead of publishing them.
type recordingEvents struct {
	mu       sync.Mutex
	subjects []string
	events   []PostEvent
}

func (r *recordingEvents) Publish(ctx context.Context, subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evt PostEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	r.subjects = append(r.subjects, subject)
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingEvents) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}
