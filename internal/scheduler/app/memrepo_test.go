package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postline/postline/internal/scheduler/domain"
)

// memPostRepo is an in-memory ScheduledPostRepository with the same
// compare-and-set transition semantics as the Postgres implementation. It
// backs the concurrency tests, where a mock's canned answers cannot model
// two writers racing on one record.
type memPostRepo struct {
	mu    sync.Mutex
	posts map[uuid.UUID]*domain.ScheduledPost
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[uuid.UUID]*domain.ScheduledPost)}
}

func (r *memPostRepo) Create(ctx context.Context, post *domain.ScheduledPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *memPostRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *post
	return &cp, nil
}

func (r *memPostRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *post
	return &cp, nil
}

func (r *memPostRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ScheduledPost
	for _, post := range r.posts {
		if post.UserID == userID && len(out) < limit {
			cp := *post
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPostRepo) MarkPosted(ctx context.Context, id, jobID uuid.UUID, postedPostIDs []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != domain.StatusScheduled || !post.JobID.Valid || post.JobID.UUID != jobID {
		return false, nil
	}
	post.Status = domain.StatusPosted
	post.PostedPostIDs = postedPostIDs
	post.JobID = uuid.NullUUID{}
	post.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memPostRepo) MarkFailed(ctx context.Context, id, jobID uuid.UUID, errorMessage string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != domain.StatusScheduled || !post.JobID.Valid || post.JobID.UUID != jobID {
		return false, nil
	}
	post.Status = domain.StatusFailed
	post.ErrorMessage.String = errorMessage
	post.ErrorMessage.Valid = true
	post.JobID = uuid.NullUUID{}
	post.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memPostRepo) MarkCancelled(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.UserID != userID || post.Status == domain.StatusPosted {
		return false, nil
	}
	post.Status = domain.StatusCancelled
	post.JobID = uuid.NullUUID{}
	post.ErrorMessage = sql.NullString{}
	post.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memPostRepo) MarkRetried(ctx context.Context, id, userID, newJobID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.UserID != userID || post.Status != domain.StatusFailed {
		return false, nil
	}
	post.Status = domain.StatusScheduled
	post.JobID = uuid.NullUUID{UUID: newJobID, Valid: true}
	post.ErrorMessage.Valid = false
	post.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memPostRepo) SwapJob(ctx context.Context, id, oldJobID, newJobID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != domain.StatusScheduled || !post.JobID.Valid || post.JobID.UUID != oldJobID {
		return false, nil
	}
	post.JobID = uuid.NullUUID{UUID: newJobID, Valid: true}
	return true, nil
}

func (r *memPostRepo) AttachJob(ctx context.Context, id, newJobID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != domain.StatusScheduled || post.JobID.Valid {
		return false, nil
	}
	post.JobID = uuid.NullUUID{UUID: newJobID, Valid: true}
	return true, nil
}

func (r *memPostRepo) ListScheduledRefs(ctx context.Context, limit int) ([]domain.JobRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []domain.JobRef
	for _, post := range r.posts {
		if post.Status == domain.StatusScheduled && len(refs) < limit {
			refs = append(refs, domain.JobRef{PostID: post.ID, JobID: post.JobID})
		}
	}
	return refs, nil
}
