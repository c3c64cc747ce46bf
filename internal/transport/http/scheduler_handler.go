package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/postline/postline/internal/scheduler/domain"
	"github.com/postline/postline/internal/transport/http/middleware"
)

// PostScheduler is the slice of the application service the handler needs.
type PostScheduler interface {
	Schedule(ctx context.Context, userID uuid.UUID, contentType domain.ContentType, payload json.RawMessage, scheduledFor time.Time) (*domain.ScheduledPost, error)
	Cancel(ctx context.Context, userID, id uuid.UUID) error
	Retry(ctx context.Context, userID, id uuid.UUID) (uuid.UUID, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.ScheduledPost, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ScheduledPost, error)
}

// SchedulerHandler serves the scheduled-posts HTTP surface.
type SchedulerHandler struct {
	service  PostScheduler
	logger   *slog.Logger
	validate *validator.Validate
}

func NewSchedulerHandler(service PostScheduler, logger *slog.Logger, validate *validator.Validate) *SchedulerHandler {
	return &SchedulerHandler{
		service:  service,
		logger:   logger.With("handler", "scheduler"),
		validate: validate,
	}
}

// RegisterRoutes mounts the handler on a chi router. Auth middleware must
// already have run.
func (h *SchedulerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/schedule", h.Schedule)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/retry", h.Retry)
}

func (h *SchedulerHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		http.Error(w, "User authentication details not found", http.StatusUnauthorized)
		return
	}

	var reqDTO SchedulePostRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode schedule request body", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Schedule request validation failed", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	post, err := h.service.Schedule(ctx, user.ID, domain.ContentType(reqDTO.ContentType), reqDTO.Payload, reqDTO.ScheduledFor)
	if err != nil {
		h.writeDomainError(w, ctx, err, "schedule")
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, toScheduledPostDTO(post))
}

func (h *SchedulerHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(ctx, user.ID, id); err != nil {
		h.writeDomainError(w, ctx, err, "cancel")
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, CancelResponseDTO{Success: true})
}

func (h *SchedulerHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	jobID, err := h.service.Retry(ctx, user.ID, id)
	if err != nil {
		h.writeDomainError(w, ctx, err, "retry")
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, RetryResponseDTO{Success: true, JobID: jobID.String()})
}

func (h *SchedulerHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	post, err := h.service.Get(ctx, user.ID, id)
	if err != nil {
		h.writeDomainError(w, ctx, err, "get")
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, toScheduledPostDTO(post))
}

func (h *SchedulerHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		http.Error(w, "User authentication details not found", http.StatusUnauthorized)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	posts, err := h.service.List(ctx, user.ID, limit)
	if err != nil {
		h.writeDomainError(w, ctx, err, "list")
		return
	}

	dtos := make([]ScheduledPostDTO, len(posts))
	for i, post := range posts {
		dtos[i] = toScheduledPostDTO(post)
	}
	h.writeJSON(ctx, w, http.StatusOK, dtos)
}

// callerAndID extracts the authenticated user and the {id} route parameter.
func (h *SchedulerHandler) callerAndID(w http.ResponseWriter, r *http.Request) (middleware.AuthenticatedUser, uuid.UUID, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User authentication details not found", http.StatusUnauthorized)
		return middleware.AuthenticatedUser{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return middleware.AuthenticatedUser{}, uuid.Nil, false
	}
	return user, id, true
}

// writeDomainError maps domain errors to status codes. Ownership failures
// look identical to missing records.
func (h *SchedulerHandler) writeDomainError(w http.ResponseWriter, ctx context.Context, err error, operation string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Scheduled post not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyPosted),
		errors.Is(err, domain.ErrNotRetryable),
		errors.Is(err, domain.ErrInvalidContentType),
		errors.Is(err, domain.ErrEmptyPayload):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.ErrorContext(ctx, "Operation failed", "operation", operation, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *SchedulerHandler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode response", "error", err)
	}
}
