package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nexus/internal/access"
	"nexus/internal/model"
	"nexus/internal/notify"
	"nexus/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type SubmitRoleRequest struct {
	RequestedRole string `json:"requested_role" binding:"required"`
}

type ReviewRoleRequest struct {
	Decision   string  `json:"decision" binding:"required,oneof=approved rejected"`
	AdminNotes *string `json:"admin_notes"`
}

type UpdateAdminNotesRequest struct {
	AdminNotes *string `json:"admin_notes"`
}

type RoleRequestResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Username      string  `json:"username,omitempty"`
	RequestedRole string  `json:"requested_role"`
	Status        string  `json:"status"`
	AdminNotes    *string `json:"admin_notes"`
	ReviewedBy    *string `json:"reviewed_by"`
	ReviewerName  string  `json:"reviewer_name,omitempty"`
	ReviewedAt    *string `json:"reviewed_at"`
	CreatedAt     string  `json:"created_at"`
}

// --- Interface ---

type RoleRequestService interface {
	Submit(ctx context.Context, userID uuid.UUID, req SubmitRoleRequest) (*RoleRequestResponse, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]RoleRequestResponse, error)
	List(ctx context.Context, status string, page, limit int) ([]RoleRequestResponse, int64, error)
	Review(ctx context.Context, reviewerID uuid.UUID, id string, req ReviewRoleRequest) (*RoleRequestResponse, error)
	UpdateNotes(ctx context.Context, id string, req UpdateAdminNotesRequest) (*RoleRequestResponse, error)
}

type roleRequestService struct {
	requests  repository.RoleRequestRepository
	roles     repository.RoleRepository
	txManager repository.TransactionManager
	notifier  notify.Sink
	activity  ActivityPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewRoleRequestService(
	requests repository.RoleRequestRepository,
	roles repository.RoleRepository,
	txManager repository.TransactionManager,
	notifier notify.Sink,
	activity ActivityPublisher,
	log *zap.Logger,
) RoleRequestService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if activity == nil {
		activity = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &roleRequestService{
		requests:  requests,
		roles:     roles,
		txManager: txManager,
		notifier:  notifier,
		activity:  activity,
		log:       log,
		now:       time.Now,
	}
}

func toRoleRequestResponse(r *model.RoleRequest) RoleRequestResponse {
	res := RoleRequestResponse{
		ID:            r.ID.String(),
		UserID:        r.UserID.String(),
		RequestedRole: r.RequestedRole,
		Status:        r.Status,
		AdminNotes:    r.AdminNotes,
		ReviewedBy:    uuidPtrString(r.ReviewedBy),
		ReviewedAt:    formatTimePtr(r.ReviewedAt),
		CreatedAt:     formatTime(r.CreatedAt),
	}
	if r.Requester != nil {
		res.Username = r.Requester.Username
	}
	if r.Reviewer != nil {
		res.ReviewerName = r.Reviewer.Username
	}
	return res
}

// --- Implementation ---

// Submit files a pending request. Nothing is granted until a reviewer
// approves it.
func (s *roleRequestService) Submit(ctx context.Context, userID uuid.UUID, req SubmitRoleRequest) (*RoleRequestResponse, error) {
	created, err := s.submit(ctx, userID, req)
	if err != nil {
		s.notifier.Notify(ctx, userID, notify.Error("Role request failed", userMessage(err, "Could not submit your role request.")))
		return nil, err
	}

	s.notifier.Notify(ctx, userID, notify.Success("Role request submitted",
		fmt.Sprintf("Your request for the %s role is awaiting review.", created.RequestedRole)))
	publishActivity(s.activity, Activity{
		Action:  ActivityRoleRequested,
		ActorID: userID,
		Subject: created.ID.String(),
		Detail:  created.RequestedRole,
	})

	res := toRoleRequestResponse(created)
	return &res, nil
}

func (s *roleRequestService) submit(ctx context.Context, userID uuid.UUID, req SubmitRoleRequest) (*model.RoleRequest, error) {
	role, err := access.ParseRole(req.RequestedRole)
	if err != nil {
		return nil, err
	}
	if role == access.RoleAdmin {
		return nil, ErrAdminNotRequestable
	}

	held, err := s.roles.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	for _, h := range held {
		if h.Role == role.String() {
			return nil, ErrRoleAlreadyHeld
		}
	}

	existing, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role requests: %w", err)
	}
	for _, r := range existing {
		if r.RequestedRole == role.String() && r.Status == model.RoleRequestPending {
			return nil, ErrDuplicatePendingRequest
		}
	}

	created := &model.RoleRequest{
		UserID:        userID,
		RequestedRole: role.String(),
		Status:        model.RoleRequestPending,
	}
	if err := s.requests.Create(ctx, created); err != nil {
		// A concurrent submit won the partial unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePendingRequest
		}
		return nil, fmt.Errorf("failed to create role request: %w", err)
	}
	return created, nil
}

func (s *roleRequestService) ListForUser(ctx context.Context, userID uuid.UUID) ([]RoleRequestResponse, error) {
	requests, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role requests: %w", err)
	}

	res := make([]RoleRequestResponse, 0, len(requests))
	for i := range requests {
		res = append(res, toRoleRequestResponse(&requests[i]))
	}
	return res, nil
}

func (s *roleRequestService) List(ctx context.Context, status string, page, limit int) ([]RoleRequestResponse, int64, error) {
	switch status {
	case "", model.RoleRequestPending, model.RoleRequestApproved, model.RoleRequestRejected:
	default:
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	requests, total, err := s.requests.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch role requests: %w", err)
	}

	res := make([]RoleRequestResponse, 0, len(requests))
	for i := range requests {
		res = append(res, toRoleRequestResponse(&requests[i]))
	}
	return res, total, nil
}

// Review decides a pending request. Approval grants the role in the same
// transaction as the status change.
func (s *roleRequestService) Review(ctx context.Context, reviewerID uuid.UUID, id string, req ReviewRoleRequest) (*RoleRequestResponse, error) {
	requestID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if req.Decision != model.RoleRequestApproved && req.Decision != model.RoleRequestRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalidInput)
	}

	var reviewed *model.RoleRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return notFound("role request", err)
		}
		if r.Status != model.RoleRequestPending {
			return ErrRequestAlreadyReviewed
		}
		if r.UserID == reviewerID {
			return ErrSelfReview
		}

		now := s.now()
		r.Status = req.Decision
		r.AdminNotes = req.AdminNotes
		r.ReviewedBy = &reviewerID
		r.ReviewedAt = &now
		if err := s.requests.Update(txCtx, r); err != nil {
			return fmt.Errorf("failed to update role request: %w", err)
		}

		if r.Status == model.RoleRequestApproved {
			if err := s.grantIfMissing(txCtx, r.UserID, r.RequestedRole, reviewerID); err != nil {
				return err
			}
		}
		reviewed = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyReviewed(ctx, reviewed)
	publishActivity(s.activity, Activity{
		Action:  ActivityRoleReviewed,
		ActorID: reviewerID,
		Subject: reviewed.ID.String(),
		Detail:  reviewed.Status,
	})

	if full, err := s.requests.FindByID(ctx, reviewed.ID); err == nil {
		reviewed = full
	} else {
		s.log.Warn("failed to reload reviewed role request", zap.Error(err))
	}
	res := toRoleRequestResponse(reviewed)
	return &res, nil
}

// grantIfMissing checks held roles first: a unique violation would abort the
// surrounding postgres transaction.
func (s *roleRequestService) grantIfMissing(ctx context.Context, userID uuid.UUID, role string, grantedBy uuid.UUID) error {
	held, err := s.roles.ListUserRoles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user roles: %w", err)
	}
	for _, h := range held {
		if h.Role == role {
			return nil
		}
	}
	if err := s.roles.Grant(ctx, &model.UserRole{UserID: userID, Role: role, GrantedBy: &grantedBy}); err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}

func (s *roleRequestService) notifyReviewed(ctx context.Context, r *model.RoleRequest) {
	if r.Status == model.RoleRequestApproved {
		s.notifier.Notify(ctx, r.UserID, notify.Success("Role request approved",
			fmt.Sprintf("You now have the %s role.", r.RequestedRole)))
		return
	}
	s.notifier.Notify(ctx, r.UserID, notify.Warning("Role request rejected",
		fmt.Sprintf("Your request for the %s role was rejected.", r.RequestedRole)))
}

// UpdateNotes is the only change allowed once a request has been reviewed.
func (s *roleRequestService) UpdateNotes(ctx context.Context, id string, req UpdateAdminNotesRequest) (*RoleRequestResponse, error) {
	requestID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	// Only the notes column is written so a concurrent review is never undone.
	if err := s.requests.UpdateNotes(ctx, requestID, req.AdminNotes); err != nil {
		return nil, notFound("role request", err)
	}

	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, notFound("role request", err)
	}
	res := toRoleRequestResponse(r)
	return &res, nil
}

// userMessage returns err's text for validation failures and fallback for
// anything that came from the data layer.
func userMessage(err error, fallback string) string {
	for _, known := range []error{
		access.ErrUnknownRole,
		ErrAdminNotRequestable,
		ErrRoleAlreadyHeld,
		ErrDuplicatePendingRequest,
		ErrInvalidInput,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return fallback
}
