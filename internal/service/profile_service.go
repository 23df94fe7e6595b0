package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nexus/internal/access"
	"nexus/internal/auth"
	"nexus/internal/model"
	"nexus/internal/repository"
	"nexus/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type RegisterProfileRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=255"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Username   *string `json:"username" binding:"omitempty,min=3,max=255"`
	FullName   *string `json:"full_name"`
	Department *string `json:"department"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// ProfileResponse never carries the password hash.
type ProfileResponse struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Department string    `json:"department"`
	Roles      []string  `json:"roles"`
	CreatedAt  string    `json:"created_at"`
	UpdatedAt  string    `json:"updated_at"`
}

// --- Interface ---

type ProfileService interface {
	Register(ctx context.Context, req RegisterProfileRequest) (*ProfileResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error)
	List(ctx context.Context, search string, page, limit int) ([]ProfileResponse, int64, error)
	UpdateMe(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*ProfileResponse, error)
	// Presence authenticates a websocket token into the caller's presence.
	Presence(ctx context.Context, token string) (websocket.Presence, error)
}

type profileService struct {
	profiles       repository.ProfileRepository
	roles          repository.RoleRepository
	txManager      repository.TransactionManager
	tokens         *auth.Tokens
	bootstrapAdmin string
	log            *zap.Logger
}

func NewProfileService(
	profiles repository.ProfileRepository,
	roles repository.RoleRepository,
	txManager repository.TransactionManager,
	tokens *auth.Tokens,
	bootstrapAdminEmail string,
	log *zap.Logger,
) ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &profileService{
		profiles:       profiles,
		roles:          roles,
		txManager:      txManager,
		tokens:         tokens,
		bootstrapAdmin: strings.ToLower(strings.TrimSpace(bootstrapAdminEmail)),
		log:            log,
	}
}

func toProfileResponse(p *model.Profile, roles []model.UserRole) *ProfileResponse {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Role)
	}
	return &ProfileResponse{
		ID:         p.ID,
		Username:   p.Username,
		Email:      p.Email,
		FullName:   p.FullName,
		Department: p.Department,
		Roles:      names,
		CreatedAt:  formatTime(p.CreatedAt),
		UpdatedAt:  formatTime(p.UpdatedAt),
	}
}

// --- Implementation ---

// Register creates a profile holding the baseline user role. The first
// profile registered with the bootstrap email also becomes admin.
func (s *profileService) Register(ctx context.Context, req RegisterProfileRequest) (*ProfileResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	}
	if _, err := s.profiles.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &model.Profile{
		Username:   req.Username,
		Email:      email,
		FullName:   req.FullName,
		Department: req.Department,
		Password:   string(hashedPassword),
	}
	var granted []model.UserRole
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.profiles.Create(txCtx, profile); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create profile: %w", err)
		}

		baseline := model.UserRole{UserID: profile.ID, Role: access.RoleUser.String()}
		if err := s.roles.Grant(txCtx, &baseline); err != nil {
			return fmt.Errorf("failed to grant baseline role: %w", err)
		}
		granted = append(granted, baseline)

		if s.bootstrapAdmin == "" || email != s.bootstrapAdmin {
			return nil
		}
		admins, err := s.roles.ListUsersWithRole(txCtx, access.RoleAdmin.String())
		if err != nil {
			return fmt.Errorf("failed to check existing admins: %w", err)
		}
		if len(admins) > 0 {
			return nil
		}
		admin := model.UserRole{UserID: profile.ID, Role: access.RoleAdmin.String()}
		if err := s.roles.Grant(txCtx, &admin); err != nil {
			return fmt.Errorf("failed to grant bootstrap admin role: %w", err)
		}
		granted = append(granted, admin)
		s.log.Info("bootstrap admin registered", zap.String("user_id", profile.ID.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toProfileResponse(profile, granted), nil
}

func (s *profileService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	profile, err := s.profiles.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(profile.ID)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, ExpiresIn: int64(s.tokens.TTL().Seconds())}, nil
}

func (s *profileService) Me(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound("profile", err)
	}
	roles, err := s.roles.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user roles: %w", err)
	}
	return toProfileResponse(profile, roles), nil
}

func (s *profileService) List(ctx context.Context, search string, page, limit int) ([]ProfileResponse, int64, error) {
	profiles, total, err := s.profiles.List(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch profiles: %w", err)
	}

	res := make([]ProfileResponse, 0, len(profiles))
	for i := range profiles {
		roles, err := s.roles.ListUserRoles(ctx, profiles[i].ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch user roles: %w", err)
		}
		res = append(res, *toProfileResponse(&profiles[i], roles))
	}
	return res, total, nil
}

func (s *profileService) UpdateMe(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*ProfileResponse, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound("profile", err)
	}

	if req.Username != nil && *req.Username != profile.Username {
		if _, err := s.profiles.GetByUsername(ctx, *req.Username); err == nil {
			return nil, ErrUsernameTaken
		}
		profile.Username = *req.Username
	}
	if req.FullName != nil {
		profile.FullName = *req.FullName
	}
	if req.Department != nil {
		profile.Department = *req.Department
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Me(ctx, userID)
}

func (s *profileService) Presence(ctx context.Context, token string) (websocket.Presence, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return websocket.Presence{}, err
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return websocket.Presence{}, notFound("profile", err)
	}
	rows, err := s.roles.ListUserRoles(ctx, userID)
	if err != nil {
		return websocket.Presence{}, fmt.Errorf("failed to fetch user roles: %w", err)
	}

	roles := make([]access.Role, 0, len(rows))
	for _, r := range rows {
		if role, err := access.ParseRole(r.Role); err == nil {
			roles = append(roles, role)
		}
	}
	best, isAdmin := access.HighestRole(roles)
	if isAdmin {
		best = access.RoleAdmin
	}
	return websocket.Presence{UserID: profile.ID, Username: profile.Username, Role: best.String()}, nil
}
