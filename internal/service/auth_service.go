package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/config"
	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/mail"
	"github.com/elegantflow/crm-service/internal/push"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// AuthService coordinates registration, login, invitations and credentials.
type AuthService struct {
	users      repository.UserRepository
	orgs       repository.OrganizationRepository
	branches   repository.BranchRepository
	resets     repository.PasswordResetRepository
	mailer     mail.Mailer
	tokenMgr   *auth.TokenManager
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	OrganizationRepo  repository.OrganizationRepository
	BranchRepo        repository.BranchRepository
	PasswordResetRepo repository.PasswordResetRepository
	Mailer            mail.Mailer
	Logger            *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		orgs:       deps.OrganizationRepo,
		branches:   deps.BranchRepo,
		resets:     deps.PasswordResetRepo,
		mailer:     deps.Mailer,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		now:        time.Now,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// RegisterInput creates an organization together with its owner.
type RegisterInput struct {
	FirstName        string
	LastName         string
	UserName         string
	Email            string
	Password         string
	OrganizationName string
	Industry         string
	Website          string
}

// InviteInput adds a staff member to the inviter's organization.
type InviteInput struct {
	FirstName  string
	LastName   string
	Email      string
	Role       domain.Role
	BranchID   *string
	ParentID   *string
	JobTitle   string
	Department string
}

// Session is an authenticated user with an access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates the organization and its owner. An organization that
// already has an owner cannot be registered again.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.OrganizationName = strings.TrimSpace(input.OrganizationName)
	missing := []string{}
	if strings.TrimSpace(input.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if input.Email == "" {
		missing = append(missing, "email")
	}
	if input.OrganizationName == "" {
		missing = append(missing, "organization_name")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"min_length": auth.MinPasswordLength})
	}
	if err := s.ensureEmailFree(ctx, input.Email); err != nil {
		return nil, err
	}

	org, err := s.orgs.GetByName(ctx, input.OrganizationName)
	switch {
	case err == nil:
		if org.OwnerID != nil {
			return nil, apperrors.NewConflict("organization already has an owner", map[string]any{"organization": org.Name})
		}
	case errors.Is(err, pgx.ErrNoRows):
		org = &domain.Organization{Name: input.OrganizationName, Industry: input.Industry, Website: input.Website}
		if err := s.orgs.Create(ctx, org); err != nil {
			if isUniqueViolation(err) {
				return nil, apperrors.NewConflict("organization already exists", map[string]any{"organization": org.Name})
			}
			return nil, apperrors.MapError(err)
		}
	default:
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	userName := strings.TrimSpace(input.UserName)
	if userName == "" {
		userName = input.Email
	}
	user := &domain.User{
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		UserName:       userName,
		Email:          input.Email,
		PasswordHash:   hash,
		OrganizationID: org.ID,
		Role:           domain.RoleOwner,
		Status:         domain.UserStatusActive,
		Settings:       domain.UserSettings{Theme: "light", Mode: "system", NotificationsOn: true},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("email or owner already registered", map[string]any{"email": user.Email})
		}
		return nil, apperrors.MapError(err)
	}
	if err := s.orgs.SetOwner(ctx, org.ID, user.ID); err != nil {
		if errors.Is(err, repository.ErrOwnerAlreadySet) {
			return nil, apperrors.NewConflict("organization already has an owner", map[string]any{"organization": org.Name})
		}
		return nil, apperrors.MapError(err)
	}

	if err := s.mailer.SendWelcome(ctx, user.Email, user.FullName()); err != nil {
		s.logger.Warn("welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return s.session(user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewForbidden("user inactive")
	}
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn("touch login", zap.String("user_id", user.ID), zap.Error(err))
	}
	return s.session(user)
}

// Invite creates a staff account with a temporary password and emails it.
// Managers may only invite employees; the new user reports to the inviter by default.
func (s *AuthService) Invite(ctx context.Context, actor *domain.User, input InviteInput) (*domain.User, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("only owners and managers may invite")
	}
	if input.Role == "" {
		input.Role = domain.RoleEmployee
	}
	if input.Role == domain.RoleOwner || !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
	}
	if actor.Role == domain.RoleManager && input.Role != domain.RoleEmployee {
		return nil, apperrors.NewForbidden("managers may only invite employees")
	}
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || strings.TrimSpace(input.FirstName) == "" {
		return nil, apperrors.NewValidationError("first_name and email required", nil)
	}
	if err := s.ensureEmailFree(ctx, input.Email); err != nil {
		return nil, err
	}

	parentID := input.ParentID
	if parentID == nil || *parentID == "" || actor.Role == domain.RoleManager {
		parentID = strPtr(actor.ID)
	} else {
		parent, err := s.users.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("user", map[string]any{"user_id": *parentID})
			}
			return nil, apperrors.MapError(err)
		}
		if parent.OrganizationID != actor.OrganizationID || parent.Role == domain.RoleEmployee {
			return nil, apperrors.NewValidationError("parent must be a manager or owner of the organization", map[string]any{"parent_id": *parentID})
		}
	}
	if input.BranchID != nil && *input.BranchID != "" {
		branch, err := s.branches.GetByID(ctx, *input.BranchID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("branch", map[string]any{"branch_id": *input.BranchID})
			}
			return nil, apperrors.MapError(err)
		}
		if branch.OrganizationID != actor.OrganizationID {
			return nil, apperrors.NewForbidden("branch belongs to another organization")
		}
	} else {
		input.BranchID = actor.BranchID
	}

	tempPassword := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	hash, err := auth.HashPassword(tempPassword, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		UserName:       input.Email,
		Email:          input.Email,
		PasswordHash:   hash,
		OrganizationID: actor.OrganizationID,
		BranchID:       input.BranchID,
		ParentID:       parentID,
		Role:           input.Role,
		Status:         domain.UserStatusActive,
		JobTitle:       input.JobTitle,
		Department:     input.Department,
		Settings:       domain.UserSettings{Theme: "light", Mode: "system", NotificationsOn: true},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return nil, apperrors.MapError(err)
	}
	if err := s.mailer.SendInvitation(ctx, user.Email, user.FullName(), actor.FullName(), tempPassword); err != nil {
		s.logger.Warn("invitation email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// RegisterPushToken adds token to the user's token set if absent.
func (s *AuthService) RegisterPushToken(ctx context.Context, actor *domain.User, token string) error {
	token = strings.TrimSpace(token)
	if !push.IsExpoToken(token) {
		return apperrors.NewValidationError("invalid push token", map[string]any{"token": token})
	}
	if err := s.users.AddPushToken(ctx, actor.ID, token); err != nil {
		return apperrors.MapError(err)
	}
	if !contains(actor.PushTokens, token) {
		actor.PushTokens = append(actor.PushTokens, token)
	}
	return nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, current, next string) error {
	if err := auth.ComparePassword(actor.PasswordHash, current); err != nil {
		return apperrors.NewUnauthorized("current password incorrect")
	}
	return s.setPassword(ctx, actor, next)
}

// RequestPasswordReset emails a single-use reset token. Unknown emails are
// accepted silently so the endpoint does not reveal registered addresses.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperrors.MapError(err)
	}
	reset := &domain.PasswordReset{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.FullName(), reset.Token); err != nil {
		s.logger.Warn("password reset email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, next string) error {
	reset, err := s.resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("invalid or expired reset token", nil)
		}
		return apperrors.MapError(err)
	}
	if reset.UsedAt != nil || s.now().After(reset.ExpiresAt) {
		return apperrors.NewValidationError("invalid or expired reset token", nil)
	}
	user, err := s.users.GetByID(ctx, reset.UserID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.setPassword(ctx, user, next); err != nil {
		return err
	}
	if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, user *domain.User, next string) error {
	if err := auth.ValidatePassword(next); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"min_length": auth.MinPasswordLength})
	}
	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return apperrors.NewConflict("email already registered", map[string]any{"email": email})
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *AuthService) session(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
