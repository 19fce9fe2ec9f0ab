// Package provisioning creates accounts and restaurants on behalf of the
// admin console and the sign-up page.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CesarCrz/cEatssFB/pkg/identity"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingFields     = errors.New("missing required fields")
	ErrInvalidRole       = errors.New("invalid role")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrInvalidRestaurant = errors.New("invalid restaurant id")
)

// Orphan steps.
const (
	StepProfile = "profile"
	StepRoster  = "roster"
)

// OrphanedAccountError reports an identity account created without its
// profile or roster entry.
type OrphanedAccountError struct {
	UID        string
	Step       string
	RolledBack bool
	Err        error
}

func (e *OrphanedAccountError) Error() string {
	return fmt.Sprintf("account %s orphaned at %s step (rolled back: %t): %v", e.UID, e.Step, e.RolledBack, e.Err)
}

func (e *OrphanedAccountError) Unwrap() error { return e.Err }

// IsClientError reports whether err stems from the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrInvalidRestaurant)
}

type Service struct {
	store           repository.Store
	provider        identity.Provider
	ledger          repository.Ledger
	auditor         repository.Auditor
	rollbackOrphans bool
	logger          *zap.Logger
}

type Option func(*Service)

// WithLedger records orphaned accounts in l.
func WithLedger(l repository.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

func WithAuditor(a repository.Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithRollback deletes the identity account when a later step fails.
func WithRollback(enabled bool) Option {
	return func(s *Service) { s.rollbackOrphans = enabled }
}

func NewService(store repository.Store, provider identity.Provider, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		auditor:  repository.NopAuditor{},
		logger:   logger.Named("provisioning"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StaffRequest is the input of CreateStaffUser.
type StaffRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RestaurantID string `json:"restaurantId"`
	Role         string `json:"role"`
}

// CreateStaffUser creates the identity account, then the profile at
// users/{uid}, then the roster marker at restaurants/{rid}/staffUsers/{uid}.
// A failure after the account exists leaves it orphaned; see handleOrphan.
func (s *Service) CreateStaffUser(ctx context.Context, req StaffRequest) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || req.RestaurantID == "" {
		return "", ErrMissingFields
	}
	if req.Role != models.RoleStaff {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if err := repository.ValidateKey(req.RestaurantID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRestaurant, err)
	}

	uid, err := s.provider.CreateUser(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("Identity provider rejected staff account",
			zap.String("email", req.Email),
			zap.String("code", string(identity.CodeOf(err))),
			zap.Error(err))
		return "", fmt.Errorf("failed to create account: %w", err)
	}

	profile := models.UserProfile{
		Email:        req.Email,
		Role:         models.RoleStaff,
		RestaurantID: req.RestaurantID,
	}
	if err := s.store.Set(ctx, repository.UserPath(uid), profile); err != nil {
		return "", s.handleOrphan(ctx, uid, req, StepProfile, err)
	}
	if err := s.store.Set(ctx, repository.StaffUserPath(req.RestaurantID, uid), true); err != nil {
		return "", s.handleOrphan(ctx, uid, req, StepRoster, err)
	}

	s.logger.Info("Staff user created",
		zap.String("uid", uid),
		zap.String("restaurant_id", req.RestaurantID))
	s.audit(ctx, repository.AuditStaffProvisioned, uid, map[string]any{
		"email":        req.Email,
		"restaurantId": req.RestaurantID,
	})
	return uid, nil
}

// handleOrphan reports an account left without its records. The account is
// deleted only when rollback is enabled.
func (s *Service) handleOrphan(ctx context.Context, uid string, req StaffRequest, step string, cause error) error {
	orphan := &OrphanedAccountError{UID: uid, Step: step, Err: cause}

	if s.rollbackOrphans {
		if err := s.provider.DeleteUser(ctx, uid); err != nil {
			s.logger.Error("Failed to roll back orphaned account", zap.String("uid", uid), zap.Error(err))
		} else {
			orphan.RolledBack = true
		}
	}

	s.logger.Error("Orphaned identity account",
		zap.String("uid", uid),
		zap.String("email", req.Email),
		zap.String("restaurant_id", req.RestaurantID),
		zap.String("step", step),
		zap.Bool("rolled_back", orphan.RolledBack),
		zap.Error(cause))

	if s.ledger != nil {
		err := s.ledger.RecordOrphan(ctx, &repository.OrphanedAccount{
			UID:          uid,
			Email:        req.Email,
			RestaurantID: req.RestaurantID,
			Step:         step,
			Reason:       cause.Error(),
			RolledBack:   orphan.RolledBack,
		})
		if err != nil {
			s.logger.Error("Failed to record orphaned account", zap.String("uid", uid), zap.Error(err))
		}
	}
	s.audit(ctx, repository.AuditOrphanedAccount, uid, map[string]any{
		"step":       step,
		"rolledBack": orphan.RolledBack,
		"reason":     cause.Error(),
	})
	return orphan
}

// CreateRestaurant stores a restaurant under a generated id.
func (s *Service) CreateRestaurant(ctx context.Context, name, address string) (string, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" || address == "" {
		return "", ErrMissingFields
	}

	id := uuid.NewString()
	if err := s.store.Set(ctx, repository.RestaurantPath(id), models.Restaurant{Name: name, Address: address}); err != nil {
		return "", fmt.Errorf("failed to save restaurant: %w", err)
	}

	s.logger.Info("Restaurant created", zap.String("restaurant_id", id), zap.String("name", name))
	s.audit(ctx, repository.AuditRestaurantCreated, id, map[string]any{"name": name})
	return id, nil
}

// RegisterCustomer signs up a customer and stores a cliente profile.
func (s *Service) RegisterCustomer(ctx context.Context, email, password, confirm string) (*identity.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}

	session, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	profile := models.UserProfile{Email: session.Email, Role: models.RoleCustomer}
	if profile.Email == "" {
		profile.Email = email
	}
	if err := s.store.Set(ctx, repository.UserPath(session.UID), profile); err != nil {
		return nil, s.handleOrphan(ctx, session.UID, StaffRequest{Email: email}, StepProfile, err)
	}

	s.audit(ctx, repository.AuditCustomerRegistered, session.UID, map[string]any{"email": profile.Email})
	return session, nil
}

// EnsureAdmin makes email a superadmin, creating the account when it does
// not exist. An existing account must accept password.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrMissingFields
	}

	var uid string
	session, err := s.provider.SignIn(ctx, email, password)
	switch {
	case err == nil:
		uid = session.UID
	case identity.IsCode(err, identity.CodeUserNotFound):
		if uid, err = s.provider.CreateUser(ctx, email, password); err != nil {
			return "", fmt.Errorf("failed to create admin account: %w", err)
		}
	default:
		return "", fmt.Errorf("failed to sign in admin account: %w", err)
	}

	var profile models.UserProfile
	found, err := s.store.Get(ctx, repository.UserPath(uid), &profile)
	if err != nil {
		return "", fmt.Errorf("failed to read admin profile: %w", err)
	}
	if found && profile.Role == models.RoleAdmin && profile.RestaurantID == "" && profile.ManagedRestaurants == nil {
		return uid, nil
	}

	profile = models.UserProfile{Email: strings.ToLower(email), Role: models.RoleAdmin}
	if err := s.store.Set(ctx, repository.UserPath(uid), profile); err != nil {
		return "", fmt.Errorf("failed to save admin profile: %w", err)
	}

	s.logger.Info("Superadmin seeded", zap.String("uid", uid), zap.String("email", profile.Email))
	s.audit(ctx, repository.AuditAdminSeeded, uid, map[string]any{"email": profile.Email})
	return uid, nil
}

func (s *Service) audit(ctx context.Context, action, entityID string, data map[string]any) {
	err := s.auditor.Record(ctx, &repository.AuditLog{
		Service:  "provisioning",
		Action:   action,
		EntityID: entityID,
		Data:     data,
	})
	if err != nil {
		s.logger.Warn("Failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
