// Package session resolves a signed-in caller to a role and a landing page.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/CesarCrz/cEatssFB/pkg/identity"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

var (
	ErrAccessDenied    = errors.New("access denied")
	ErrProfileNotFound = errors.New("profile not found")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Message returns the text shown on the login page for err.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return "Tu cuenta no tiene permisos para acceder a este panel o le falta configuración. Contacta al administrador."
	case errors.Is(err, ErrProfileNotFound):
		return "Error: Datos de usuario incompletos en la base de datos. Contacta al administrador."
	case errors.Is(err, ErrUnauthenticated):
		return "Sesión inválida o expirada. Inicia sesión de nuevo."
	default:
		return identity.Message(err, identity.OpSignIn)
	}
}

const AdminDestination = "/dashboard/admin"

// RestaurantDestination is the order board route of a restaurant.
func RestaurantDestination(restaurantID string) string {
	return "/dashboard/restaurant/" + restaurantID
}

// Caller is an authenticated user with the token it presented.
type Caller struct {
	UID   string
	Token string
	Role  models.Role
}

// Resolution is the outcome of a successful login.
type Resolution struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email,omitempty"`
	Token       string   `json:"token,omitempty"`
	Role        string   `json:"role"`
	Destination string   `json:"redirect"`
	Scope       []string `json:"scope,omitempty"`
	role        models.Role
}

// ParsedRole returns the role the resolution was built from.
func (r *Resolution) ParsedRole() models.Role { return r.role }

type Resolver struct {
	store    repository.Store
	provider identity.Provider
	logger   *zap.Logger
}

func NewResolver(store repository.Store, provider identity.Provider, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:    store,
		provider: provider,
		logger:   logger.Named("session"),
	}
}

// SignIn authenticates with the identity provider and resolves the profile.
func (r *Resolver) SignIn(ctx context.Context, email, password string) (*Resolution, error) {
	sess, err := r.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	res, err := r.Resolve(ctx, sess.UID)
	if err != nil {
		return nil, err
	}
	res.Email = sess.Email
	res.Token = sess.IDToken
	return res, nil
}

// Resolve loads the profile of uid and picks the landing page. Staff go to
// their restaurant's board and admins to the console; everyone else is denied.
func (r *Resolver) Resolve(ctx context.Context, uid string) (*Resolution, error) {
	role, err := r.loadRole(ctx, uid)
	if err != nil {
		return nil, err
	}

	res := &Resolution{UID: uid, Role: role.Name(), role: role}
	switch v := role.(type) {
	case models.Staff:
		res.Destination = RestaurantDestination(v.RestaurantID)
		res.Scope = []string{v.RestaurantID}
	case models.Admin:
		res.Destination = AdminDestination
		res.Scope = v.Scope()
	case models.Customer:
		r.logger.Info("Customer denied dashboard access", zap.String("uid", uid))
		return nil, ErrAccessDenied
	default:
		return nil, ErrAccessDenied
	}
	return res, nil
}

// Authenticate verifies a bearer token and loads the caller's role. Unlike
// Resolve it accepts customers; callers decide what each role may do.
func (r *Resolver) Authenticate(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	uid, err := r.provider.VerifyToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	role, err := r.loadRole(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &Caller{UID: uid, Token: token, Role: role}, nil
}

func (r *Resolver) loadRole(ctx context.Context, uid string) (models.Role, error) {
	if err := repository.ValidateKey(uid); err != nil {
		return nil, ErrProfileNotFound
	}

	var profile models.UserProfile
	found, err := r.store.Get(ctx, repository.UserPath(uid), &profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if !found {
		r.logger.Warn("Profile not found", zap.String("uid", uid))
		return nil, ErrProfileNotFound
	}

	role, err := models.ParseRole(profile)
	if err != nil {
		r.logger.Warn("Profile role rejected", zap.String("uid", uid), zap.String("role", profile.Role), zap.Error(err))
		return nil, ErrAccessDenied
	}
	return role, nil
}

// CanAccessRestaurant reports whether role may work restaurantID's orders.
func CanAccessRestaurant(role models.Role, restaurantID string) bool {
	switch v := role.(type) {
	case models.Staff:
		return v.RestaurantID == restaurantID
	case models.Admin:
		return v.InScope(restaurantID)
	default:
		return false
	}
}
