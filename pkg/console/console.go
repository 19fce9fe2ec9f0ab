// Package console implements the admin console: role-scoped restaurant and
// user lists, and account and restaurant creation through the API.
package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/CesarCrz/cEatssFB/pkg/session"
	"go.uber.org/zap"
)

var (
	ErrForbidden        = errors.New("forbidden")
	ErrOutOfScope       = errors.New("restaurant outside caller scope")
	ErrMissingFields    = errors.New("missing required fields")
	ErrNoRestaurantPick = errors.New("no restaurant selected")
)

// Backend creates accounts and restaurants on behalf of the caller, whose
// token is forwarded as the bearer credential.
type Backend interface {
	CreateRestaurant(ctx context.Context, token, name, address string) (string, error)
	CreateStaffUser(ctx context.Context, token string, req StaffUserInput) (string, error)
}

// RestaurantEntry is a restaurant with its id.
type RestaurantEntry struct {
	ID string `json:"id"`
	models.Restaurant
}

// UserEntry is a user profile with its uid.
type UserEntry struct {
	UID string `json:"uid"`
	models.UserProfile
}

// StaffUserInput is the console's staff creation form. RestaurantID is the
// selector value; it is ignored when the caller's restaurant is fixed.
type StaffUserInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RestaurantID string `json:"restaurantId"`
	Role         string `json:"role,omitempty"`
}

type Console struct {
	store   repository.Store
	backend Backend
	logger  *zap.Logger
}

func New(store repository.Store, backend Backend, logger *zap.Logger) *Console {
	return &Console{
		store:   store,
		backend: backend,
		logger:  logger.Named("console"),
	}
}

// Restaurants lists the restaurants visible to the caller. Managed admins
// read the full list and filter it here, since the store cannot query a set
// of keys.
func (c *Console) Restaurants(ctx context.Context, caller *session.Caller) ([]RestaurantEntry, error) {
	switch role := caller.Role.(type) {
	case models.Admin:
		if role.Superadmin() {
			return c.allRestaurants(ctx, nil)
		}
		if role.HasManagedSet() {
			return c.allRestaurants(ctx, role.InScope)
		}
		return c.oneRestaurant(ctx, role.RestaurantID)
	case models.Staff:
		return c.oneRestaurant(ctx, role.RestaurantID)
	default:
		return nil, ErrForbidden
	}
}

func (c *Console) allRestaurants(ctx context.Context, keep func(string) bool) ([]RestaurantEntry, error) {
	children, err := c.store.List(ctx, repository.Query{Path: repository.RestaurantsPath()})
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	decoded, err := repository.DecodeChildren[models.Restaurant](children)
	if err != nil {
		return nil, err
	}

	out := make([]RestaurantEntry, 0, len(decoded))
	for id, r := range decoded {
		if keep != nil && !keep(id) {
			continue
		}
		out = append(out, RestaurantEntry{ID: id, Restaurant: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Console) oneRestaurant(ctx context.Context, id string) ([]RestaurantEntry, error) {
	if err := repository.ValidateKey(id); err != nil {
		return []RestaurantEntry{}, nil
	}
	var r models.Restaurant
	found, err := c.store.Get(ctx, repository.RestaurantPath(id), &r)
	if err != nil {
		return nil, fmt.Errorf("failed to read restaurant: %w", err)
	}
	if !found {
		return []RestaurantEntry{}, nil
	}
	return []RestaurantEntry{{ID: id, Restaurant: r}}, nil
}

// Users lists the profiles visible to the caller: everything for a
// superadmin, profiles attached to a scoped admin's restaurants, or the
// staff's own restaurant.
func (c *Console) Users(ctx context.Context, caller *session.Caller) ([]UserEntry, error) {
	var q repository.Query
	var keep func(models.UserProfile) bool

	switch role := caller.Role.(type) {
	case models.Admin:
		q = repository.Query{Path: repository.UsersPath()}
		if !role.Superadmin() {
			keep = func(p models.UserProfile) bool {
				return p.RestaurantID != "" && role.InScope(p.RestaurantID)
			}
		}
	case models.Staff:
		q = repository.Query{Path: repository.UsersPath(), Child: "restaurantId", Equals: role.RestaurantID}
	default:
		return nil, ErrForbidden
	}

	children, err := c.store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	decoded, err := repository.DecodeChildren[models.UserProfile](children)
	if err != nil {
		return nil, err
	}

	out := make([]UserEntry, 0, len(decoded))
	for uid, p := range decoded {
		if keep != nil && !keep(p) {
			continue
		}
		out = append(out, UserEntry{UID: uid, UserProfile: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// CreateRestaurant is reserved to superadmins.
func (c *Console) CreateRestaurant(ctx context.Context, caller *session.Caller, name, address string) (string, error) {
	admin, ok := caller.Role.(models.Admin)
	if !ok || !admin.Superadmin() {
		return "", ErrForbidden
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(address) == "" {
		return "", ErrMissingFields
	}
	return c.backend.CreateRestaurant(ctx, caller.Token, name, address)
}

// TargetRestaurant picks the restaurant a new staff user joins. Staff and
// single-restaurant admins always use their own; other admins use the
// selector, which for a managed admin must be in its set.
func TargetRestaurant(role models.Role, selected string) (string, error) {
	switch v := role.(type) {
	case models.Staff:
		return v.RestaurantID, nil
	case models.Admin:
		if v.SingleRestaurant() {
			return v.RestaurantID, nil
		}
		if selected == "" {
			return "", ErrNoRestaurantPick
		}
		if !v.InScope(selected) {
			return "", fmt.Errorf("%w: %s", ErrOutOfScope, selected)
		}
		return selected, nil
	default:
		return "", ErrForbidden
	}
}

// CreateStaffUser creates a restaurant staff account through the API.
func (c *Console) CreateStaffUser(ctx context.Context, caller *session.Caller, in StaffUserInput) (string, error) {
	rid, err := TargetRestaurant(caller.Role, in.RestaurantID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return "", ErrMissingFields
	}

	in.RestaurantID = rid
	in.Role = models.RoleStaff
	uid, err := c.backend.CreateStaffUser(ctx, caller.Token, in)
	if err != nil {
		return "", err
	}

	c.logger.Info("Staff user requested",
		zap.String("caller", caller.UID),
		zap.String("restaurant_id", rid),
		zap.String("uid", uid))
	return uid, nil
}

// Message returns the console text for err.
func Message(err error) string {
	var be *BackendError
	switch {
	case errors.Is(err, ErrForbidden):
		return "No tienes permisos para realizar esta acción."
	case errors.Is(err, ErrOutOfScope):
		return "No puedes gestionar ese restaurante."
	case errors.Is(err, ErrNoRestaurantPick), errors.Is(err, ErrMissingFields):
		return "Correo, contraseña y restaurante son obligatorios."
	case errors.As(err, &be):
		return be.Message
	default:
		return "Error de conexión o interno: " + err.Error()
	}
}
