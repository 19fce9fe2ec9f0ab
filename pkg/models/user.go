package models

import (
	"errors"
	"fmt"
	"sort"
)

// Role wire values stored in users/{uid}/role.
const (
	RoleCustomer = "cliente"
	RoleStaff    = "restaurante"
	RoleAdmin    = "admin"
)

var (
	ErrStaffWithoutRestaurant = errors.New("staff profile has no restaurantId")
	ErrUnknownRole            = errors.New("unknown role")
)

// UserProfile is stored at users/{uid}.
type UserProfile struct {
	Email              string          `json:"email"`
	Role               string          `json:"role"`
	RestaurantID       string          `json:"restaurantId,omitempty"`
	ManagedRestaurants map[string]bool `json:"managedRestaurants,omitempty"`
}

// Restaurant is stored at restaurants/{restaurantId}.
type Restaurant struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Role is the parsed, closed form of a profile's role. Implementations are
// Customer, Staff and Admin.
type Role interface {
	role()
	Name() string
}

type Customer struct{}

// Staff works the floor of exactly one restaurant.
type Staff struct {
	RestaurantID string
}

// Admin with neither RestaurantID nor a managed set is a superadmin. A
// non-nil Managed marks a managed admin even when it holds no ids.
type Admin struct {
	RestaurantID string
	Managed      []string
}

func (Customer) role() {}
func (Staff) role()    {}
func (Admin) role()    {}

func (Customer) Name() string { return RoleCustomer }
func (Staff) Name() string    { return RoleStaff }
func (Admin) Name() string    { return RoleAdmin }

// Superadmin reports whether the admin is unscoped.
func (a Admin) Superadmin() bool {
	return a.RestaurantID == "" && !a.HasManagedSet()
}

// HasManagedSet reports whether the profile carried managedRestaurants.
func (a Admin) HasManagedSet() bool {
	return a.Managed != nil
}

// SingleRestaurant reports whether the admin manages exactly its own restaurant id.
func (a Admin) SingleRestaurant() bool {
	return a.RestaurantID != "" && !a.HasManagedSet()
}

// Scope returns the restaurant ids an admin may act upon; nil for a superadmin.
func (a Admin) Scope() []string {
	if a.HasManagedSet() {
		return a.Managed
	}
	if a.RestaurantID != "" {
		return []string{a.RestaurantID}
	}
	return nil
}

// InScope reports whether restaurantID is manageable by the admin.
func (a Admin) InScope(restaurantID string) bool {
	if a.Superadmin() {
		return true
	}
	for _, id := range a.Scope() {
		if id == restaurantID {
			return true
		}
	}
	return false
}

// ParseRole converts a stored profile into its Role.
func ParseRole(p UserProfile) (Role, error) {
	switch p.Role {
	case RoleCustomer:
		return Customer{}, nil
	case RoleStaff:
		if p.RestaurantID == "" {
			return nil, ErrStaffWithoutRestaurant
		}
		return Staff{RestaurantID: p.RestaurantID}, nil
	case RoleAdmin:
		var managed []string
		if p.ManagedRestaurants != nil {
			// Markers set to false stay out of scope but still make the admin managed.
			managed = make([]string, 0, len(p.ManagedRestaurants))
		}
		for id, ok := range p.ManagedRestaurants {
			if ok {
				managed = append(managed, id)
			}
		}
		sort.Strings(managed)
		return Admin{RestaurantID: p.RestaurantID, Managed: managed}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, p.Role)
	}
}
