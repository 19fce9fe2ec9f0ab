package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKey  = errors.New("invalid key")
	ErrStoreClosed = errors.New("store closed")
)

// Store is the realtime database the system persists to. Paths are
// slash-separated keys such as restaurants/R1/orders/O1.
type Store interface {
	// Get decodes the value at path into dest. It reports false when nothing is stored there.
	Get(ctx context.Context, path string, dest any) (bool, error)
	// Set overwrites the value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// List returns the children of q.Path matching q.
	List(ctx context.Context, q Query) (Children, error)
	// Subscribe calls onSnapshot with the current result of q and again after
	// every change under q.Path until the subscription is closed.
	Subscribe(ctx context.Context, q Query, onSnapshot func(Children), onError func(error)) (Subscription, error)
	Close() error
}

// Subscription is a live query registration.
type Subscription interface {
	Close()
}

// Query selects the children of Path. When Child is set only children whose
// Child field equals Equals are returned.
type Query struct {
	Path   string
	Child  string
	Equals any
}

// Children maps child keys to their JSON values.
type Children map[string]json.RawMessage

// DecodeChildren decodes every child into T.
func DecodeChildren[T any](c Children) (map[string]T, error) {
	out := make(map[string]T, len(c))
	for key, raw := range c {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// Path layout.

const (
	restaurantsRoot = "restaurants"
	usersRoot       = "users"
	accountsRoot    = "accounts"
)

func RestaurantsPath() string { return restaurantsRoot }

func RestaurantPath(restaurantID string) string {
	return restaurantsRoot + "/" + restaurantID
}

func OrdersPath(restaurantID string) string {
	return RestaurantPath(restaurantID) + "/orders"
}

func OrderPath(restaurantID, orderID string) string {
	return OrdersPath(restaurantID) + "/" + orderID
}

func OrderStatusPath(restaurantID, orderID string) string {
	return OrderPath(restaurantID, orderID) + "/status"
}

func OrderArchivedPath(restaurantID, orderID string) string {
	return OrderPath(restaurantID, orderID) + "/archived"
}

func StaffUserPath(restaurantID, uid string) string {
	return RestaurantPath(restaurantID) + "/staffUsers/" + uid
}

func UsersPath() string { return usersRoot }

func UserPath(uid string) string {
	return usersRoot + "/" + uid
}

// AccountsPath holds the credentials of the local identity provider.
func AccountsPath() string { return accountsRoot }

func AccountPath(uid string) string {
	return accountsRoot + "/" + uid
}

// ValidateKey rejects ids that cannot be used as a single path segment.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.ContainsAny(key, ".#$[]/") {
		return fmt.Errorf("%w: %q contains one of . # $ [ ] /", ErrInvalidKey, key)
	}
	return nil
}

// SplitPath validates path and returns its segments. The root is "".
func SplitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if err := ValidateKey(s); err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
	}
	return segs, nil
}

// related reports whether a write at one path can change the value at the other.
func related(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
