package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Discoverer finds the address of a registered service.
type Discoverer interface {
	DiscoverAddr(ctx context.Context, serviceName string) (string, error)
}

// BackendError is a rejection reported by the API; Message is shown as is.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// HTTPBackend calls the API over HTTP. The base URL is discovered through
// etcd on every call and falls back to a fixed URL.
type HTTPBackend struct {
	serviceName string
	fallback    string
	discovery   Discoverer
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewHTTPBackend creates a backend client. disc may be nil.
func NewHTTPBackend(serviceName, fallback string, disc Discoverer, timeout time.Duration, logger *zap.Logger) *HTTPBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		serviceName: serviceName,
		fallback:    strings.TrimRight(fallback, "/"),
		discovery:   disc,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (b *HTTPBackend) CreateRestaurant(ctx context.Context, token, name, address string) (string, error) {
	var resp struct {
		RestaurantID string `json:"restaurantId"`
	}
	body := map[string]string{"name": name, "address": address}
	if err := b.post(ctx, "/api/createRestaurant", token, body, &resp); err != nil {
		return "", err
	}
	return resp.RestaurantID, nil
}

func (b *HTTPBackend) CreateStaffUser(ctx context.Context, token string, req StaffUserInput) (string, error) {
	var resp struct {
		UID string `json:"uid"`
	}
	if err := b.post(ctx, "/api/createRestaurantUser", token, req, &resp); err != nil {
		return "", err
	}
	return resp.UID, nil
}

func (b *HTTPBackend) baseURL(ctx context.Context) string {
	if b.discovery == nil {
		return b.fallback
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	addr, err := b.discovery.DiscoverAddr(lookupCtx, b.serviceName)
	if err != nil {
		b.logger.Debug("Using default API URL", zap.String("url", b.fallback), zap.Error(err))
		return b.fallback
	}
	return "http://" + addr
}

func (b *HTTPBackend) post(ctx context.Context, path, token string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := b.baseURL(ctx) + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	raw := new(bytes.Buffer)
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(raw.Bytes(), &envelope); err != nil {
		return &BackendError{Status: resp.StatusCode, Message: fmt.Sprintf("Respuesta inválida del servidor (%d).", resp.StatusCode)}
	}

	if resp.StatusCode >= 300 || !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &BackendError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw.Bytes(), dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
