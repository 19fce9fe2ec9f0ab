// Package orders accepts incoming orders and applies staff status changes.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/events"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

var (
	ErrMissingFields         = errors.New("missing required order fields")
	ErrInvalidProductDetails = errors.New("invalid productDetails")
	ErrBranchNotFound        = errors.New("branch not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrTerminalStatus        = errors.New("order is in a terminal status")
	ErrNotTerminal           = errors.New("order is not delivered or cancelled")
	ErrUnknownAction         = errors.New("unknown action")
)

// ValidationError is a client error carrying the message shown to the caller.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, message string) error {
	return &ValidationError{Message: message, Err: err}
}

// IsValidation reports whether err should be answered with a 400.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// BranchResolver maps the branch name sent by an ordering channel to a
// restaurant id. An empty id means the branch is unknown.
type BranchResolver func(ctx context.Context, branch string) (string, error)

// IdentityBranch treats the branch name as the restaurant id.
func IdentityBranch(_ context.Context, branch string) (string, error) {
	return branch, nil
}

type Service struct {
	store     repository.Store
	branches  BranchResolver
	auditor   repository.Auditor
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithBranchResolver(r BranchResolver) Option {
	return func(s *Service) { s.branches = r }
}

func WithAuditor(a repository.Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store repository.Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		branches:  IdentityBranch,
		auditor:   repository.NopAuditor{},
		publisher: events.NopPublisher{},
		logger:    logger.Named("orders"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// audit records an entry; failures are logged and never surface to the caller.
func (s *Service) audit(ctx context.Context, action, entityID string, data map[string]any) {
	err := s.auditor.Record(ctx, &repository.AuditLog{
		Service:  "orders",
		Action:   action,
		EntityID: entityID,
		Data:     data,
	})
	if err != nil {
		s.logger.Warn("Failed to write audit log", zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, key string, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.Warn("Failed to publish order event", zap.String("routing_key", key), zap.String("order_id", event.OrderID), zap.Error(err))
	}
}
