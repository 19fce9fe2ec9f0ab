package orders

import (
	"context"
	"fmt"

	"github.com/CesarCrz/cEatssFB/pkg/events"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

// Action is a staff status change.
type Action string

const (
	ActionAdvance Action = "advance"
	ActionCancel  Action = "cancel"
)

// ActionView is an action offered for an order, with its button label.
type ActionView struct {
	Action Action `json:"action"`
	Label  string `json:"label"`
	Target string `json:"target"`
}

var advanceLabels = map[models.Status]string{
	models.StatusPreparing: "En Preparación",
	models.StatusReady:     "Listo",
	models.StatusDelivered: "Entregado",
}

// AvailableActions lists the actions offered for an order in status st.
func AvailableActions(st models.Status) []ActionView {
	if st.Terminal() || !st.Valid() {
		return nil
	}
	var out []ActionView
	if next, ok := st.Next(); ok {
		out = append(out, ActionView{Action: ActionAdvance, Label: advanceLabels[next], Target: string(next)})
	}
	return append(out, ActionView{Action: ActionCancel, Label: "Cancelar", Target: string(models.StatusCancelled)})
}

// target computes the status reached from st by a.
func target(st models.Status, a Action) (models.Status, error) {
	switch a {
	case ActionAdvance, ActionCancel:
	default:
		return "", invalid(fmt.Errorf("%w: %q", ErrUnknownAction, a), fmt.Sprintf("Acción desconocida: %s.", a))
	}
	if st.Terminal() {
		return "", fmt.Errorf("%w: %s", ErrTerminalStatus, st)
	}
	if a == ActionCancel {
		return models.StatusCancelled, nil
	}
	next, ok := st.Next()
	if !ok {
		return "", fmt.Errorf("%w: cannot advance from %q", ErrTerminalStatus, st)
	}
	return next, nil
}

// Transition applies a to the order and writes only its status field.
// Concurrent transitions are not coordinated; the last write wins.
func (s *Service) Transition(ctx context.Context, restaurantID, orderID string, a Action) (models.Status, error) {
	order, err := s.load(ctx, restaurantID, orderID)
	if err != nil {
		return "", err
	}

	next, err := target(order.Status, a)
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, repository.OrderStatusPath(restaurantID, orderID), next); err != nil {
		return "", fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", orderID),
		zap.String("restaurant_id", restaurantID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)))

	s.audit(ctx, repository.AuditOrderStatusChanged, orderID, map[string]any{
		"restaurantId": restaurantID,
		"from":         string(order.Status),
		"to":           string(next),
	})
	s.publish(ctx, events.KeyOrderStatusChanged, events.OrderEvent{
		OrderID:      orderID,
		RestaurantID: restaurantID,
		Status:       next,
		Previous:     order.Status,
	})

	return next, nil
}

// Archive hides a delivered or cancelled order from active boards.
func (s *Service) Archive(ctx context.Context, restaurantID, orderID string) error {
	order, err := s.load(ctx, restaurantID, orderID)
	if err != nil {
		return err
	}
	if !order.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrNotTerminal, order.Status)
	}
	if err := s.store.Set(ctx, repository.OrderArchivedPath(restaurantID, orderID), true); err != nil {
		return fmt.Errorf("failed to archive order: %w", err)
	}

	s.audit(ctx, repository.AuditOrderArchived, orderID, map[string]any{"restaurantId": restaurantID})
	return nil
}

func (s *Service) load(ctx context.Context, restaurantID, orderID string) (*models.Order, error) {
	if err := repository.ValidateKey(restaurantID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}
	if err := repository.ValidateKey(orderID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}

	var order models.Order
	found, err := s.store.Get(ctx, repository.OrderPath(restaurantID, orderID), &order)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s/%s", ErrOrderNotFound, restaurantID, orderID)
	}
	return &order, nil
}
