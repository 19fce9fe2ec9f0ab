package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CesarCrz/cEatssFB/pkg/events"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

// Submission is an order as posted by an ordering channel. ProductDetails
// is either a list of items or that list serialized as a JSON string.
// Fields not declared here are dropped and never reach the stored order.
type Submission struct {
	Action          string                  `json:"action"`
	OrderID         string                  `json:"orderId"`
	OrderToken      string                  `json:"orderToken"`
	Sucursal        string                  `json:"sucursal"`
	DeliverOrRest   string                  `json:"deliverOrRest"`
	CustomerID      string                  `json:"customerId"`
	CustomerDetails *models.CustomerDetails `json:"customerDetails"`
	ProductDetails  json.RawMessage         `json:"productDetails" swaggertype:"array,object"`
	Subtotal        models.Amount           `json:"subtotal"`
	DeliveryFee     models.Amount           `json:"deliveryFee"`
	Total           models.Amount           `json:"total"`
	Currency        string                  `json:"currency"`
	OverallSpecs    string                  `json:"overallSpecs"`
	PayMethod       string                  `json:"payMethod"`
	PreparationTime models.Amount           `json:"preparationTime"`
	PickedUpBy      string                  `json:"pickedUpBy"`
}

func (sub *Submission) missingFields() bool {
	return strings.TrimSpace(sub.OrderID) == "" ||
		strings.TrimSpace(sub.Sucursal) == "" ||
		isEmptyJSON(sub.ProductDetails) ||
		sub.Total == 0
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`))
}

// parseProductDetails accepts a list or a string holding the list.
func parseProductDetails(raw json.RawMessage) ([]models.ProductDetail, error) {
	raw = bytes.TrimSpace(raw)
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		raw = json.RawMessage(strings.TrimSpace(text))
	}
	var items []models.ProductDetail
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Submit validates sub and stores it as a new pending order with a single
// full overwrite at restaurants/{restaurantId}/orders/{orderId}. Resubmitting
// an order id replaces the earlier record.
func (s *Service) Submit(ctx context.Context, sub Submission) (*models.Order, error) {
	if sub.missingFields() {
		return nil, invalid(ErrMissingFields, "Datos del pedido incompletos.")
	}
	if err := repository.ValidateKey(sub.OrderID); err != nil {
		return nil, invalid(err, fmt.Sprintf("Identificador de pedido inválido: %q.", sub.OrderID))
	}

	items, err := parseProductDetails(sub.ProductDetails)
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: %v", ErrInvalidProductDetails, err), "El formato de productDetails es inválido.")
	}

	restaurantID, err := s.branches(ctx, sub.Sucursal)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve branch %q: %w", sub.Sucursal, err)
	}
	if restaurantID == "" {
		s.logger.Warn("Restaurant not found for branch", zap.String("sucursal", sub.Sucursal))
		return nil, invalid(ErrBranchNotFound, fmt.Sprintf("Sucursal \"%s\" no encontrada.", sub.Sucursal))
	}
	if err := repository.ValidateKey(restaurantID); err != nil {
		return nil, invalid(fmt.Errorf("%w: %v", ErrBranchNotFound, err), fmt.Sprintf("Sucursal \"%s\" no encontrada.", sub.Sucursal))
	}

	order := &models.Order{
		Action:          sub.Action,
		OrderID:         sub.OrderID,
		OrderToken:      sub.OrderToken,
		Sucursal:        sub.Sucursal,
		DeliverOrRest:   sub.DeliverOrRest,
		CustomerID:      sub.CustomerID,
		RestaurantID:    restaurantID,
		CustomerDetails: sub.CustomerDetails,
		ProductDetails:  items,
		Subtotal:        sub.Subtotal,
		DeliveryFee:     sub.DeliveryFee,
		Total:           sub.Total,
		Currency:        sub.Currency,
		OverallSpecs:    sub.OverallSpecs,
		PayMethod:       sub.PayMethod,
		PreparationTime: sub.PreparationTime,
		PickedUpBy:      sub.PickedUpBy,
		Status:          models.StatusPending,
		Timestamp:       s.now().UnixMilli(),
		Archived:        false,
	}

	if err := s.store.Set(ctx, repository.OrderPath(restaurantID, order.OrderID), order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("Order saved",
		zap.String("order_id", order.OrderID),
		zap.String("restaurant_id", restaurantID),
		zap.Float64("total", float64(order.Total)))

	s.audit(ctx, repository.AuditOrderReceived, order.OrderID, map[string]any{
		"restaurantId": restaurantID,
		"total":        float64(order.Total),
		"items":        len(items),
	})
	s.publish(ctx, events.KeyOrderReceived, events.OrderEvent{
		OrderID:      order.OrderID,
		RestaurantID: restaurantID,
		Status:       order.Status,
		Total:        order.Total,
	})

	return order, nil
}
