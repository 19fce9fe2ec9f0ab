package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle state of an order as stored in the database.
type Status string

const (
	StatusPending   Status = "pendiente"
	StatusPreparing Status = "en preparacion"
	StatusReady     Status = "listo"
	StatusDelivered Status = "entregado"
	StatusCancelled Status = "cancelado"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is offered from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Next returns the status reached by advancing s, and false when s cannot advance.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPending:
		return StatusPreparing, true
	case StatusPreparing:
		return StatusReady, true
	case StatusReady:
		return StatusDelivered, true
	}
	return "", false
}

// Delivery modes.
const (
	DeliverToAddress = "domicilio"
	DeliverPickup    = "recoger"
)

// Amount is a money or quantity value that may arrive as a JSON number or a
// numeric string. It is always written back as a number.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", s)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// ProductDetail is one line item of an order.
type ProductDetail struct {
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name"`
	Quantity  Amount `json:"quantity"`
	Price     Amount `json:"price"`
	Total     Amount `json:"total"`
	Currency  string `json:"currency"`
	Specs     string `json:"specs,omitempty"`
}

// CustomerDetails is denormalized into every order.
type CustomerDetails struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DeliverTo   string `json:"deliverTo,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Order is stored at restaurants/{restaurantId}/orders/{orderId}.
type Order struct {
	Action          string           `json:"action,omitempty"`
	OrderID         string           `json:"orderId"`
	OrderToken      string           `json:"orderToken,omitempty"`
	Sucursal        string           `json:"sucursal,omitempty"`
	DeliverOrRest   string           `json:"deliverOrRest,omitempty"`
	CustomerID      string           `json:"customerId,omitempty"`
	RestaurantID    string           `json:"restaurantId"`
	CustomerDetails *CustomerDetails `json:"customerDetails,omitempty"`
	ProductDetails  []ProductDetail  `json:"productDetails"`
	Subtotal        Amount           `json:"subtotal,omitempty"`
	DeliveryFee     Amount           `json:"deliveryFee,omitempty"`
	Total           Amount           `json:"total"`
	Currency        string           `json:"currency,omitempty"`
	OverallSpecs    string           `json:"overallSpecs,omitempty"`
	PayMethod       string           `json:"payMethod,omitempty"`
	Status          Status           `json:"status"`
	Timestamp       int64            `json:"timestamp"`
	PreparationTime Amount           `json:"preparationTime,omitempty"`
	PickedUpBy      string           `json:"pickedUpBy,omitempty"`
	Archived        bool             `json:"archived"`
}
