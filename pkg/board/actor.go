package board

import (
	"encoding/json"
	"sort"

	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Messages
type snapshot struct {
	children repository.Children
}

type subscriptionFailed struct {
	err error
}

type getView struct{}

// boardActor owns the visible order set of one board.
type boardActor struct {
	restaurantID string
	updates      chan View
	logger       *zap.Logger

	view View
	seen map[string]bool
}

func (a *boardActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.view = View{RestaurantID: a.restaurantID, Orders: []OrderView{}}
		a.logger.Debug("Board actor started")

	case *snapshot:
		a.apply(msg.children)
		a.publish()

	case *subscriptionFailed:
		a.logger.Warn("Board subscription failed", zap.Error(msg.err))
		a.view.Error = "No se pudieron cargar los pedidos pendientes."
		a.publish()

	case *getView:
		ctx.Respond(a.view.clone())

	case *actor.Stopped:
		a.logger.Debug("Board actor stopped")
	}
}

func (a *boardActor) apply(children repository.Children) {
	list := make([]OrderView, 0, len(children))
	current := make(map[string]bool, len(children))
	var fresh []string

	for key, raw := range children {
		var order models.Order
		if err := json.Unmarshal(raw, &order); err != nil {
			a.logger.Warn("Skipping undecodable order", zap.String("key", key), zap.Error(err))
			continue
		}
		if order.OrderID == "" {
			order.OrderID = key
		}
		current[key] = true
		if a.view.Loaded && !a.seen[key] {
			fresh = append(fresh, key)
		}
		list = append(list, OrderView{
			Key:     key,
			Order:   order,
			Actions: orders.AvailableActions(order.Status),
		})
	}

	// Newest first.
	sort.Slice(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp > list[j].Timestamp
		}
		return list[i].Key < list[j].Key
	})
	sort.Strings(fresh)

	a.seen = current
	a.view = View{
		RestaurantID: a.restaurantID,
		Orders:       list,
		NewOrderIDs:  fresh,
		Version:      a.view.Version + 1,
		Loaded:       true,
	}
}

// publish replaces any unread view with the latest one.
func (a *boardActor) publish() {
	v := a.view.clone()
	select {
	case <-a.updates:
	default:
	}
	select {
	case a.updates <- v:
	default:
	}
}
