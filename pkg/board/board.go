// Package board keeps live views of a restaurant's pending orders.
package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 5 * time.Second

// OrderView is an order as shown on the board.
type OrderView struct {
	Key string `json:"key"`
	models.Order
	Actions []orders.ActionView `json:"actions"`
}

// View is the full visible set of a board, newest order first.
type View struct {
	RestaurantID string      `json:"restaurantId"`
	Orders       []OrderView `json:"orders"`
	// NewOrderIDs lists orders that appeared since the previous view.
	NewOrderIDs []string `json:"newOrderIds,omitempty"`
	Version     int      `json:"version"`
	Loaded      bool     `json:"loaded"`
	Error       string   `json:"error,omitempty"`
}

func (v View) clone() View {
	out := v
	out.Orders = append([]OrderView(nil), v.Orders...)
	out.NewOrderIDs = append([]string(nil), v.NewOrderIDs...)
	return out
}

// Manager opens boards. Each open board runs as one actor.
type Manager struct {
	system *actor.ActorSystem
	store  repository.Store
	logger *zap.Logger
}

func NewManager(store repository.Store, logger *zap.Logger) *Manager {
	return &Manager{
		system: actor.NewActorSystem(),
		store:  store,
		logger: logger.Named("board"),
	}
}

// Open subscribes to restaurantID's pending orders. The caller must Close
// the board to release the subscription.
func (m *Manager) Open(ctx context.Context, restaurantID string) (*Board, error) {
	if err := repository.ValidateKey(restaurantID); err != nil {
		return nil, err
	}

	updates := make(chan View, 1)
	logger := m.logger.With(zap.String("restaurant_id", restaurantID))
	props := actor.PropsFromProducer(func() actor.Actor {
		return &boardActor{
			restaurantID: restaurantID,
			updates:      updates,
			logger:       logger,
		}
	})
	pid := m.system.Root.Spawn(props)

	root := m.system.Root
	sub, err := m.store.Subscribe(ctx,
		repository.Query{
			Path:   repository.OrdersPath(restaurantID),
			Child:  "status",
			Equals: models.StatusPending,
		},
		func(c repository.Children) { root.Send(pid, &snapshot{children: c}) },
		func(err error) { root.Send(pid, &subscriptionFailed{err: err}) },
	)
	if err != nil {
		_ = root.StopFuture(pid).Wait()
		return nil, fmt.Errorf("failed to subscribe to orders: %w", err)
	}

	logger.Info("Board opened")
	return &Board{
		restaurantID: restaurantID,
		root:         root,
		pid:          pid,
		sub:          sub,
		updates:      updates,
		logger:       logger,
	}, nil
}

// Shutdown stops every actor still running.
func (m *Manager) Shutdown() {
	m.system.Shutdown()
}

// Board is one open subscription to a restaurant's pending orders.
type Board struct {
	restaurantID string
	root         *actor.RootContext
	pid          *actor.PID
	sub          repository.Subscription
	updates      chan View
	logger       *zap.Logger
	once         sync.Once
}

func (b *Board) RestaurantID() string { return b.restaurantID }

// Updates delivers the latest view after every change. Views not read
// before the next change are replaced. The channel is closed by Close.
func (b *Board) Updates() <-chan View {
	return b.updates
}

// Orders returns the current view.
func (b *Board) Orders(ctx context.Context) (View, error) {
	timeout := defaultRequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return View{}, context.DeadlineExceeded
	}

	result, err := b.root.RequestFuture(b.pid, &getView{}, timeout).Result()
	if err != nil {
		return View{}, fmt.Errorf("failed to read board: %w", err)
	}
	view, ok := result.(View)
	if !ok {
		return View{}, fmt.Errorf("unexpected board response %T", result)
	}
	return view, nil
}

// Close releases the subscription and stops the board's actor.
func (b *Board) Close() {
	b.once.Do(func() {
		b.sub.Close()
		if err := b.root.StopFuture(b.pid).Wait(); err != nil {
			b.logger.Warn("Board actor did not stop cleanly", zap.Error(err))
		}
		close(b.updates)
		b.logger.Info("Board closed")
	})
}
