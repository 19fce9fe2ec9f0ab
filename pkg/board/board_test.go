package board

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

type fixture struct {
	store   *repository.MemoryStore
	orders  *orders.Service
	manager *Manager
	clock   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := &fixture{store: store, manager: NewManager(store, zap.NewNop()), clock: 1_700_000_000_000}
	f.orders = orders.NewService(store, zap.NewNop(), orders.WithClock(func() time.Time {
		f.clock += 1000
		return time.UnixMilli(f.clock)
	}))
	t.Cleanup(func() {
		f.manager.Shutdown()
		store.Close()
	})
	return f
}

func (f *fixture) submit(t *testing.T, body string) {
	t.Helper()
	var sub orders.Submission
	if err := json.Unmarshal([]byte(body), &sub); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if _, err := f.orders.Submit(context.Background(), sub); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
}

// waitView returns the first view accepted by match.
func waitView(t *testing.T, b *Board, match func(View) bool) View {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-b.Updates():
			if !ok {
				t.Fatal("updates closed")
			}
			if match(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for board view")
		}
	}
}

func TestBoard_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.submit(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"Burger","quantity":2,"price":5,"total":10,"currency":"USD"}],"total":10}`)

	b, err := f.manager.Open(context.Background(), "R1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	v := waitView(t, b, func(v View) bool { return v.Loaded })
	if len(v.Orders) != 1 || v.Orders[0].OrderID != "O1" {
		t.Fatalf("expected exactly O1, got %+v", v.Orders)
	}
	if v.Orders[0].Status != models.StatusPending {
		t.Errorf("expected pendiente, got %q", v.Orders[0].Status)
	}
	if len(v.Orders[0].Actions) != 2 {
		t.Errorf("expected advance and cancel actions, got %+v", v.Orders[0].Actions)
	}
	if len(v.NewOrderIDs) != 0 {
		t.Errorf("expected initial load not to flag new orders, got %v", v.NewOrderIDs)
	}
}

func TestBoard_SortsAndFlagsNewOrders(t *testing.T) {
	f := newFixture(t)
	f.submit(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}],"total":10}`)
	f.submit(t, `{"orderId":"O2","sucursal":"R1","productDetails":[{"name":"B"}],"total":10}`)

	b, err := f.manager.Open(context.Background(), "R1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	v := waitView(t, b, func(v View) bool { return len(v.Orders) == 2 })
	if v.Orders[0].OrderID != "O2" || v.Orders[1].OrderID != "O1" {
		t.Errorf("expected newest first [O2 O1], got [%s %s]", v.Orders[0].OrderID, v.Orders[1].OrderID)
	}

	f.submit(t, `{"orderId":"O3","sucursal":"R1","productDetails":[{"name":"C"}],"total":10}`)
	v = waitView(t, b, func(v View) bool { return len(v.Orders) == 3 })
	if v.Orders[0].OrderID != "O3" {
		t.Errorf("expected O3 first, got %s", v.Orders[0].OrderID)
	}
	if len(v.NewOrderIDs) != 1 || v.NewOrderIDs[0] != "O3" {
		t.Errorf("expected O3 flagged as new, got %v", v.NewOrderIDs)
	}
}

func TestBoard_AdvancedOrderDisappears(t *testing.T) {
	f := newFixture(t)
	f.submit(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}],"total":10}`)
	f.submit(t, `{"orderId":"O2","sucursal":"R2","productDetails":[{"name":"B"}],"total":10}`)

	b, err := f.manager.Open(context.Background(), "R1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()
	waitView(t, b, func(v View) bool { return len(v.Orders) == 1 })

	if _, err := f.orders.Transition(context.Background(), "R1", "O1", orders.ActionAdvance); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitView(t, b, func(v View) bool { return v.Loaded && len(v.Orders) == 0 })

	current, err := b.Orders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(current.Orders) != 0 {
		t.Errorf("expected empty board, got %+v", current.Orders)
	}
}

func TestBoard_CloseStopsUpdates(t *testing.T) {
	f := newFixture(t)

	b, err := f.manager.Open(context.Background(), "R1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitView(t, b, func(v View) bool { return v.Loaded })

	b.Close()
	b.Close()

	f.submit(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}],"total":10}`)

	select {
	case v, ok := <-b.Updates():
		if ok {
			t.Errorf("expected no views after close, got %+v", v)
		}
	case <-time.After(time.Second):
		t.Error("expected updates channel to be closed")
	}
}

func TestManager_OpenInvalidRestaurant(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.Open(context.Background(), "R/1"); err == nil {
		t.Error("expected error for invalid restaurant id")
	}
}
