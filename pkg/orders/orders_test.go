package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/events"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

// countingStore wraps a store and counts writes.
type countingStore struct {
	repository.Store
	mu     sync.Mutex
	writes []string
	err    error
}

func (c *countingStore) Set(ctx context.Context, path string, value any) error {
	c.mu.Lock()
	c.writes = append(c.writes, path)
	c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return c.Store.Set(ctx, path, value)
}

type mockPublisher struct {
	keys []string
	err  error
}

func (m *mockPublisher) Publish(ctx context.Context, key string, e events.OrderEvent) error {
	m.keys = append(m.keys, key)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type mockAuditor struct {
	actions []string
}

func (m *mockAuditor) Record(ctx context.Context, log *repository.AuditLog) error {
	m.actions = append(m.actions, log.Action)
	return errors.New("mongo down")
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *countingStore) {
	t.Helper()
	store := &countingStore{Store: repository.NewMemoryStore()}
	t.Cleanup(func() { store.Close() })
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(store, zap.NewNop(), opts...), store
}

func decodeSubmission(t *testing.T, body string) Submission {
	t.Helper()
	var sub Submission
	if err := json.Unmarshal([]byte(body), &sub); err != nil {
		t.Fatalf("failed to decode submission: %v", err)
	}
	return sub
}

const burgerOrder = `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"Burger","quantity":2,"price":5,"total":10,"currency":"USD"}],"total":10}`

func TestSubmit_StoresPendingOrder(t *testing.T) {
	svc, store := newTestService(t)

	sub := decodeSubmission(t, burgerOrder)
	order, err := svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.OrderID != "O1" || order.RestaurantID != "R1" {
		t.Errorf("unexpected order ids: %+v", order)
	}

	var stored models.Order
	found, err := store.Get(context.Background(), "restaurants/R1/orders/O1", &stored)
	if err != nil || !found {
		t.Fatalf("expected stored order, found=%v err=%v", found, err)
	}
	if stored.Status != models.StatusPending {
		t.Errorf("expected status pendiente, got %q", stored.Status)
	}
	if stored.Archived {
		t.Error("expected archived false")
	}
	if stored.Timestamp != fixedNow.UnixMilli() {
		t.Errorf("expected timestamp %d, got %d", fixedNow.UnixMilli(), stored.Timestamp)
	}
	if len(stored.ProductDetails) != 1 || stored.ProductDetails[0].Quantity != 2 {
		t.Errorf("unexpected product details: %+v", stored.ProductDetails)
	}
	if len(store.writes) != 1 {
		t.Errorf("expected exactly one write, got %v", store.writes)
	}
}

func TestSubmit_OverridesClientStatus(t *testing.T) {
	svc, store := newTestService(t)

	// Unknown payload fields such as status and archived are ignored.
	sub := decodeSubmission(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}],"total":5,"status":"entregado","archived":true}`)
	if _, err := svc.Submit(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored map[string]any
	store.Get(context.Background(), "restaurants/R1/orders/O1", &stored)
	if stored["status"] != "pendiente" || stored["archived"] != false {
		t.Errorf("expected pendiente/false, got %v/%v", stored["status"], stored["archived"])
	}
}

func TestSubmit_DropsUndeclaredFields(t *testing.T) {
	svc, store := newTestService(t)

	sub := decodeSubmission(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}],"total":5,"promoCode":"2X1","channel":"whatsapp"}`)
	if _, err := svc.Submit(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored map[string]any
	store.Get(context.Background(), "restaurants/R1/orders/O1", &stored)
	for _, field := range []string{"promoCode", "channel"} {
		if _, ok := stored[field]; ok {
			t.Errorf("expected %s not to be stored, got %v", field, stored[field])
		}
	}
}

func TestSubmit_ProductDetailsAsText(t *testing.T) {
	svc, _ := newTestService(t)

	sub := decodeSubmission(t, `{"orderId":"O2","sucursal":"R1","productDetails":"[{\"name\":\"Taco\",\"quantity\":\"3\",\"price\":2,\"total\":6,\"currency\":\"MXN\"}]","total":"6"}`)
	order, err := svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order.ProductDetails) != 1 || order.ProductDetails[0].Name != "Taco" || order.ProductDetails[0].Quantity != 3 {
		t.Errorf("unexpected product details: %+v", order.ProductDetails)
	}
	if order.Total != 6 {
		t.Errorf("expected total 6, got %v", order.Total)
	}
}

func TestSubmit_InvalidProductDetailsText(t *testing.T) {
	svc, store := newTestService(t)

	sub := decodeSubmission(t, `{"orderId":"O2","sucursal":"R1","productDetails":"not json","total":6}`)
	_, err := svc.Submit(context.Background(), sub)
	if !IsValidation(err) || !errors.Is(err, ErrInvalidProductDetails) {
		t.Errorf("expected invalid product details validation error, got %v", err)
	}
	if len(store.writes) != 0 {
		t.Errorf("expected no writes, got %v", store.writes)
	}
}

func TestSubmit_MissingFields(t *testing.T) {
	tests := map[string]string{
		"no orderId":        `{"sucursal":"R1","productDetails":[{"name":"A"}],"total":10}`,
		"no sucursal":       `{"orderId":"O1","productDetails":[{"name":"A"}],"total":10}`,
		"no productDetails": `{"orderId":"O1","sucursal":"R1","total":10}`,
		"null products":     `{"orderId":"O1","sucursal":"R1","productDetails":null,"total":10}`,
		"empty products":    `{"orderId":"O1","sucursal":"R1","productDetails":"","total":10}`,
		"no total":          `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}]}`,
		"zero total":        `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}],"total":0}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.Submit(context.Background(), decodeSubmission(t, body))
			if !errors.Is(err, ErrMissingFields) {
				t.Errorf("expected ErrMissingFields, got %v", err)
			}
			var v *ValidationError
			if !errors.As(err, &v) || v.Message != "Datos del pedido incompletos." {
				t.Errorf("expected localized message, got %v", err)
			}
			if len(store.writes) != 0 {
				t.Errorf("expected no writes, got %v", store.writes)
			}
		})
	}
}

func TestSubmit_LastWriteWins(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first := decodeSubmission(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"A"}],"total":10,"payMethod":"efectivo"}`)
	second := decodeSubmission(t, `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"B"}],"total":20}`)

	if _, err := svc.Submit(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Submit(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored models.Order
	store.Get(ctx, "restaurants/R1/orders/O1", &stored)
	if stored.Total != 20 {
		t.Errorf("expected total 20, got %v", stored.Total)
	}
	if stored.PayMethod != "" {
		t.Errorf("expected full overwrite to drop payMethod, got %q", stored.PayMethod)
	}
}

func TestSubmit_BranchResolver(t *testing.T) {
	resolver := func(ctx context.Context, branch string) (string, error) {
		if branch == "Centro" {
			return "R1", nil
		}
		return "", nil
	}
	svc, store := newTestService(t, WithBranchResolver(resolver))
	ctx := context.Background()

	sub := decodeSubmission(t, `{"orderId":"O1","sucursal":"Centro","productDetails":[{"name":"A"}],"total":10}`)
	order, err := svc.Submit(ctx, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.RestaurantID != "R1" || order.Sucursal != "Centro" {
		t.Errorf("unexpected order: %+v", order)
	}

	sub.Sucursal = "Norte"
	_, err = svc.Submit(ctx, sub)
	var v *ValidationError
	if !errors.As(err, &v) || v.Message != `Sucursal "Norte" no encontrada.` {
		t.Errorf("expected branch not found message, got %v", err)
	}
	if !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("expected ErrBranchNotFound, got %v", err)
	}
	if len(store.writes) != 1 {
		t.Errorf("expected one write, got %v", store.writes)
	}
}

func TestSubmit_StoreFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.err = errors.New("permission denied")

	_, err := svc.Submit(context.Background(), decodeSubmission(t, burgerOrder))
	if err == nil || IsValidation(err) {
		t.Errorf("expected infrastructure error, got %v", err)
	}
}

func TestSubmit_SideEffectsAreBestEffort(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	aud := &mockAuditor{}
	svc, _ := newTestService(t, WithPublisher(pub), WithAuditor(aud))

	if _, err := svc.Submit(context.Background(), decodeSubmission(t, burgerOrder)); err != nil {
		t.Fatalf("expected success despite side-effect failures, got %v", err)
	}
	if len(pub.keys) != 1 || pub.keys[0] != events.KeyOrderReceived {
		t.Errorf("expected order.received event, got %v", pub.keys)
	}
	if len(aud.actions) != 1 || aud.actions[0] != repository.AuditOrderReceived {
		t.Errorf("expected audit entry, got %v", aud.actions)
	}
}

func TestTransition_Lifecycle(t *testing.T) {
	pub := &mockPublisher{}
	svc, store := newTestService(t, WithPublisher(pub))
	ctx := context.Background()
	svc.Submit(ctx, decodeSubmission(t, burgerOrder))
	store.writes = nil

	want := []models.Status{models.StatusPreparing, models.StatusReady, models.StatusDelivered}
	for _, w := range want {
		got, err := svc.Transition(ctx, "R1", "O1", ActionAdvance)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != w {
			t.Errorf("expected %q, got %q", w, got)
		}
	}

	for _, p := range store.writes {
		if p != "restaurants/R1/orders/O1/status" {
			t.Errorf("expected only status writes, got %q", p)
		}
	}

	if _, err := svc.Transition(ctx, "R1", "O1", ActionCancel); !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("expected ErrTerminalStatus, got %v", err)
	}

	var stored models.Order
	store.Get(ctx, "restaurants/R1/orders/O1", &stored)
	if stored.Total != 10 || len(stored.ProductDetails) != 1 {
		t.Errorf("expected the rest of the order untouched, got %+v", stored)
	}
	if len(pub.keys) != 4 {
		t.Errorf("expected 1 received + 3 status events, got %v", pub.keys)
	}
}

func TestTransition_CancelAndArchive(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	svc.Submit(ctx, decodeSubmission(t, burgerOrder))

	if err := svc.Archive(ctx, "R1", "O1"); !errors.Is(err, ErrNotTerminal) {
		t.Errorf("expected ErrNotTerminal, got %v", err)
	}

	got, err := svc.Transition(ctx, "R1", "O1", ActionCancel)
	if err != nil || got != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %q, %v", got, err)
	}

	if err := svc.Archive(ctx, "R1", "O1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stored models.Order
	store.Get(ctx, "restaurants/R1/orders/O1", &stored)
	if !stored.Archived {
		t.Error("expected archived order")
	}
}

func TestTransition_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Transition(ctx, "R1", "missing", ActionAdvance); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	svc.Submit(ctx, decodeSubmission(t, burgerOrder))
	if _, err := svc.Transition(ctx, "R1", "O1", Action("reopen")); !errors.Is(err, ErrUnknownAction) || !IsValidation(err) {
		t.Errorf("expected ErrUnknownAction validation error, got %v", err)
	}
}

func TestAvailableActions(t *testing.T) {
	actions := AvailableActions(models.StatusPending)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %v", actions)
	}
	if actions[0].Action != ActionAdvance || actions[0].Label != "En Preparación" {
		t.Errorf("unexpected advance action: %+v", actions[0])
	}
	if actions[1].Action != ActionCancel {
		t.Errorf("expected cancel action, got %+v", actions[1])
	}
	if got := AvailableActions(models.StatusDelivered); len(got) != 0 {
		t.Errorf("expected no actions for delivered, got %v", got)
	}
}
