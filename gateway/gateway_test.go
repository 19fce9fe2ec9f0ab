package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/api"
	"github.com/CesarCrz/cEatssFB/pkg/board"
	"github.com/CesarCrz/cEatssFB/pkg/console"
	"github.com/CesarCrz/cEatssFB/pkg/identity"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/provisioning"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/CesarCrz/cEatssFB/pkg/session"
	"go.uber.org/zap"
)

type mockHealth struct {
	status string
	err    error
}

func (m mockHealth) Check(ctx context.Context) (string, error) {
	return m.status, m.err
}

type env struct {
	gateway  *Gateway
	store    *repository.MemoryStore
	provider *identity.MemoryProvider
	orders   *orders.Service
}

func setup(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	provider, err := identity.NewMemoryProvider("secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolver := session.NewResolver(store, provider, logger)
	prov := provisioning.NewService(store, provider, logger)
	orderSvc := orders.NewService(store, logger)
	boards := board.NewManager(store, logger)

	backend := httptest.NewServer(api.NewServer(orderSvc, prov, resolver, logger).Handler())
	httpBackend := console.NewHTTPBackend("ceats-api", backend.URL, nil, 5*time.Second, logger)

	g := NewGateway(Deps{
		Sessions:     resolver,
		Provisioning: prov,
		Orders:       orderSvc,
		Boards:       boards,
		Console:      console.New(store, httpBackend, logger),
		Backend:      mockHealth{status: "SERVING"},
	}, logger)

	t.Cleanup(func() {
		backend.Close()
		boards.Shutdown()
		store.Close()
	})
	return &env{gateway: g, store: store, provider: provider, orders: orderSvc}
}

// user creates an account with profile and returns its token.
func (e *env) user(t *testing.T, email string, profile models.UserProfile) string {
	t.Helper()
	ctx := context.Background()
	uid, err := e.provider.CreateUser(ctx, email, "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profile.Email = email
	if err := e.store.Set(ctx, repository.UserPath(uid), profile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess, err := e.provider.SignIn(ctx, email, "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sess.IDToken
}

func (e *env) submit(t *testing.T, orderID, restaurantID string) {
	t.Helper()
	sub := orders.Submission{
		OrderID:        orderID,
		Sucursal:       restaurantID,
		ProductDetails: json.RawMessage(`[{"name":"Burger","quantity":2,"price":5,"total":10,"currency":"USD"}]`),
		Total:          10,
	}
	if _, err := e.orders.Submit(context.Background(), sub); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
}

func (e *env) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.gateway.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestLogin(t *testing.T) {
	e := setup(t)
	e.user(t, "cook@r1.com", models.UserProfile{Role: models.RoleStaff, RestaurantID: "R1"})
	e.user(t, "boss@ceats.com", models.UserProfile{Role: models.RoleAdmin})
	e.user(t, "eater@mail.com", models.UserProfile{Role: models.RoleCustomer})
	e.user(t, "broken@r1.com", models.UserProfile{Role: models.RoleStaff})

	tests := []struct {
		name     string
		body     string
		status   int
		redirect string
		message  string
	}{
		{"staff", `{"email":"cook@r1.com","password":"secret1"}`, http.StatusOK, "/dashboard/restaurant/R1", ""},
		{"admin", `{"email":"boss@ceats.com","password":"secret1"}`, http.StatusOK, "/dashboard/admin", ""},
		{"customer", `{"email":"eater@mail.com","password":"secret1"}`, http.StatusForbidden, "", "Tu cuenta no tiene permisos"},
		{"staff without restaurant", `{"email":"broken@r1.com","password":"secret1"}`, http.StatusForbidden, "", "Tu cuenta no tiene permisos"},
		{"wrong password", `{"email":"cook@r1.com","password":"nope123"}`, http.StatusUnauthorized, "", "Contraseña incorrecta."},
		{"unknown user", `{"email":"ghost@r1.com","password":"secret1"}`, http.StatusUnauthorized, "", "Usuario no encontrado"},
		{"empty", `{}`, http.StatusBadRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/api/login", "", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			var resp map[string]any
			decode(t, rec, &resp)
			if tt.redirect != "" {
				if resp["redirect"] != tt.redirect {
					t.Errorf("expected redirect %q, got %v", tt.redirect, resp["redirect"])
				}
				if resp["token"] == "" {
					t.Error("expected token in response")
				}
			}
			if tt.message != "" {
				if msg, _ := resp["message"].(string); !strings.Contains(msg, tt.message) {
					t.Errorf("expected message containing %q, got %q", tt.message, msg)
				}
			}
		})
	}
}

func TestRegister(t *testing.T) {
	e := setup(t)

	rec := e.do(http.MethodPost, "/api/register", "", `{"email":"new@mail.com","password":"secret1","confirmPassword":"other1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for mismatch, got %d", rec.Code)
	}

	rec = e.do(http.MethodPost, "/api/register", "", `{"email":"new@mail.com","password":"secret1","confirmPassword":"secret1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(http.MethodPost, "/api/register", "", `{"email":"new@mail.com","password":"secret1","confirmPassword":"secret1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for duplicate, got %d", rec.Code)
	}
	var resp map[string]any
	decode(t, rec, &resp)
	if resp["message"] != "El correo electrónico ya está en uso." {
		t.Errorf("unexpected message %v", resp["message"])
	}

	// Customers have no dashboard.
	rec = e.do(http.MethodPost, "/api/login", "", `{"email":"new@mail.com","password":"secret1"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for customer login, got %d", rec.Code)
	}
}

func TestSession(t *testing.T) {
	e := setup(t)
	token := e.user(t, "cook@r1.com", models.UserProfile{Role: models.RoleStaff, RestaurantID: "R1"})

	if rec := e.do(http.MethodGet, "/api/session", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", rec.Code)
	}

	rec := e.do(http.MethodGet, "/api/session", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var res session.Resolution
	decode(t, rec, &res)
	if res.Destination != "/dashboard/restaurant/R1" || res.Role != models.RoleStaff {
		t.Errorf("unexpected resolution %+v", res)
	}
}

func TestPendingOrders(t *testing.T) {
	e := setup(t)
	staff := e.user(t, "cook@r1.com", models.UserProfile{Role: models.RoleStaff, RestaurantID: "R1"})
	e.submit(t, "O1", "R1")
	e.submit(t, "O2", "R2")

	rec := e.do(http.MethodGet, "/api/restaurants/R1/orders/pending", staff, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view board.View
	decode(t, rec, &view)
	if len(view.Orders) != 1 || view.Orders[0].OrderID != "O1" {
		t.Fatalf("expected only O1, got %+v", view.Orders)
	}
	if view.Orders[0].Status != models.StatusPending {
		t.Errorf("expected pending, got %q", view.Orders[0].Status)
	}
	if !view.Loaded || view.Version < 1 || view.RestaurantID != "R1" {
		t.Errorf("expected a loaded R1 view, got loaded=%v version=%d restaurant=%q", view.Loaded, view.Version, view.RestaurantID)
	}

	if rec := e.do(http.MethodGet, "/api/restaurants/R2/orders/pending", staff, ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for another restaurant, got %d", rec.Code)
	}
}

func TestTransitionAndArchive(t *testing.T) {
	e := setup(t)
	staff := e.user(t, "cook@r1.com", models.UserProfile{Role: models.RoleStaff, RestaurantID: "R1"})
	e.submit(t, "O1", "R1")

	if rec := e.do(http.MethodPost, "/api/restaurants/R1/orders/O1/archive", staff, ""); rec.Code != http.StatusConflict {
		t.Errorf("expected status 409 archiving a pending order, got %d", rec.Code)
	}

	rec := e.do(http.MethodPost, "/api/restaurants/R1/orders/O1/transition", staff, `{"action":"advance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	decode(t, rec, &resp)
	if resp["status"] != string(models.StatusPreparing) {
		t.Errorf("expected %q, got %v", models.StatusPreparing, resp["status"])
	}

	rec = e.do(http.MethodGet, "/api/restaurants/R1/orders/pending", staff, "")
	var view board.View
	decode(t, rec, &view)
	if len(view.Orders) != 0 {
		t.Errorf("expected advanced order to leave the board, got %+v", view.Orders)
	}

	if rec := e.do(http.MethodPost, "/api/restaurants/R1/orders/O1/transition", staff, `{"action":"cancel"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for cancel, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/api/restaurants/R1/orders/O1/transition", staff, `{"action":"advance"}`); rec.Code != http.StatusConflict {
		t.Errorf("expected status 409 after cancel, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/api/restaurants/R1/orders/O1/archive", staff, ""); rec.Code != http.StatusOK {
		t.Errorf("expected status 200 archiving a cancelled order, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/api/restaurants/R1/orders/O9/transition", staff, `{"action":"advance"}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown order, got %d", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/api/restaurants/R1/orders/O1/transition", staff, `{"action":"fly"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown action, got %d", rec.Code)
	}
}

func TestStreamOrders(t *testing.T) {
	e := setup(t)
	staff := e.user(t, "cook@r1.com", models.UserProfile{Role: models.RoleStaff, RestaurantID: "R1"})

	server := httptest.NewServer(e.gateway.Handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/restaurants/R1/orders/stream", nil)
	req.Header.Set("Authorization", "Bearer "+staff)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	views := make(chan board.View, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data:"); ok {
				var v board.View
				if json.Unmarshal([]byte(data), &v) == nil && v.Loaded {
					views <- v
				}
			}
		}
		close(views)
	}()

	first := <-views
	if len(first.Orders) != 0 {
		t.Fatalf("expected empty initial board, got %+v", first.Orders)
	}

	e.submit(t, "O1", "R1")
	for v := range views {
		if len(v.Orders) == 1 && v.Orders[0].OrderID == "O1" {
			return
		}
	}
	t.Fatal("expected a view containing O1")
}

func TestAdminConsole(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	for id, name := range map[string]string{"R1": "Centro", "R2": "Norte", "R3": "Sur"} {
		if err := e.store.Set(ctx, repository.RestaurantPath(id), models.Restaurant{Name: name, Address: "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	super := e.user(t, "boss@ceats.com", models.UserProfile{Role: models.RoleAdmin})
	managed := e.user(t, "area@ceats.com", models.UserProfile{
		Role:               models.RoleAdmin,
		ManagedRestaurants: map[string]bool{"R1": true, "R2": true},
	})

	rec := e.do(http.MethodGet, "/api/admin/restaurants", managed, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var list struct {
		Restaurants []console.RestaurantEntry `json:"restaurants"`
	}
	decode(t, rec, &list)
	for _, r := range list.Restaurants {
		if r.ID == "R3" {
			t.Error("expected R3 hidden from managed admin")
		}
	}
	if len(list.Restaurants) != 2 {
		t.Errorf("expected 2 restaurants, got %d", len(list.Restaurants))
	}

	if rec := e.do(http.MethodPost, "/api/admin/users", managed, `{"email":"c@r3.com","password":"secret1","restaurantId":"R3"}`); rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 outside managed set, got %d", rec.Code)
	}

	rec = e.do(http.MethodPost, "/api/admin/users", super, `{"email":"cook@r3.com","password":"secret1","restaurantId":"R3"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		UID string `json:"uid"`
	}
	decode(t, rec, &created)

	var profile models.UserProfile
	found, err := e.store.Get(ctx, repository.UserPath(created.UID), &profile)
	if err != nil || !found {
		t.Fatalf("expected stored profile, found=%v err=%v", found, err)
	}
	if profile.Role != models.RoleStaff || profile.RestaurantID != "R3" {
		t.Errorf("unexpected profile %+v", profile)
	}

	// Duplicate email surfaces the backend message.
	rec = e.do(http.MethodPost, "/api/admin/users", super, `{"email":"cook@r3.com","password":"secret1","restaurantId":"R3"}`)
	var resp map[string]any
	decode(t, rec, &resp)
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "ya está en uso") {
		t.Errorf("expected duplicate email message, got %q", msg)
	}

	rec = e.do(http.MethodPost, "/api/admin/restaurants", super, `{"name":"Oeste","address":"Av. 4"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := e.do(http.MethodPost, "/api/admin/restaurants", managed, `{"name":"Oeste","address":"Av. 4"}`); rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for managed admin, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e := setup(t)
	rec := e.do(http.MethodGet, "/health", "", "")
	var resp map[string]any
	decode(t, rec, &resp)
	if resp["backend"] != "SERVING" {
		t.Errorf("expected backend SERVING, got %v", resp["backend"])
	}

	e.gateway.deps.Backend = mockHealth{err: errors.New("down")}
	rec = e.do(http.MethodGet, "/health", "", "")
	decode(t, rec, &resp)
	if s, _ := resp["backend"].(string); !strings.HasPrefix(s, "UNAVAILABLE") {
		t.Errorf("expected unavailable backend, got %v", resp["backend"])
	}
}

// TestSeparateProcesses runs the API and the dashboard with their own
// identity providers over one shared store and token secret.
func TestSeparateProcesses(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	newProvider := func() *identity.MemoryProvider {
		p, err := identity.NewMemoryProvider("shared", time.Hour, identity.WithAccountStore(store))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return p
	}
	apiIdentity, dashIdentity := newProvider(), newProvider()

	apiProv := provisioning.NewService(store, apiIdentity, logger)
	apiOrders := orders.NewService(store, logger)
	backend := httptest.NewServer(api.NewServer(apiOrders, apiProv,
		session.NewResolver(store, apiIdentity, logger), logger).Handler())

	boards := board.NewManager(store, logger)
	dashSessions := session.NewResolver(store, dashIdentity, logger)
	e := &env{
		gateway: NewGateway(Deps{
			Sessions:     dashSessions,
			Provisioning: provisioning.NewService(store, dashIdentity, logger),
			Orders:       orders.NewService(store, logger),
			Boards:       boards,
			Console: console.New(store,
				console.NewHTTPBackend("ceats-api", backend.URL, nil, 5*time.Second, logger), logger),
		}, logger),
		store: store,
	}
	t.Cleanup(func() {
		backend.Close()
		boards.Shutdown()
		store.Close()
	})

	if _, err := apiProv.EnsureAdmin(ctx, "boss@ceats.com", "secret1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Set(ctx, repository.RestaurantPath("R1"), models.Restaurant{Name: "Centro", Address: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	login := func(email string) string {
		t.Helper()
		rec := e.do(http.MethodPost, "/api/login", "", `{"email":"`+email+`","password":"secret1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected login of %s to succeed, got %d: %s", email, rec.Code, rec.Body.String())
		}
		var resp struct {
			Token string `json:"token"`
		}
		decode(t, rec, &resp)
		return resp.Token
	}

	admin := login("boss@ceats.com")
	rec := e.do(http.MethodPost, "/api/admin/users", admin, `{"email":"cook@r1.com","password":"secret1","restaurantId":"R1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	staff := login("cook@r1.com")

	body := `{"orderId":"O1","sucursal":"R1","productDetails":[{"name":"Burger","quantity":1,"price":10,"total":10}],"total":10}`
	resp, err := http.Post(backend.URL+"/api/pedidos", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 from the API, got %d", resp.StatusCode)
	}

	rec = e.do(http.MethodGet, "/api/restaurants/R1/orders/pending", staff, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view board.View
	decode(t, rec, &view)
	if len(view.Orders) != 1 || view.Orders[0].OrderID != "O1" {
		t.Errorf("expected O1 on the dashboard board, got %+v", view.Orders)
	}
}
