package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newToolkitProvider(t *testing.T, handler http.HandlerFunc) *FirebaseProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &FirebaseProvider{
		httpClient: srv.Client(),
		baseURL:    srv.URL,
		apiKey:     "test-key",
		logger:     zap.NewNop(),
	}
}

func TestFirebaseProvider_SignIn(t *testing.T) {
	var got passwordRequest
	var path, key string
	p := newToolkitProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(passwordResponse{LocalID: "uid-1", Email: "cook@r1.com", IDToken: "tok"})
	})

	session, err := p.SignIn(context.Background(), " cook@r1.com ", "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/accounts:signInWithPassword" {
		t.Errorf("expected sign-in endpoint, got %q", path)
	}
	if key != "test-key" {
		t.Errorf("expected api key in query, got %q", key)
	}
	if got.Email != "cook@r1.com" || got.Password != "secret1" || !got.ReturnSecureToken {
		t.Errorf("unexpected request body %+v", got)
	}
	if session.UID != "uid-1" || session.IDToken != "tok" {
		t.Errorf("unexpected session %+v", session)
	}
}

func TestFirebaseProvider_ToolkitErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		signUp bool
		code   Code
	}{
		{"unknown email", http.StatusBadRequest, `{"error":{"code":400,"message":"EMAIL_NOT_FOUND"}}`, false, CodeUserNotFound},
		{"bad credentials", http.StatusBadRequest, `{"error":{"code":400,"message":"INVALID_LOGIN_CREDENTIALS"}}`, false, CodeWrongPassword},
		{"disabled", http.StatusBadRequest, `{"error":{"code":400,"message":"USER_DISABLED"}}`, false, CodeUserDisabled},
		{"email taken", http.StatusBadRequest, `{"error":{"code":400,"message":"EMAIL_EXISTS"}}`, true, CodeEmailAlreadyExists},
		{"weak password", http.StatusBadRequest, `{"error":{"code":400,"message":"WEAK_PASSWORD : Password should be at least 6 characters"}}`, true, CodeWeakPassword},
		{"unreadable error", http.StatusInternalServerError, `<html>oops</html>`, false, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newToolkitProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			var err error
			if tt.signUp {
				_, err = p.SignUp(context.Background(), "cook@r1.com", "secret1")
			} else {
				_, err = p.SignIn(context.Background(), "cook@r1.com", "secret1")
			}
			if !IsCode(err, tt.code) {
				t.Errorf("expected code %q, got %v", tt.code, err)
			}
		})
	}
}

func TestFirebaseProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	p := &FirebaseProvider{httpClient: srv.Client(), baseURL: srv.URL, apiKey: "k", logger: zap.NewNop()}
	srv.Close()

	if _, err := p.SignIn(context.Background(), "cook@r1.com", "secret1"); !IsCode(err, CodeUnknown) {
		t.Errorf("expected unknown code for transport failure, got %v", err)
	}
}
