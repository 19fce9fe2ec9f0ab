package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/CesarCrz/cEatssFB/pkg/config"
	"go.uber.org/zap"
)

const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// FirebaseProvider uses the Admin SDK for privileged operations and the
// Identity Toolkit REST API for password sign-in, which the Admin SDK lacks.
type FirebaseProvider struct {
	client     *auth.Client
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

func NewFirebaseProvider(ctx context.Context, app *firebase.App, cfg *config.FirebaseConfig, logger *zap.Logger) (*FirebaseProvider, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}

	baseURL := identityToolkitURL
	apiKey := cfg.APIKey
	if cfg.Emulator.Enabled {
		baseURL = fmt.Sprintf("http://%s/identitytoolkit.googleapis.com/v1", cfg.Emulator.AuthHost)
		if apiKey == "" {
			apiKey = "emulator"
		}
	}

	return &FirebaseProvider{
		client: client,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}, nil
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return p.passwordCall(ctx, "accounts:signInWithPassword", email, password)
}

func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return p.passwordCall(ctx, "accounts:signUp", email, password)
}

func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return "", err
	}

	params := (&auth.UserToCreate{}).Email(email).Password(password)
	user, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return "", classifyAdminError(err)
	}
	return user.UID, nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	verified, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", &Error{Code: CodeInvalidToken, Err: err}
	}
	return verified.UID, nil
}

func (p *FirebaseProvider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func classifyAdminError(err error) error {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return &Error{Code: CodeEmailAlreadyExists, Err: err}
	case auth.IsUserNotFound(err):
		return &Error{Code: CodeUserNotFound, Err: err}
	default:
		return &Error{Code: CodeUnknown, Err: err}
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type restError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) passwordCall(ctx context.Context, method, email, password string) (*Session, error) {
	body, err := json.Marshal(passwordRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", p.baseURL, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Err: fmt.Errorf("identity toolkit request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var re restError
		if err := json.NewDecoder(resp.Body).Decode(&re); err != nil {
			return nil, newError(CodeUnknown, "identity toolkit returned status %d", resp.StatusCode)
		}
		p.logger.Debug("Identity toolkit rejected request",
			zap.String("method", method),
			zap.String("reason", re.Error.Message))
		return nil, restErrorCode(re.Error.Message)
	}

	var out passwordResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode identity toolkit response: %w", err)
	}
	return &Session{UID: out.LocalID, Email: out.Email, IDToken: out.IDToken}, nil
}

// restErrorCode maps Identity Toolkit messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters".
func restErrorCode(message string) *Error {
	reason := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	code := CodeUnknown
	switch reason {
	case "EMAIL_EXISTS":
		code = CodeEmailAlreadyExists
	case "INVALID_EMAIL", "MISSING_EMAIL":
		code = CodeInvalidEmail
	case "WEAK_PASSWORD", "MISSING_PASSWORD":
		code = CodeWeakPassword
	case "USER_DISABLED":
		code = CodeUserDisabled
	case "EMAIL_NOT_FOUND":
		code = CodeUserNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		code = CodeWrongPassword
	case "OPERATION_NOT_ALLOWED", "PASSWORD_LOGIN_DISABLED":
		code = CodeOperationNotAllowed
	}
	return newError(code, "%s", message)
}
