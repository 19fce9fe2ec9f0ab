package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const memoryIssuer = "ceats-identity"

// Claims are carried by tokens issued by MemoryProvider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// MemoryProvider hashes passwords with bcrypt and issues HS256 tokens. By
// default accounts live in process, which only suits tests and a single
// binary; WithAccountStore keeps them in the shared store instead.
type MemoryProvider struct {
	accounts accountStore
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

type ProviderOption func(*MemoryProvider)

// WithAccountStore keeps accounts under accounts/{uid} of store, so every
// process sharing the store and the token secret sees the same users.
func WithAccountStore(store repository.Store) ProviderOption {
	return func(p *MemoryProvider) { p.accounts = newStoreAccounts(store) }
}

func NewMemoryProvider(secret string, ttl time.Duration, opts ...ProviderOption) (*MemoryProvider, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	p := &MemoryProvider{
		accounts: newMapAccounts(),
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	uid, acc, err := p.accounts.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, newError(CodeUserNotFound, "no account for %q", email)
	}
	if acc.Disabled {
		return nil, newError(CodeUserDisabled, "account %s is disabled", uid)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.Hash), []byte(password)); err != nil {
		return nil, &Error{Code: CodeWrongPassword, Err: err}
	}

	token, err := p.issue(uid, acc.Email)
	if err != nil {
		return nil, err
	}
	return &Session{UID: uid, Email: acc.Email, IDToken: token}, nil
}

func (p *MemoryProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	uid, err := p.CreateUser(ctx, email, password)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	token, err := p.issue(uid, email)
	if err != nil {
		return nil, err
	}
	return &Session{UID: uid, Email: email, IDToken: token}, nil
}

func (p *MemoryProvider) CreateUser(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	uid := uuid.NewString()
	if err := p.accounts.insert(ctx, uid, &accountRecord{Email: email, Hash: string(hash)}); err != nil {
		return "", err
	}
	return uid, nil
}

func (p *MemoryProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	},
		jwt.WithIssuer(memoryIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", &Error{Code: CodeInvalidToken, Err: err}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", newError(CodeInvalidToken, "invalid token claims")
	}

	acc, err := p.accounts.byUID(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", newError(CodeUserNotFound, "account %s no longer exists", claims.Subject)
	}
	if acc.Disabled {
		return "", newError(CodeUserDisabled, "account %s is disabled", claims.Subject)
	}
	return claims.Subject, nil
}

func (p *MemoryProvider) DeleteUser(ctx context.Context, uid string) error {
	return p.accounts.remove(ctx, uid)
}

// Disable blocks sign-in and token verification for uid.
func (p *MemoryProvider) Disable(uid string) error {
	ctx := context.Background()
	acc, err := p.accounts.byUID(ctx, uid)
	if err != nil {
		return err
	}
	if acc == nil {
		return newError(CodeUserNotFound, "no account %s", uid)
	}
	acc.Disabled = true
	return p.accounts.put(ctx, uid, acc)
}

func (p *MemoryProvider) issue(uid, email string) (string, error) {
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    memoryIssuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Email: email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
