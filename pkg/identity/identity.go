// Package identity adapts the external identity provider: password sign-in
// and sign-up, account creation by an administrator and token verification.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the identity provider used by the services.
type Provider interface {
	// SignIn checks the credentials and issues an ID token.
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignUp creates an account and signs it in.
	SignUp(ctx context.Context, email, password string) (*Session, error)
	// CreateUser creates an account without signing it in and returns its uid.
	CreateUser(ctx context.Context, email, password string) (string, error)
	// VerifyToken returns the uid an ID token was issued for.
	VerifyToken(ctx context.Context, token string) (string, error)
	DeleteUser(ctx context.Context, uid string) error
}

// Session is the result of a successful sign-in.
type Session struct {
	UID     string `json:"uid"`
	Email   string `json:"email"`
	IDToken string `json:"token"`
}

// Code classifies provider failures.
type Code string

const (
	CodeEmailAlreadyExists  Code = "email-already-in-use"
	CodeInvalidEmail        Code = "invalid-email"
	CodeWeakPassword        Code = "weak-password"
	CodeUserDisabled        Code = "user-disabled"
	CodeUserNotFound        Code = "user-not-found"
	CodeWrongPassword       Code = "wrong-password"
	CodeOperationNotAllowed Code = "operation-not-allowed"
	CodeInvalidToken        Code = "invalid-token"
	CodeUnknown             Code = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "identity: " + string(e.Code)
	}
	return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the code of a provider error, or CodeUnknown.
func CodeOf(err error) Code {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return CodeUnknown
}

// IsCode reports whether err is a provider error with the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Operation selects the fallback message for unclassified errors.
type Operation int

const (
	OpSignIn Operation = iota
	OpSignUp
	OpCreateUser
)

var messages = map[Code]string{
	CodeEmailAlreadyExists:  "El correo electrónico ya está en uso.",
	CodeInvalidEmail:        "Formato de correo electrónico inválido.",
	CodeWeakPassword:        "La contraseña es demasiado débil.",
	CodeUserDisabled:        "Este usuario ha sido deshabilitado.",
	CodeUserNotFound:        "Usuario no encontrado. Verifica el correo.",
	CodeWrongPassword:       "Contraseña incorrecta.",
	CodeOperationNotAllowed: "El registro con correo y contraseña no está habilitado. Contacta al administrador.",
	CodeInvalidToken:        "Sesión inválida o expirada. Inicia sesión de nuevo.",
}

// Message returns the user-facing text for err.
func Message(err error, op Operation) string {
	if msg, ok := messages[CodeOf(err)]; ok {
		return msg
	}
	switch op {
	case OpSignIn:
		return "Error al iniciar sesión. Inténtalo de nuevo."
	case OpSignUp:
		return "Error al registrar usuario. Inténtalo de nuevo."
	default:
		return "Error al crear el usuario. Inténtalo de nuevo."
	}
}
