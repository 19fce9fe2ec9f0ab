package provisioning

import (
	"errors"

	"github.com/CesarCrz/cEatssFB/pkg/identity"
)

// Message returns the user-facing text for a provisioning error.
func Message(err error) string {
	var orphan *OrphanedAccountError
	var idErr *identity.Error
	switch {
	case errors.Is(err, ErrMissingFields):
		return "Faltan datos requeridos."
	case errors.Is(err, ErrInvalidRole):
		return "Rol inválido. Solo se pueden crear usuarios con rol 'restaurante'."
	case errors.Is(err, ErrPasswordMismatch):
		return "Las contraseñas no coinciden."
	case errors.Is(err, ErrInvalidRestaurant):
		return "Identificador de restaurante inválido."
	case errors.As(err, &orphan):
		return "La cuenta se creó pero no se pudo guardar su perfil. Contacta al administrador."
	case errors.As(err, &idErr):
		return identity.Message(err, identity.OpCreateUser)
	default:
		return "Error interno al crear el usuario."
	}
}
