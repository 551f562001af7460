package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Messages returned to clients. The API speaks Spanish.
const (
	MsgOriginForbidden  = "Acceso solo permitido desde 127.0.0.1 o puerto %d"
	MsgMissingAPIKey    = "Falta la clave x-api-key en los headers"
	MsgInvalidAPIKey    = "Clave x-api-key incorrecta"
	MsgTooManyRequests  = "Demasiadas peticiones, intente más tarde"
	MsgTitleTooShort    = "El titulo debe tener al menos 5 caracteres"
	MsgDuplicateTitle   = "Ya existe una tarea con ese título"
	MsgInvalidID        = "ID no válido"
	MsgTaskNotFound     = "Tarea no encontrada"
	MsgMethodNotAllowed = "Método no permitido"
	MsgInvalidBody      = "Cuerpo de la petición inválido"
	MsgRouteNotFound    = "Ruta no encontrada"
	MsgInternalError    = "Error interno del servidor"
)

// APIError is the body of every error response.
type APIError struct {
	Error string `json:"error"`
}
