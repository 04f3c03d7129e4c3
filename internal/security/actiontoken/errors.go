package actiontoken

import (
	"errors"
	"fmt"
)

// Reason es el motivo por el que se rechaza un token.
type Reason string

const (
	ReasonTampered Reason = "tampered"
	ReasonExpired  Reason = "expired"
	ReasonMismatch Reason = "mismatched target"
	ReasonReplayed Reason = "replayed"

	// ReasonMissing: la mutación llegó sin token.
	ReasonMissing Reason = "missing"
)

// InvalidError indica que el token fue rechazado. Es permanente: el mismo
// token nunca va a volver a verificar.
type InvalidError struct {
	Reason Reason
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("action token invalid: %s", e.Reason)
}

func invalid(r Reason) error { return &InvalidError{Reason: r} }

// ReasonOf devuelve el motivo si err es (o envuelve) un InvalidError.
func ReasonOf(err error) (Reason, bool) {
	var ie *InvalidError
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return "", false
}

// IsInvalid reporta si err es un rechazo de token.
func IsInvalid(err error) bool {
	_, ok := ReasonOf(err)
	return ok
}

var (
	// ErrWeakSecret se devuelve si el secreto de firma es demasiado corto.
	ErrWeakSecret = errors.New("actiontoken: secret must be at least 16 bytes")
	// ErrEmptyTarget se devuelve al emitir un token sin entidad o acción.
	ErrEmptyTarget = errors.New("actiontoken: entity and action are required")
)
