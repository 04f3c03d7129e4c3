package dispatch

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/validation"
)

// ValidationError es el error de payload (campo + problema).
type ValidationError = validation.Error

// ErrUnsupportedAction indica una acción custom sin handler registrado.
var ErrUnsupportedAction = fmt.Errorf("dispatch: unsupported action: %w", repository.ErrNotImplemented)

// MutationError envuelve cualquier falla posterior a la verificación del
// token. El token original ya quedó consumido, así que se adjunta uno nuevo
// para la misma terna: el cliente reintenta con RetryToken.
type MutationError struct {
	Err        error
	RetryToken string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("dispatch: mutation failed: %v", e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// RetryTokenOf devuelve el token de reintento si err es un MutationError.
func RetryTokenOf(err error) (string, bool) {
	var me *MutationError
	if errors.As(err, &me) && me.RetryToken != "" {
		return me.RetryToken, true
	}
	return "", false
}
