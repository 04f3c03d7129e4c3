package errors

import (
	"encoding/json"
	"net/http"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Field      string `json:"field,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RetryToken string `json:"retry_token,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// FromError convierte un error genérico en AppError. Si no lo es, devuelve un
// error interno conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe la respuesta HTTP del error.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:       appErr.Code,
		Message:    appErr.Message,
		Detail:     appErr.Detail,
		Field:      appErr.Field,
		Reason:     appErr.Reason,
		RetryToken: appErr.RetryToken,
		RequestID:  w.Header().Get("X-Request-ID"),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
