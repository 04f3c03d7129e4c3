package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/adminkit/internal/app"
	"github.com/dropDatabas3/adminkit/internal/audit"
	"github.com/dropDatabas3/adminkit/internal/authz"
	"github.com/dropDatabas3/adminkit/internal/dispatch"
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	apperrors "github.com/dropDatabas3/adminkit/internal/http/errors"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"
	"github.com/dropDatabas3/adminkit/internal/security/actiontoken"
)

const maxBodyBytes = 1 << 20

// toAppError traduce la taxonomía del core a AppError. Si la mutación falló
// después de consumir el token se adjunta el token de reintento.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	out := classify(err)
	if retry, ok := dispatch.RetryTokenOf(err); ok {
		out = out.WithRetryToken(retry)
	}
	return out
}

func classify(err error) *apperrors.AppError {
	var (
		denied *authz.DeniedError
		verr   *dispatch.ValidationError
	)
	switch {
	case errors.As(err, &denied):
		if denied.Reason == authz.ReasonNotAuthenticated {
			return apperrors.ErrUnauthorized.WithReason(denied.Reason).WithCause(err)
		}
		return apperrors.ErrForbidden.WithReason(denied.Reason).WithCause(err)
	case actiontoken.IsInvalid(err):
		reason, _ := actiontoken.ReasonOf(err)
		return apperrors.ErrActionTokenInvalid.WithReason(string(reason)).WithCause(err)
	case errors.As(err, &verr):
		return apperrors.ErrValidation.WithField(verr.Field).WithDetail(verr.Problem).WithCause(err)
	case audit.IsWriteError(err):
		return apperrors.ErrAuditWriteFailed.WithCause(err)
	case repository.IsNotFound(err):
		return apperrors.ErrNotFound.WithDetail(err.Error()).WithCause(err)
	case repository.IsConflict(err):
		return apperrors.ErrConflict.WithCause(err)
	case errors.Is(err, repository.ErrNotImplemented):
		return apperrors.ErrNotImplemented.WithCause(err)
	case errors.Is(err, app.ErrTokenNotRequired), errors.Is(err, app.ErrInvalidActionName), errors.Is(err, actiontoken.ErrEmptyTarget):
		return apperrors.ErrBadRequest.WithDetail(err.Error()).WithCause(err)
	case repository.IsRetryable(err):
		return apperrors.ErrServiceUnavailable.WithCause(err)
	}
	return apperrors.ErrInternalServerError.WithCause(err)
}

// writeError loguea las fallas 5xx con la causa y responde el AppError.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.From(r.Context()).Error("request failed",
			logger.String("code", appErr.Code), logger.Err(appErr.Err))
	}
	apperrors.WriteError(w, appErr)
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica el body (máx 1MB). Los números quedan como json.Number
// para que la validación los normalice sin perder precisión.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		writeError(w, r, apperrors.ErrInvalidJSON.WithDetail("Content-Type debe ser application/json"))
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperrors.ErrBodyTooLarge)
			return false
		}
		writeError(w, r, apperrors.ErrInvalidJSON)
		return false
	}
	return true
}
