// Package audit registra cambios a nivel de campo para cada mutación y
// expone la consulta del log.
//
// El log es append-only: el Logger nunca actualiza ni borra entradas.
// Las entradas se escriben por el AuditWriter de la transacción que aplica la
// mutación, así registro y auditoría se confirman juntos o ninguno.
package audit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/metrics"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/google/uuid"
)

// WriteError indica que no se pudo persistir la entrada. Es fatal para la
// mutación que la originó.
type WriteError struct {
	Entity   string
	RecordID string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("audit: write %s/%s: %v", e.Entity, e.RecordID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsWriteError reporta si err es (o envuelve) un WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// Change describe una mutación a auditar. Before es nil en create y After
// es nil en delete.
type Change struct {
	Entity   string
	RecordID string
	Action   schema.Action
	Actor    repository.Actor
	Before   repository.Record
	After    repository.Record
}

// Logger arma y persiste entradas de auditoría.
type Logger struct {
	repo  repository.AuditRepository
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// Option configura el Logger.
type Option func(*Logger)

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New crea un Logger sobre el repositorio de auditoría.
func New(repo repository.AuditRepository, opts ...Option) *Logger {
	l := &Logger{repo: repo, now: time.Now, newID: uuid.NewV7}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogChange calcula el diff y agrega la entrada vía w (el writer de la
// transacción en curso). Con w nil escribe directo en el repositorio.
//
// El timestamp se toma acá, dentro de la unidad de trabajo y después de la
// escritura del registro, no al entrar el request.
func (l *Logger) LogChange(ctx context.Context, w repository.AuditWriter, c Change) (repository.AuditEntry, error) {
	if w == nil {
		w = l.repo
	}
	id, err := l.newID()
	if err != nil {
		return repository.AuditEntry{}, &WriteError{Entity: c.Entity, RecordID: c.RecordID, Err: err}
	}
	entry := repository.AuditEntry{
		ID:        id.String(),
		Entity:    c.Entity,
		RecordID:  c.RecordID,
		Action:    string(c.Action),
		Actor:     c.Actor,
		Timestamp: l.now().UTC().Truncate(time.Microsecond),
		Changes:   Diff(c.Before, c.After),
	}
	if err := w.Append(ctx, entry); err != nil {
		metrics.AuditWrites.WithLabelValues("failed").Inc()
		logger.From(ctx).Error("audit write failed",
			logger.Component("audit"),
			logger.Entity(c.Entity),
			logger.RecordID(c.RecordID),
			logger.Action(string(c.Action)),
			logger.Actor(c.Actor.ID),
			logger.Err(err),
		)
		return repository.AuditEntry{}, &WriteError{Entity: c.Entity, RecordID: c.RecordID, Err: err}
	}
	metrics.AuditWrites.WithLabelValues("ok").Inc()
	return entry, nil
}

// Query devuelve las entradas que cumplen el filtro, de la más nueva a la más vieja.
func (l *Logger) Query(ctx context.Context, f repository.AuditFilter) iter.Seq2[repository.AuditEntry, error] {
	return l.repo.Query(ctx, f)
}
