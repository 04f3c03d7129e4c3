// Package dispatch es el punto de entrada único de las operaciones CRUD
// sobre entidades administradas.
//
// Secuencia por request:
//
//	registry -> authz -> (mutación) token -> validación -> store -> (mutación) audit
//
// Para mutaciones, la escritura del registro y la entrada de auditoría se
// hacen en la misma transacción del store.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dropDatabas3/adminkit/internal/audit"
	"github.com/dropDatabas3/adminkit/internal/authz"
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/metrics"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/security/actiontoken"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Registry resuelve descriptores (implementado por *registry.Registry).
type Registry interface {
	Get(entity string) (*schema.Descriptor, error)
}

// Tokens es el servicio de action tokens.
type Tokens interface {
	Issue(t actiontoken.Target, ttl time.Duration) (string, time.Time, error)
	Verify(ctx context.Context, token string, want actiontoken.Target) error
	VerifyFragment(ctx context.Context, token string, want actiontoken.Target) error
}

// ActionFunc implementa una acción custom: recibe el registro actual y el
// payload validado y devuelve el registro resultante.
type ActionFunc func(ctx context.Context, current, payload repository.Record) (repository.Record, error)

// Request es una invocación de Execute.
type Request struct {
	Entity   string
	Action   schema.Action
	RecordID string
	Identity authz.Identity
	Payload  repository.Record
	Token    string

	// list / export
	Search    string
	SortField string
	SortDesc  *bool
	Page      int // 1-based
	PageSize  int

	// fragment: valor del discriminador cuyo set de campos se pide
	Variant string
}

// Result es el resultado de Execute. Sólo uno de Record, Page o Fields viene
// poblado según la acción.
type Result struct {
	Record repository.Record
	Page   *repository.Page
	Fields []schema.Field
	Audit  *repository.AuditEntry
}

// Config configura el Dispatcher.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Dispatcher ejecuta requests. Es seguro para uso concurrente.
type Dispatcher struct {
	reg    Registry
	authz  *authz.Evaluator
	tokens Tokens
	store  repository.RecordStore
	audit  *audit.Logger
	cfg    Config
	newID  func() string

	mu       sync.RWMutex
	handlers map[handlerKey]ActionFunc
}

type handlerKey struct {
	entity string
	action schema.Action
}

// New crea un Dispatcher.
func New(reg Registry, ev *authz.Evaluator, tokens Tokens, store repository.RecordStore, al *audit.Logger, cfg Config) *Dispatcher {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = MaxPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &Dispatcher{
		reg:      reg,
		authz:    ev,
		tokens:   tokens,
		store:    store,
		audit:    al,
		cfg:      cfg,
		handlers: make(map[handlerKey]ActionFunc),
		newID:    uuid.NewString,
	}
}

// Handle registra el handler de una acción custom. Puede llamarse con el
// servidor atendiendo requests.
func (d *Dispatcher) Handle(entity string, action schema.Action, fn ActionFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[handlerKey{entity, action}] = fn
}

func (d *Dispatcher) handler(entity string, action schema.Action) (ActionFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.handlers[handlerKey{entity, action}]
	return fn, ok
}

// Execute corre la request completa.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	log := logger.FromWithFields(ctx,
		logger.Component("dispatch"),
		logger.Entity(req.Entity),
		logger.Action(string(req.Action)),
		logger.Actor(req.Identity.UserID),
	)
	defer func() {
		metrics.DispatchLatency.WithLabelValues(string(req.Action), outcome(err)).Observe(time.Since(start).Seconds())
	}()

	desc, err := d.reg.Get(req.Entity)
	if err != nil {
		return Result{}, err
	}

	dec := d.authz.Evaluate(req.Identity, desc, req.Action)
	if !dec.Allowed {
		log.Warn("action denied", logger.RecordID(req.RecordID), logger.Reason(dec.Reason))
		return Result{}, &authz.DeniedError{Entity: desc.Name, Action: req.Action, Reason: dec.Reason}
	}

	if !req.Action.IsMutating() {
		return d.read(ctx, desc, req)
	}

	target := actiontoken.Target{Entity: desc.Name, RecordID: req.RecordID, Action: req.Action}
	if err := d.tokens.Verify(ctx, req.Token, target); err != nil {
		return Result{}, err
	}

	// Desde acá el token está consumido: cualquier falla devuelve uno nuevo.
	res, err = d.mutate(ctx, desc, req)
	if err != nil {
		return Result{}, d.failed(log, target, err)
	}
	log.Info("mutation applied", logger.RecordID(res.Audit.RecordID), logger.Count(len(res.Audit.Changes)))
	return res, nil
}

func (d *Dispatcher) failed(log *zap.Logger, target actiontoken.Target, err error) error {
	retry, _, ierr := d.tokens.Issue(target, 0)
	if ierr != nil {
		log.Error("reissue action token failed", logger.Err(ierr))
	}
	log.Warn("mutation failed", logger.RecordID(target.RecordID), logger.Err(err))
	return &MutationError{Err: err, RetryToken: retry}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var denied *authz.DeniedError
	var verr *ValidationError
	switch {
	case errors.As(err, &denied):
		return "denied"
	case actiontoken.IsInvalid(err):
		return "invalid_token"
	case errors.As(err, &verr):
		return "validation"
	case repository.IsNotFound(err):
		return "not_found"
	case audit.IsWriteError(err):
		return "audit_failure"
	}
	return "error"
}
