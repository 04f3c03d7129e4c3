// Package app arma el core admin: registry, permisos, action tokens,
// auditoría y dispatcher detrás de una fachada única.
package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dropDatabas3/adminkit/internal/audit"
	"github.com/dropDatabas3/adminkit/internal/authz"
	"github.com/dropDatabas3/adminkit/internal/dispatch"
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/introspect"
	"github.com/dropDatabas3/adminkit/internal/metrics"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"
	"github.com/dropDatabas3/adminkit/internal/registry"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/security/actiontoken"
	"github.com/dropDatabas3/adminkit/internal/validation"
)

var (
	// ErrTokenNotRequired: list/view/export no usan action token.
	ErrTokenNotRequired = errors.New("app: action does not take an action token")
	// ErrInvalidActionName: nombre de acción custom fuera de [a-z0-9_-].
	ErrInvalidActionName = errors.New("app: invalid custom action name")
)

// ReasonAuditSuperuserOnly es el motivo de Deny al consultar el audit log.
const ReasonAuditSuperuserOnly = "audit log requires superuser"

// Deps son las dependencias ya construidas del core.
type Deps struct {
	Records repository.RecordStore
	Audit   repository.AuditRepository
	Tokens  *actiontoken.Service
	Policy  authz.Policy
	List    dispatch.Config
	Clock   func() time.Time
}

// Core es la fachada que consume la capa HTTP/templates.
type Core struct {
	reg        *registry.Registry
	authz      *authz.Evaluator
	tokens     *actiontoken.Service
	records    repository.RecordStore
	audit      *audit.Logger
	dispatcher *dispatch.Dispatcher
}

// New arma el core con un registry vacío; poblarlo con DiscoverModels.
func New(deps Deps) (*Core, error) {
	if deps.Records == nil {
		return nil, repository.ErrNoDatabase
	}
	if deps.Audit == nil {
		return nil, errors.New("app: audit repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("app: action token service is required")
	}
	reg, err := registry.New(nil)
	if err != nil {
		return nil, err
	}
	var opts []audit.Option
	if deps.Clock != nil {
		opts = append(opts, audit.WithClock(deps.Clock))
	}
	al := audit.New(deps.Audit, opts...)
	ev := authz.NewEvaluator(deps.Policy)

	return &Core{
		reg:        reg,
		authz:      ev,
		tokens:     deps.Tokens,
		records:    deps.Records,
		audit:      al,
		dispatcher: dispatch.New(reg, ev, deps.Tokens, deps.Records, al, deps.List),
	}, nil
}

// DiscoverModels introspecta las declaraciones y publica el resultado
// (reemplaza el discovery anterior, conservando overrides vigentes).
// Las entidades inválidas se omiten y se reportan como warnings.
func (c *Core) DiscoverModels(ctx context.Context, decls []schema.Declaration, opts introspect.Options) ([]introspect.Warning, error) {
	log := logger.From(ctx).With(logger.Component("discovery"))

	discovered, warnings := introspect.Discover(decls, opts)
	for _, w := range warnings {
		log.Warn("entity skipped", logger.Entity(w.Entity), logger.Err(w.Err))
	}
	metrics.IntrospectionWarnings.Add(float64(len(warnings)))

	if err := c.reg.Replace(discovered); err != nil {
		return warnings, fmt.Errorf("app: publish discovered models: %w", err)
	}
	metrics.RegisteredModels.Set(float64(c.reg.Len()))
	log.Info("models discovered", logger.Count(len(discovered)))
	return warnings, nil
}

// RegisterModel aplica overrides explícitos a una entidad descubierta.
func (c *Core) RegisterModel(entity string, ov registry.Override) (*schema.Descriptor, error) {
	return c.reg.Register(entity, ov)
}

// Models retorna los descriptores publicados ordenados por nombre.
func (c *Core) Models() []*schema.Descriptor { return c.reg.All() }

// Model retorna el descriptor de entity.
func (c *Core) Model(entity string) (*schema.Descriptor, error) { return c.reg.Get(entity) }

// Authorize decide si id puede ejecutar action sobre entity.
func (c *Core) Authorize(id authz.Identity, entity string, action schema.Action) (authz.Decision, error) {
	return c.authz.Authorize(c.reg, id, entity, action)
}

// ActionToken es un token emitido para una vista de confirmación.
type ActionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueActionToken emite el token para (entity, recordID, action). Sólo se
// emite si la identidad puede ejecutar la acción: un token nunca habilita
// algo que el permiso niega.
func (c *Core) IssueActionToken(ctx context.Context, id authz.Identity, entity, recordID string, action schema.Action) (ActionToken, error) {
	if action.IsRead() && action != schema.ActionFragment {
		return ActionToken{}, ErrTokenNotRequired
	}
	if action.IsCustom() && !validation.ValidActionName(string(action)) {
		return ActionToken{}, ErrInvalidActionName
	}
	dec, err := c.Authorize(id, entity, action)
	if err != nil {
		return ActionToken{}, err
	}
	if !dec.Allowed {
		logger.From(ctx).Warn("token refused",
			logger.Entity(entity), logger.Action(string(action)), logger.Actor(id.UserID), logger.Reason(dec.Reason))
		return ActionToken{}, &authz.DeniedError{Entity: entity, Action: action, Reason: dec.Reason}
	}
	tok, exp, err := c.tokens.Issue(actiontoken.Target{Entity: entity, RecordID: recordID, Action: action}, 0)
	if err != nil {
		return ActionToken{}, err
	}
	return ActionToken{Token: tok, ExpiresAt: exp}, nil
}

// Execute es el punto de entrada único de list/view/create/update/delete/export.
func (c *Core) Execute(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	return c.dispatcher.Execute(ctx, req)
}

// Handle registra el handler de una acción custom.
func (c *Core) Handle(entity string, action schema.Action, fn dispatch.ActionFunc) error {
	if !action.IsCustom() || !validation.ValidActionName(string(action)) {
		return fmt.Errorf("%w: %q", ErrInvalidActionName, action)
	}
	if _, err := c.reg.Get(entity); err != nil {
		return err
	}
	c.dispatcher.Handle(entity, action, fn)
	return nil
}

// AuthorizeAudit decide si id puede leer el audit log (sólo superusers).
func (c *Core) AuthorizeAudit(id authz.Identity) authz.Decision {
	if c.authz.IsSuperuser(id) {
		return authz.Allow()
	}
	return authz.Deny(ReasonAuditSuperuserOnly)
}

// QueryAuditLog retorna las entradas que cumplen f, más recientes primero.
func (c *Core) QueryAuditLog(ctx context.Context, f repository.AuditFilter) iter.Seq2[repository.AuditEntry, error] {
	return c.audit.Query(ctx, f)
}

// EntityCount es un KPI del dashboard.
type EntityCount struct {
	Entity string `json:"entity"`
	Icon   string `json:"icon"`
	Count  int    `json:"count"`
}

// Stats retorna la cantidad de registros por entidad (orden del registry).
func (c *Core) Stats(ctx context.Context) ([]EntityCount, error) {
	models := c.reg.All()
	out := make([]EntityCount, 0, len(models))
	for _, d := range models {
		n, err := c.records.Count(ctx, d.Name)
		if err != nil {
			return nil, fmt.Errorf("app: count %s: %w", d.Name, err)
		}
		out = append(out, EntityCount{Entity: d.Name, Icon: d.Icon, Count: n})
	}
	return out, nil
}
