// Package authz evalúa permisos (identity, entity, action) -> Allow | Deny.
//
// Decide es una función pura: mismas entradas, misma decisión; no hace I/O.
// Orden de evaluación (gana la primera regla que aplica):
//
//  1. superuser -> Allow
//  2. no autenticado / deshabilitado -> Deny
//  3. entidad read-only y acción mutante -> Deny("read-only entity")
//  4. override por acción en el descriptor -> Allow sii tiene alguno de los roles ("*" = cualquier autenticado)
//  5. sin override: lectura -> Allow; mutación -> Allow sólo con rol editor o permiso explícito
package authz

import (
	"fmt"
	"strings"

	"github.com/dropDatabas3/adminkit/internal/metrics"
	"github.com/dropDatabas3/adminkit/internal/schema"
)

// Motivos de Deny.
const (
	ReasonNotAuthenticated = "not authenticated"
	ReasonDisabled         = "inactive identity"
	ReasonReadOnly         = "read-only entity"
	ReasonRoleNotPermitted = "role not permitted"
	ReasonNoRoleGrants     = "no role grants this action"
)

// WildcardRole en un override significa "cualquier identidad autenticada".
const WildcardRole = "*"

// Decision es el resultado de una evaluación.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow construye una decisión afirmativa.
func Allow() Decision { return Decision{Allowed: true} }

// Deny construye una decisión negativa con motivo.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Err retorna *DeniedError si la decisión es negativa, nil si no.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

// DeniedError es el error tipado de un permiso rechazado.
type DeniedError struct {
	Entity string
	Action schema.Action
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Entity == "" {
		return "authz: denied: " + e.Reason
	}
	return fmt.Sprintf("authz: %s %s denied: %s", e.Action, e.Entity, e.Reason)
}

// Role es un rol con sus permisos. Un permiso tiene la forma
// "<entity>:<action>" y admite comodines: "*:update", "Article:*", "*".
type Role struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

// Grants reporta si el rol otorga la acción sobre la entidad.
func (r Role) Grants(entity string, a schema.Action) bool {
	for _, p := range r.Permissions {
		if permissionMatches(p, entity, a) {
			return true
		}
	}
	return false
}

func permissionMatches(perm, entity string, a schema.Action) bool {
	perm = normalize(perm)
	if perm == "*" {
		return true
	}
	ent, act, ok := strings.Cut(perm, ":")
	if !ok {
		return false
	}
	return (ent == "*" || ent == normalize(entity)) && (act == "*" || act == normalize(string(a)))
}

// Policy es el modelo de roles/permisos.
type Policy struct {
	// SuperuserRole es el rol que bypassa todo (además del flag Identity.Superuser).
	SuperuserRole string
	// EditorRoles otorgan create/update/delete/custom sobre entidades sin override.
	EditorRoles []string
	// Roles son los roles con permisos explícitos.
	Roles []Role
}

// DefaultPolicy: superuser + editor.
func DefaultPolicy() Policy {
	return Policy{SuperuserRole: "superuser", EditorRoles: []string{"editor"}}
}

// Evaluator aplica una Policy. Es inmutable y seguro para uso concurrente.
type Evaluator struct {
	policy Policy
	roles  map[string]Role
}

// NewEvaluator construye un evaluador.
func NewEvaluator(p Policy) *Evaluator {
	if p.SuperuserRole == "" {
		p.SuperuserRole = "superuser"
	}
	roles := make(map[string]Role, len(p.Roles))
	for _, r := range p.Roles {
		roles[normalize(r.Name)] = r
	}
	return &Evaluator{policy: p, roles: roles}
}

// Decide evalúa la acción sobre el descriptor dado.
func (e *Evaluator) Decide(id Identity, d *schema.Descriptor, a schema.Action) Decision {
	if e.IsSuperuser(id) {
		return Allow()
	}
	if !id.Authenticated() {
		return Deny(ReasonNotAuthenticated)
	}
	if id.Disabled {
		return Deny(ReasonDisabled)
	}
	if d.ReadOnly && a.IsMutating() {
		return Deny(ReasonReadOnly)
	}
	if allowed, ok := d.AllowedRoles(a); ok {
		for _, r := range allowed {
			if r == WildcardRole {
				return Allow()
			}
		}
		if id.HasAnyRole(allowed) {
			return Allow()
		}
		return Deny(ReasonRoleNotPermitted)
	}
	if a.IsRead() {
		return Allow()
	}
	if id.HasAnyRole(e.policy.EditorRoles) {
		return Allow()
	}
	for _, name := range id.Roles {
		if r, ok := e.roles[normalize(name)]; ok && r.Grants(d.Name, a) {
			return Allow()
		}
	}
	return Deny(ReasonNoRoleGrants)
}

// IsSuperuser reporta si la identidad bypassa todas las reglas.
func (e *Evaluator) IsSuperuser(id Identity) bool {
	return id.Superuser || (e.policy.SuperuserRole != "" && id.HasRole(e.policy.SuperuserRole))
}

// Source resuelve descriptores por nombre (implementado por *registry.Registry).
type Source interface {
	Get(entity string) (*schema.Descriptor, error)
}

// Authorize resuelve la entidad en src y evalúa. El error sólo indica que la
// entidad no existe; un rechazo viene en la Decision.
func (e *Evaluator) Authorize(src Source, id Identity, entity string, a schema.Action) (Decision, error) {
	d, err := src.Get(entity)
	if err != nil {
		return Decision{}, err
	}
	return e.Evaluate(id, d, a), nil
}

// Evaluate es Decide más el registro de la decisión en métricas.
func (e *Evaluator) Evaluate(id Identity, d *schema.Descriptor, a schema.Action) Decision {
	dec := e.Decide(id, d, a)
	result := "allow"
	if !dec.Allowed {
		result = "deny"
	}
	metrics.AuthzDecisions.WithLabelValues(string(a), result).Inc()
	return dec
}
