// Package registry mantiene los descriptores de entidades administrables.
//
// Es estado de proceso construido al arrancar (discovery + overrides). Las
// lecturas no toman locks: leen un snapshot inmutable vía atomic.Pointer.
// Las escrituras (re-registro administrativo) se serializan con un mutex y
// publican un snapshot nuevo; nunca se muta un descriptor ya entregado.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/schema"
)

// NotFoundError indica una entidad no registrada.
type NotFoundError struct{ Entity string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("registry: entity %q not found", e.Entity) }

// Is permite errors.Is(err, repository.ErrNotFound).
func (e *NotFoundError) Is(target error) bool { return target == repository.ErrNotFound }

// ErrNilDescriptor se retorna al publicar un descriptor nil.
var ErrNilDescriptor = errors.New("registry: nil descriptor")

// Override son los valores explícitos de register. Campos nil/vacíos
// conservan el valor introspectado.
type Override struct {
	ListDisplay []string
	Searchable  []string
	Ordering    *schema.Ordering
	Icon        string
	ReadOnly    *bool
	// Permissions reemplaza el set de roles por acción (sólo las acciones presentes).
	Permissions map[schema.Action][]string
}

type snapshot struct {
	base      map[string]*schema.Descriptor // introspectados (o publicados explícitamente)
	overrides map[string]Override
	byName    map[string]*schema.Descriptor // efectivos
	order     []*schema.Descriptor          // efectivos ordenados por nombre
}

// Registry es la única fuente de verdad de descriptores.
type Registry struct {
	mu   sync.Mutex // serializa escritores
	snap atomic.Pointer[snapshot]
}

// New construye el registry a partir de descriptores descubiertos.
func New(discovered map[string]*schema.Descriptor) (*Registry, error) {
	r := &Registry{}
	base := make(map[string]*schema.Descriptor, len(discovered))
	for k, d := range discovered {
		base[k] = d.Clone()
	}
	s, err := build(base, nil)
	if err != nil {
		return nil, err
	}
	r.snap.Store(s)
	return r, nil
}

// Register aplica overrides explícitos sobre el descriptor introspectado de
// entity y publica el resultado. Re-registrar reemplaza el override anterior.
func (r *Registry) Register(entity string, ov Override) (*schema.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.base[entity]; !ok {
		return nil, &NotFoundError{Entity: entity}
	}
	overrides := copyOverrides(cur.overrides)
	overrides[entity] = ov

	next, err := build(cur.base, overrides)
	if err != nil {
		return nil, err
	}
	r.snap.Store(next)
	return next.byName[entity], nil
}

// Publish agrega o reemplaza un descriptor base completo (ej: declarado a mano
// sin pasar por el introspector). Se le aplica el override existente, si hay.
func (r *Registry) Publish(d *schema.Descriptor) error {
	if d == nil {
		return ErrNilDescriptor
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	base := make(map[string]*schema.Descriptor, len(cur.base)+1)
	for k, v := range cur.base {
		base[k] = v
	}
	base[d.Name] = d.Clone()

	next, err := build(base, cur.overrides)
	if err != nil {
		return err
	}
	r.snap.Store(next)
	return nil
}

// Replace reemplaza todos los descriptores base (re-discovery) conservando
// los overrides de las entidades que sigan existiendo.
func (r *Registry) Replace(discovered map[string]*schema.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	overrides := make(map[string]Override, len(cur.overrides))
	for k, v := range cur.overrides {
		if _, ok := discovered[k]; ok {
			overrides[k] = v
		}
	}
	base := make(map[string]*schema.Descriptor, len(discovered))
	for k, d := range discovered {
		base[k] = d.Clone()
	}
	next, err := build(base, overrides)
	if err != nil {
		return err
	}
	r.snap.Store(next)
	return nil
}

// Get retorna el descriptor efectivo. El puntero es de sólo lectura.
func (r *Registry) Get(entity string) (*schema.Descriptor, error) {
	if d, ok := r.snap.Load().byName[entity]; ok {
		return d, nil
	}
	return nil, &NotFoundError{Entity: entity}
}

// All retorna los descriptores efectivos ordenados por nombre.
func (r *Registry) All() []*schema.Descriptor {
	order := r.snap.Load().order
	out := make([]*schema.Descriptor, len(order))
	copy(out, order)
	return out
}

// Len retorna la cantidad de entidades registradas.
func (r *Registry) Len() int { return len(r.snap.Load().order) }

func build(base map[string]*schema.Descriptor, overrides map[string]Override) (*snapshot, error) {
	s := &snapshot{
		base:      make(map[string]*schema.Descriptor, len(base)),
		overrides: overrides,
		byName:    make(map[string]*schema.Descriptor, len(base)),
	}
	if s.overrides == nil {
		s.overrides = map[string]Override{}
	}
	for name, d := range base {
		if d == nil {
			return nil, ErrNilDescriptor
		}
		if d.Name != name {
			return nil, fmt.Errorf("%w: key %q holds descriptor %q", schema.ErrInvalidDescriptor, name, d.Name)
		}
		s.base[name] = d
		var eff *schema.Descriptor
		if ov, ok := s.overrides[name]; ok {
			eff = merge(d, ov)
		} else {
			eff = d.Clone()
		}
		if err := eff.Validate(); err != nil {
			return nil, err
		}
		s.byName[name] = eff
	}
	for _, name := range schema.SortedNames(s.byName) {
		s.order = append(s.order, s.byName[name])
	}
	return s, nil
}

// merge aplica ov campo por campo sobre una copia de base.
func merge(base *schema.Descriptor, ov Override) *schema.Descriptor {
	d := base.Clone()
	if ov.ListDisplay != nil {
		d.ListDisplay = append([]string(nil), ov.ListDisplay...)
		d.Relations = relationsFor(d, base)
	}
	if ov.Searchable != nil {
		d.Searchable = append([]string(nil), ov.Searchable...)
	}
	if ov.Ordering != nil {
		d.Ordering = *ov.Ordering
	}
	if ov.Icon != "" {
		d.Icon = ov.Icon
	}
	if ov.ReadOnly != nil {
		d.ReadOnly = *ov.ReadOnly
	}
	if len(ov.Permissions) > 0 {
		if d.Permissions == nil {
			d.Permissions = make(map[schema.Action][]string, len(ov.Permissions))
		}
		for a, roles := range ov.Permissions {
			d.Permissions[a] = append([]string{}, roles...)
		}
	}

	displayed := toSet(d.ListDisplay)
	searchable := toSet(d.Searchable)
	for i := range d.Fields {
		_, d.Fields[i].Displayed = displayed[d.Fields[i].Name]
		_, d.Fields[i].Searchable = searchable[d.Fields[i].Name]
	}
	return d
}

// relationsFor conserva la expansión introspectada de las relaciones que
// siguen en list_display; las agregadas por override quedan opacas.
func relationsFor(d, base *schema.Descriptor) []schema.RelationDisplay {
	known := make(map[string]schema.RelationDisplay, len(base.Relations))
	for _, rd := range base.Relations {
		known[rd.Field] = rd
	}
	var out []schema.RelationDisplay
	for _, name := range d.ListDisplay {
		f, ok := d.Field(name)
		if !ok || f.Type != schema.TypeRelation || f.IsMany() {
			continue
		}
		if rd, ok := known[name]; ok {
			rd.Path = append([]string(nil), rd.Path...)
			out = append(out, rd)
			continue
		}
		out = append(out, schema.RelationDisplay{Field: name, Opaque: true})
	}
	return out
}

func copyOverrides(in map[string]Override) map[string]Override {
	out := make(map[string]Override, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}
