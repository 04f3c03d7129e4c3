package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidDescriptor se retorna cuando un descriptor viola sus invariantes.
var ErrInvalidDescriptor = errors.New("schema: invalid descriptor")

// Direction de ordenamiento.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Ordering es el orden por defecto de los listados.
type Ordering struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// RelationDisplay indica cómo mostrar un campo relation-reference del listado.
// Path son los campos recorridos en las entidades referenciadas hasta llegar
// a una etiqueta. Opaque=true: se muestra sólo el identificador.
type RelationDisplay struct {
	Field  string   `json:"field"`
	Path   []string `json:"path,omitempty"`
	Opaque bool     `json:"opaque"`
}

// Variant es el set alternativo de campos de un subtipo polimórfico.
type Variant struct {
	Value  string  `json:"value"`
	Fields []Field `json:"fields"`
}

// Polymorphic describe un tagged variant: el valor de Discriminator en el
// payload elige qué Variant aplica.
type Polymorphic struct {
	Discriminator string    `json:"discriminator"`
	Variants      []Variant `json:"variants"`
}

// Descriptor es la configuración de una entidad administrable.
type Descriptor struct {
	Name        string              `json:"name"`
	PrimaryKey  string              `json:"primary_key"`
	Fields      []Field             `json:"fields"`
	ListDisplay []string            `json:"list_display"`
	Searchable  []string            `json:"searchable"`
	Ordering    Ordering            `json:"ordering"`
	Icon        string              `json:"icon"`
	ReadOnly    bool                `json:"read_only"`
	Permissions map[Action][]string `json:"permissions,omitempty"`
	Polymorphic *Polymorphic        `json:"polymorphic,omitempty"`
	Relations   []RelationDisplay   `json:"relations,omitempty"`
}

// Field busca un campo base por nombre.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Variant retorna los campos del subtipo para el valor de discriminador dado.
func (d *Descriptor) Variant(value string) ([]Field, bool) {
	if d.Polymorphic == nil {
		return nil, false
	}
	for _, v := range d.Polymorphic.Variants {
		if v.Value == value {
			return v.Fields, true
		}
	}
	return nil, false
}

// AllowedRoles retorna el override de roles para la acción (ok=false si no hay).
func (d *Descriptor) AllowedRoles(a Action) ([]string, bool) {
	if d.Permissions == nil {
		return nil, false
	}
	roles, ok := d.Permissions[a]
	return roles, ok
}

// Clone retorna una copia profunda.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	out := *d
	out.Fields = cloneFields(d.Fields)
	out.ListDisplay = cloneStrings(d.ListDisplay)
	out.Searchable = cloneStrings(d.Searchable)
	if d.Permissions != nil {
		out.Permissions = make(map[Action][]string, len(d.Permissions))
		for k, v := range d.Permissions {
			out.Permissions[k] = cloneStrings(v)
		}
	}
	if d.Polymorphic != nil {
		p := Polymorphic{Discriminator: d.Polymorphic.Discriminator}
		for _, v := range d.Polymorphic.Variants {
			p.Variants = append(p.Variants, Variant{Value: v.Value, Fields: cloneFields(v.Fields)})
		}
		out.Polymorphic = &p
	}
	if d.Relations != nil {
		out.Relations = make([]RelationDisplay, len(d.Relations))
		for i, r := range d.Relations {
			r.Path = cloneStrings(r.Path)
			out.Relations[i] = r
		}
	}
	return &out
}

// Validate verifica las invariantes del descriptor: nombre presente, campos
// únicos y válidos, y que list_display/searchable/ordering referencien
// campos existentes.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty entity name", ErrInvalidDescriptor)
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if err := validateField(d.Name, f); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidDescriptor, d.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	if _, ok := seen[d.PrimaryKey]; !ok {
		return fmt.Errorf("%w: %s: primary key %q is not a field", ErrInvalidDescriptor, d.Name, d.PrimaryKey)
	}
	check := func(kind string, names []string) error {
		for _, n := range names {
			if _, ok := seen[n]; !ok {
				return fmt.Errorf("%w: %s: %s references unknown field %q", ErrInvalidDescriptor, d.Name, kind, n)
			}
		}
		return nil
	}
	if err := check("list_display", d.ListDisplay); err != nil {
		return err
	}
	if err := check("searchable", d.Searchable); err != nil {
		return err
	}
	if err := check("ordering", []string{d.Ordering.Field}); err != nil {
		return err
	}
	if d.Ordering.Direction != Asc && d.Ordering.Direction != Desc {
		return fmt.Errorf("%w: %s: ordering direction %q", ErrInvalidDescriptor, d.Name, d.Ordering.Direction)
	}
	for _, r := range d.Relations {
		if err := check("relations", []string{r.Field}); err != nil {
			return err
		}
	}
	if p := d.Polymorphic; p != nil {
		if _, ok := seen[p.Discriminator]; !ok {
			return fmt.Errorf("%w: %s: discriminator %q is not a field", ErrInvalidDescriptor, d.Name, p.Discriminator)
		}
		for _, v := range p.Variants {
			for _, f := range v.Fields {
				if err := validateField(d.Name, f); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateField(entity string, f Field) error {
	if f.Name == "" {
		return fmt.Errorf("%w: %s: field without name", ErrInvalidDescriptor, entity)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %s.%s: unknown type %q", ErrInvalidDescriptor, entity, f.Name, f.Type)
	}
	if f.Type == TypeRelation && (f.Relation == nil || f.Relation.Entity == "") {
		return fmt.Errorf("%w: %s.%s: relation without target entity", ErrInvalidDescriptor, entity, f.Name)
	}
	return nil
}

// SortedNames retorna los nombres de entidades de m ordenados.
func SortedNames(m map[string]*Descriptor) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneFields(in []Field) []Field {
	if in == nil {
		return nil
	}
	out := make([]Field, len(in))
	for i, f := range in {
		out[i] = f.clone()
	}
	return out
}
