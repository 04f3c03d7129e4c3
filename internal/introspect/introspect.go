// Package introspect convierte declaraciones externas de modelos en
// descriptores con defaults inferidos (búsqueda, listado, orden, ícono y
// expansión de relaciones).
//
// Discover es una función pura: no toca el store ni loguea. Las entidades mal
// formadas se reportan como Warning y no abortan el resto del discovery.
package introspect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dropDatabas3/adminkit/internal/schema"
)

const (
	// DefaultMaxDepth es la profundidad máxima de expansión de relaciones.
	DefaultMaxDepth = 5

	// DefaultMaxListDisplay limita cuántos campos entran al listado por defecto.
	DefaultMaxListDisplay = 5
)

var (
	ErrNoPrimaryKey       = errors.New("introspect: declaration has no primary identifier field")
	ErrDuplicateEntity    = errors.New("introspect: duplicate entity declaration")
	ErrMalformedField     = errors.New("introspect: malformed field declaration")
	ErrBadDiscriminator   = errors.New("introspect: discriminator is not a base field")
	ErrVariantFieldShadow = errors.New("introspect: variant field shadows a base field")
)

// Options controla el discovery.
type Options struct {
	// Include es la allow-list de entidades (vacía = todas).
	Include []string
	// Exclude es la deny-list. Gana sobre Include.
	Exclude []string
	// MaxDepth limita la expansión de relaciones (0 = DefaultMaxDepth).
	MaxDepth int
	// MaxListDisplay limita list_display por defecto (0 = DefaultMaxListDisplay).
	MaxListDisplay int
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

func (o Options) maxListDisplay() int {
	if o.MaxListDisplay <= 0 {
		return DefaultMaxListDisplay
	}
	return o.MaxListDisplay
}

// Warning reporta una entidad omitida del discovery.
type Warning struct {
	Entity string
	Err    error
}

func (w Warning) String() string { return fmt.Sprintf("%s: %v", w.Entity, w.Err) }

// Discover construye un descriptor por declaración aceptada.
func Discover(decls []schema.Declaration, opts Options) (map[string]*schema.Descriptor, []Warning) {
	include := toSet(opts.Include)
	exclude := toSet(opts.Exclude)

	byName := make(map[string]*schema.Declaration, len(decls))
	for i := range decls {
		if _, dup := byName[decls[i].Name]; !dup {
			byName[decls[i].Name] = &decls[i]
		}
	}

	out := make(map[string]*schema.Descriptor, len(decls))
	var warnings []Warning
	seen := make(map[string]struct{}, len(decls))

	for i := range decls {
		decl := &decls[i]
		if _, denied := exclude[decl.Name]; denied {
			continue
		}
		if len(include) > 0 {
			if _, ok := include[decl.Name]; !ok {
				continue
			}
		}
		if _, dup := seen[decl.Name]; dup {
			warnings = append(warnings, Warning{Entity: decl.Name, Err: ErrDuplicateEntity})
			continue
		}
		seen[decl.Name] = struct{}{}

		d, err := describe(decl, byName, opts)
		if err != nil {
			warnings = append(warnings, Warning{Entity: decl.Name, Err: err})
			continue
		}
		out[d.Name] = d
	}
	return out, warnings
}

func describe(decl *schema.Declaration, byName map[string]*schema.Declaration, opts Options) (*schema.Descriptor, error) {
	if decl.Name == "" {
		return nil, fmt.Errorf("%w: empty entity name", ErrMalformedField)
	}
	fields, err := convertFields(decl.Fields)
	if err != nil {
		return nil, err
	}

	pk := primaryKey(fields)
	if pk < 0 {
		return nil, ErrNoPrimaryKey
	}
	fields[pk].PrimaryKey = true

	d := &schema.Descriptor{
		Name:       decl.Name,
		PrimaryKey: fields[pk].Name,
		Icon:       inferIcon(decl.Name),
	}

	// searchable: campos text-like (nunca la PK)
	for i, f := range fields {
		if i != pk && f.Type.TextLike() {
			fields[i].Searchable = true
			d.Searchable = append(d.Searchable, f.Name)
		}
	}

	// list_display: PK primero, luego en orden de declaración sin relaciones many
	limit := opts.maxListDisplay()
	fields[pk].Displayed = true
	d.ListDisplay = append(d.ListDisplay, fields[pk].Name)
	for i, f := range fields {
		if len(d.ListDisplay) >= limit {
			break
		}
		if i == pk || f.IsMany() {
			continue
		}
		fields[i].Displayed = true
		d.ListDisplay = append(d.ListDisplay, f.Name)
	}

	d.Ordering = schema.Ordering{Field: fields[pk].Name, Direction: schema.Desc}
	for _, f := range fields {
		if f.Type == schema.TypeTimestamp && looksLikeCreatedAt(f.Name) {
			d.Ordering.Field = f.Name
			break
		}
	}

	maxDepth := opts.maxDepth()
	for _, f := range fields {
		if !f.Displayed || f.Type != schema.TypeRelation || f.IsMany() {
			continue
		}
		path, ok := labelPath(byName, f.Relation.Entity, 1, maxDepth)
		d.Relations = append(d.Relations, schema.RelationDisplay{Field: f.Name, Path: path, Opaque: !ok})
	}

	d.Fields = fields

	if decl.Discriminator != "" {
		poly, err := polymorphic(decl, d)
		if err != nil {
			return nil, err
		}
		d.Polymorphic = poly
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// labelPath busca, a partir de entity, el camino de campos hasta una etiqueta
// text-like. Los ciclos se cortan por profundidad: al superar maxDepth la
// relación queda opaca (sólo identificador).
func labelPath(byName map[string]*schema.Declaration, entity string, depth, maxDepth int) ([]string, bool) {
	if depth > maxDepth {
		return nil, false
	}
	decl, ok := byName[entity]
	if !ok {
		return nil, false
	}
	for _, fd := range decl.Fields {
		if fd.Type.TextLike() && !fd.PrimaryKey {
			return []string{fd.Name}, true
		}
	}
	for _, fd := range decl.Fields {
		if fd.Type != schema.TypeRelation || fd.Ref == "" || fd.Cardinality == schema.Many {
			continue
		}
		if sub, ok := labelPath(byName, fd.Ref, depth+1, maxDepth); ok {
			return append([]string{fd.Name}, sub...), true
		}
		// sólo se sigue la primera referencia one; el resto queda opaco
		break
	}
	return nil, false
}

func polymorphic(decl *schema.Declaration, d *schema.Descriptor) (*schema.Polymorphic, error) {
	if _, ok := d.Field(decl.Discriminator); !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadDiscriminator, decl.Discriminator)
	}
	values := make([]string, 0, len(decl.Variants))
	for v := range decl.Variants {
		values = append(values, v)
	}
	sort.Strings(values)

	p := &schema.Polymorphic{Discriminator: decl.Discriminator}
	for _, v := range values {
		vf, err := convertFields(decl.Variants[v])
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", v, err)
		}
		for _, f := range vf {
			if _, shadow := d.Field(f.Name); shadow {
				return nil, fmt.Errorf("%w: variant %q field %q", ErrVariantFieldShadow, v, f.Name)
			}
		}
		p.Variants = append(p.Variants, schema.Variant{Value: v, Fields: vf})
	}
	return p, nil
}

func convertFields(in []schema.FieldDecl) ([]schema.Field, error) {
	out := make([]schema.Field, 0, len(in))
	for _, fd := range in {
		if fd.Name == "" || !fd.Type.Valid() {
			return nil, fmt.Errorf("%w: %q (type %q)", ErrMalformedField, fd.Name, fd.Type)
		}
		f := schema.Field{
			Name:        fd.Name,
			Title:       fd.Title,
			Type:        fd.Type,
			Nullable:    fd.Nullable,
			PrimaryKey:  fd.PrimaryKey,
			Constraints: fd.Constraints,
		}
		if f.Title == "" {
			f.Title = schema.TitleFromName(fd.Name)
		}
		if fd.Type == schema.TypeRelation {
			if fd.Ref == "" {
				return nil, fmt.Errorf("%w: relation %q without ref", ErrMalformedField, fd.Name)
			}
			card := fd.Cardinality
			if card == "" {
				card = schema.One
			}
			if card != schema.One && card != schema.Many {
				return nil, fmt.Errorf("%w: relation %q cardinality %q", ErrMalformedField, fd.Name, card)
			}
			f.Relation = &schema.Relation{Entity: fd.Ref, Cardinality: card}
		}
		out = append(out, f)
	}
	// Clone profundo: el descriptor no comparte punteros con la declaración.
	tmp := schema.Descriptor{Fields: out}
	return tmp.Clone().Fields, nil
}

// primaryKey retorna el índice del campo identificador: el marcado como
// primary_key, o en su defecto uno llamado "id". -1 si no hay.
func primaryKey(fields []schema.Field) int {
	for i, f := range fields {
		if f.PrimaryKey {
			return i
		}
	}
	for i, f := range fields {
		if f.Name == "id" {
			return i
		}
	}
	return -1
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}
