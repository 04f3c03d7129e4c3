package schema

import "strings"

// FieldType es el tipo semántico de un campo.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeTimestamp FieldType = "timestamp"
	TypeRelation  FieldType = "relation"
	TypeEnum      FieldType = "enum"
)

// Valid reporta si t es un tipo conocido.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeBoolean, TypeTimestamp, TypeRelation, TypeEnum:
		return true
	}
	return false
}

// TextLike reporta si el tipo participa de búsqueda por substring.
func (t FieldType) TextLike() bool { return t == TypeText }

// Cardinality de una referencia a otra entidad.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Relation describe un campo relation-reference.
type Relation struct {
	Entity      string      `json:"entity" yaml:"entity"`
	Cardinality Cardinality `json:"cardinality" yaml:"cardinality"`
}

// Constraints son restricciones de validación opcionales del campo.
type Constraints struct {
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length"`
	Min       *float64 `json:"min,omitempty" yaml:"min"`
	Max       *float64 `json:"max,omitempty" yaml:"max"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern"`
	Options   []string `json:"options,omitempty" yaml:"options"`
}

// Field describe un campo de la entidad.
type Field struct {
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Type        FieldType   `json:"type"`
	Nullable    bool        `json:"nullable"`
	PrimaryKey  bool        `json:"primary_key,omitempty"`
	Searchable  bool        `json:"searchable"`
	Displayed   bool        `json:"displayed"`
	Relation    *Relation   `json:"relation,omitempty"`
	Constraints Constraints `json:"constraints"`
}

// IsMany reporta si es una referencia de cardinalidad many.
func (f Field) IsMany() bool {
	return f.Type == TypeRelation && f.Relation != nil && f.Relation.Cardinality == Many
}

func (f Field) clone() Field {
	out := f
	if f.Relation != nil {
		r := *f.Relation
		out.Relation = &r
	}
	out.Constraints = f.Constraints.clone()
	return out
}

func (c Constraints) clone() Constraints {
	out := c
	if c.MinLength != nil {
		v := *c.MinLength
		out.MinLength = &v
	}
	if c.MaxLength != nil {
		v := *c.MaxLength
		out.MaxLength = &v
	}
	if c.Min != nil {
		v := *c.Min
		out.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		out.Max = &v
	}
	out.Options = cloneStrings(c.Options)
	return out
}

// TitleFromName deriva un título legible: "published_at" -> "Published At".
func TitleFromName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
