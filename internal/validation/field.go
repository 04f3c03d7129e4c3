// Package validation valida valores de payload contra los Field del
// descriptor y los normaliza a la representación que guarda el store.
//
// Representación normalizada:
//
//	text, enum   string
//	number       float64
//	boolean      bool
//	timestamp    string RFC3339 UTC con milisegundos (ancho fijo, ordena lexicográficamente)
//	relation     id (string) o []any de ids para cardinalidad many
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dropDatabas3/adminkit/internal/schema"
)

// TimestampLayout es el formato normalizado de los timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Error indica que un valor viola el Field. Field es el nombre del campo.
type Error struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Problem)
}

func fail(field, format string, args ...any) *Error {
	return &Error{Field: field, Problem: fmt.Sprintf(format, args...)}
}

// Value valida v contra f y devuelve el valor normalizado.
func Value(f schema.Field, v any) (any, error) {
	if v == nil {
		if f.Nullable && !f.PrimaryKey {
			return nil, nil
		}
		return nil, fail(f.Name, "must not be null")
	}
	switch f.Type {
	case schema.TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, fail(f.Name, "expected text")
		}
		return s, text(f, s)
	case schema.TypeEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fail(f.Name, "expected enum value")
		}
		return s, text(f, s)
	case schema.TypeNumber:
		n, ok := Number(v)
		if !ok {
			return nil, fail(f.Name, "expected number")
		}
		return n, number(f, n)
	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fail(f.Name, "expected boolean")
		}
		return b, nil
	case schema.TypeTimestamp:
		ts, ok := Timestamp(v)
		if !ok {
			return nil, fail(f.Name, "expected RFC3339 timestamp")
		}
		return ts, nil
	case schema.TypeRelation:
		return relation(f, v)
	}
	return nil, fail(f.Name, "unsupported field type %q", f.Type)
}

func text(f schema.Field, s string) error {
	c := f.Constraints
	n := utf8.RuneCountInString(s)
	if c.MinLength != nil && n < *c.MinLength {
		return fail(f.Name, "shorter than %d characters", *c.MinLength)
	}
	if c.MaxLength != nil && n > *c.MaxLength {
		return fail(f.Name, "longer than %d characters", *c.MaxLength)
	}
	if c.Pattern != "" {
		re, err := compile(c.Pattern)
		if err != nil {
			return fail(f.Name, "invalid pattern %q", c.Pattern)
		}
		if !re.MatchString(s) {
			return fail(f.Name, "does not match %s", c.Pattern)
		}
	}
	if len(c.Options) > 0 && !slices.Contains(c.Options, s) {
		return fail(f.Name, "must be one of %v", c.Options)
	}
	return nil
}

func number(f schema.Field, n float64) error {
	c := f.Constraints
	if c.Min != nil && n < *c.Min {
		return fail(f.Name, "less than %v", *c.Min)
	}
	if c.Max != nil && n > *c.Max {
		return fail(f.Name, "greater than %v", *c.Max)
	}
	return nil
}

func relation(f schema.Field, v any) (any, error) {
	if !f.IsMany() {
		id, ok := ID(v)
		if !ok {
			return nil, fail(f.Name, "expected a reference id")
		}
		return id, nil
	}
	items, ok := v.([]any)
	if !ok {
		if ss, isStrings := v.([]string); isStrings {
			items = make([]any, len(ss))
			for i, s := range ss {
				items[i] = s
			}
		} else {
			return nil, fail(f.Name, "expected a list of reference ids")
		}
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		id, ok := ID(it)
		if !ok {
			return nil, fail(f.Name, "expected a list of reference ids")
		}
		out = append(out, id)
	}
	return out, nil
}

// Number acepta cualquier numérico Go o json.Number y lo devuelve como float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Timestamp acepta time.Time o un string RFC3339 y devuelve el formato normalizado.
func Timestamp(v any) (string, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimestampLayout), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return "", false
		}
		return parsed.UTC().Format(TimestampLayout), true
	}
	return "", false
}

// ID normaliza un identificador de registro a string. Los números enteros se
// formatean sin decimales (7.0 -> "7").
func ID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case json.Number:
		return id.String(), true
	}
	if n, ok := Number(v); ok {
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10), true
		}
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

var patterns sync.Map // pattern -> *regexp.Regexp

func compile(p string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patterns.Store(p, re)
	return re, nil
}
