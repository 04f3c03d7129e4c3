package validation

import (
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/schema"
)

// Mode indica si el payload es un alta completa o un cambio parcial.
type Mode int

const (
	// Create exige todos los campos no-nullables (salvo la PK y relaciones many).
	Create Mode = iota
	// Patch valida sólo los campos presentes.
	Patch
)

// Fields resuelve el set de campos aplicable: los base más los de la
// variante elegida por el discriminador. current es el registro existente
// (nil en create); el discriminador del payload tiene prioridad.
func Fields(d *schema.Descriptor, payload, current repository.Record) ([]schema.Field, error) {
	if d.Polymorphic == nil {
		return d.Fields, nil
	}
	disc := d.Polymorphic.Discriminator
	raw, ok := payload[disc]
	if !ok {
		raw, ok = current[disc]
	}
	if !ok || raw == nil {
		return d.Fields, nil
	}
	value, isString := raw.(string)
	if !isString {
		return nil, fail(disc, "expected variant name")
	}
	variant, found := d.Variant(value)
	if !found {
		return nil, fail(disc, "unknown variant %q", value)
	}
	fields := make([]schema.Field, 0, len(d.Fields)+len(variant))
	fields = append(fields, d.Fields...)
	fields = append(fields, variant...)
	return fields, nil
}

// Payload valida y normaliza payload contra el descriptor. Campos
// desconocidos se rechazan.
func Payload(d *schema.Descriptor, payload, current repository.Record, mode Mode) (repository.Record, error) {
	fields, err := Fields(d, payload, current)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]schema.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	for name := range payload {
		if _, ok := byName[name]; !ok {
			return nil, fail(name, "unknown field")
		}
	}

	out := make(repository.Record, len(payload))
	for _, f := range fields {
		v, present := payload[f.Name]
		if !present {
			if mode == Create && !f.Nullable && !f.PrimaryKey {
				if f.IsMany() {
					out[f.Name] = []any{}
					continue
				}
				return nil, fail(f.Name, "required")
			}
			continue
		}
		nv, err := Value(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = nv
	}
	return out, nil
}
