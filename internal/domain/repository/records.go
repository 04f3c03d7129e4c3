package repository

import "context"

// Record es un registro genérico: nombre de campo -> valor.
type Record map[string]any

// Clone retorna una copia profunda del registro: slices y mapas anidados
// (relaciones many, objetos JSON decodificados) no se comparten con r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		out := make([]string, len(t))
		copy(out, t)
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Record:
		return t.Clone()
	}
	return v
}

// ListQuery parametriza un listado.
//
// Search se compara case-insensitive como substring contra cada campo de
// SearchFields, combinado con OR. SortField vacío = orden del store.
type ListQuery struct {
	Search       string
	SearchFields []string
	SortField    string
	SortDesc     bool
	Offset       int
	Limit        int // 0 = sin límite (export)
}

// Page es una página de resultados.
type Page struct {
	Items  []Record `json:"items"`
	Total  int      `json:"total"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

// RecordReader define lecturas sobre el store abstracto.
type RecordReader interface {
	// Get retorna ErrNotFound si el registro no existe.
	Get(ctx context.Context, entity, id string) (Record, error)
}

// RecordStore es el store abstracto consumido por el dispatcher.
type RecordStore interface {
	RecordReader

	List(ctx context.Context, entity string, q ListQuery) (Page, error)

	// Count retorna la cantidad de registros de la entidad.
	Count(ctx context.Context, entity string) (int, error)

	// WithTx ejecuta fn en una unidad de trabajo: las escrituras de registros
	// y los appends de auditoría hechos vía tx se confirman juntos o ninguno.
	WithTx(ctx context.Context, fn func(tx RecordTx) error) error
}

// RecordTx es la vista transaccional del store.
type RecordTx interface {
	RecordReader

	// Create retorna ErrConflict si ya existe un registro con ese id.
	Create(ctx context.Context, entity, id string, rec Record) error
	// Update reemplaza el registro completo. ErrNotFound si no existe.
	Update(ctx context.Context, entity, id string, rec Record) error
	// Delete elimina el registro. ErrNotFound si no existe.
	Delete(ctx context.Context, entity, id string) error

	// Audit retorna el writer de auditoría ligado a esta transacción.
	Audit() AuditWriter
}
