package audit

import (
	"reflect"
	"sort"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
)

// Diff devuelve los campos cuyo valor cambió entre before y after, ordenados
// por nombre. Un campo presente de un solo lado cuenta como cambio, así que
// en create (before nil) entran todos los campos de after y en delete
// (after nil) todos los de before.
func Diff(before, after repository.Record) []repository.FieldChange {
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	changes := make([]repository.FieldChange, 0, len(names))
	for _, k := range names {
		oldV, hadOld := before[k]
		newV, hasNew := after[k]
		if hadOld && hasNew && Equal(oldV, newV) {
			continue
		}
		changes = append(changes, repository.FieldChange{Field: k, Old: oldV, New: newV})
	}
	return changes
}

// Equal compara dos valores de campo. Los números se comparan por valor sin
// importar el tipo (7 == 7.0), que es lo que pasa al ir y volver de JSON.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
