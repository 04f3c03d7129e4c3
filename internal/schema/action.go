package schema

import "strings"

// Action es la acción que se ejecuta sobre una entidad.
// Cualquier valor fuera de las constantes conocidas es una acción custom
// (ej: "publish") y se considera mutante.
type Action string

const (
	ActionList   Action = "list"
	ActionView   Action = "view"
	ActionExport Action = "export"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionFragment firma la carga del fragmento de un subtipo polimórfico.
	// Es de lectura y su token no se consume.
	ActionFragment Action = "fragment"
)

// ParseAction normaliza un string a Action (lowercase, sin espacios).
func ParseAction(s string) Action {
	return Action(strings.ToLower(strings.TrimSpace(s)))
}

// IsRead reporta si la acción es de lectura.
func (a Action) IsRead() bool {
	switch a {
	case ActionList, ActionView, ActionExport, ActionFragment:
		return true
	}
	return false
}

// IsMutating reporta si la acción modifica datos (create, update, delete, custom).
func (a Action) IsMutating() bool {
	return a != "" && !a.IsRead()
}

// IsCustom reporta si la acción no es una de las conocidas.
func (a Action) IsCustom() bool {
	switch a {
	case ActionList, ActionView, ActionExport, ActionFragment,
		ActionCreate, ActionUpdate, ActionDelete:
		return false
	}
	return a != ""
}

func (a Action) String() string { return string(a) }
