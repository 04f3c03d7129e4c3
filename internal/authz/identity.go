package authz

import "strings"

// Identity es el actor autenticado de un request. Vive lo que dura el
// request; el core nunca la persiste.
type Identity struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Superuser   bool     `json:"superuser"`
	Disabled    bool     `json:"disabled"`
}

// Authenticated reporta si la identidad corresponde a un usuario autenticado.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// HasRole reporta si la identidad tiene el rol (case-insensitive).
func (i Identity) HasRole(role string) bool {
	return hasAny(i.Roles, []string{role})
}

// HasAnyRole reporta si la identidad tiene al menos uno de los roles.
func (i Identity) HasAnyRole(roles []string) bool {
	return hasAny(i.Roles, roles)
}

// hasAny verifica si hay al menos un elemento en común entre dos slices.
func hasAny(haystack []string, needles []string) bool {
	if len(haystack) == 0 || len(needles) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(haystack))
	for _, v := range haystack {
		set[normalize(v)] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[normalize(n)]; ok {
			return true
		}
	}
	return false
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
