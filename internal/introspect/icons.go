package introspect

import "strings"

// DefaultIcon se usa cuando ningún patrón de nombre matchea.
const DefaultIcon = "database"

// iconRules se evalúa en orden; gana el primer patrón contenido en el nombre.
var iconRules = []struct {
	patterns []string
	icon     string
}{
	{[]string{"user", "account", "member", "customer", "person", "profile"}, "users"},
	{[]string{"order", "invoice", "payment", "cart", "purchase"}, "shopping-cart"},
	{[]string{"product", "item", "inventory", "stock"}, "package"},
	{[]string{"article", "post", "blog", "page", "document"}, "file-text"},
	{[]string{"comment", "message", "chat", "review"}, "message-square"},
	{[]string{"tag", "category", "label"}, "tag"},
	{[]string{"setting", "config", "preference"}, "settings"},
	{[]string{"log", "audit", "event", "activity"}, "activity"},
	{[]string{"role", "permission", "group"}, "shield"},
	{[]string{"file", "image", "media", "upload", "attachment"}, "image"},
}

// inferIcon elige un ícono por patrón de nombre de entidad.
func inferIcon(entity string) string {
	name := strings.ToLower(entity)
	for _, rule := range iconRules {
		for _, p := range rule.patterns {
			if strings.Contains(name, p) {
				return rule.icon
			}
		}
	}
	return DefaultIcon
}

// orderingHints son fragmentos de nombre de un timestamp "created-at-like".
var orderingHints = []string{"created", "inserted", "published", "posted", "date_added"}

func looksLikeCreatedAt(field string) bool {
	name := strings.ToLower(field)
	for _, h := range orderingHints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}
