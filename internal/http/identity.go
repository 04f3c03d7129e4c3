package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dropDatabas3/adminkit/internal/authz"
)

// Headers que setea la capa de auth del host. El core no autentica: confía
// en el proxy/middleware que está delante.
const (
	HeaderUser      = "X-Admin-User"
	HeaderName      = "X-Admin-Name"
	HeaderRoles     = "X-Admin-Roles"
	HeaderSuperuser = "X-Admin-Superuser"
	HeaderDisabled  = "X-Admin-Disabled"

	HeaderActionToken = "X-Action-Token"
)

type identityKey struct{}

// IdentityFromHeaders arma la Identity del request. Sin X-Admin-User la
// identidad queda no autenticada y authz la rechaza.
func IdentityFromHeaders(h http.Header) authz.Identity {
	id := authz.Identity{
		UserID:      strings.TrimSpace(h.Get(HeaderUser)),
		DisplayName: strings.TrimSpace(h.Get(HeaderName)),
	}
	if id.DisplayName == "" {
		id.DisplayName = id.UserID
	}
	for _, r := range strings.Split(h.Get(HeaderRoles), ",") {
		if r = strings.TrimSpace(r); r != "" {
			id.Roles = append(id.Roles, r)
		}
	}
	id.Superuser, _ = strconv.ParseBool(strings.TrimSpace(h.Get(HeaderSuperuser)))
	id.Disabled, _ = strconv.ParseBool(strings.TrimSpace(h.Get(HeaderDisabled)))
	return id
}

// WithIdentity guarda la identidad del request en el contexto.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromHeaders(r.Header)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// IdentityFrom extrae la identidad guardada por WithIdentity.
func IdentityFrom(ctx context.Context) authz.Identity {
	id, _ := ctx.Value(identityKey{}).(authz.Identity)
	return id
}
