package actiontoken

import (
	"context"
	"time"

	"github.com/dropDatabas3/adminkit/internal/cache"
)

// NonceStore es el set de nonces consumidos. Consume marca el nonce como
// usado hasta until y devuelve false si ya estaba marcado; el chequeo y la
// marca son un único paso atómico.
type NonceStore interface {
	Consume(ctx context.Context, nonce string, until time.Time) (bool, error)
}

// nonceGrace extiende la retención más allá del exp para tolerar skew entre réplicas.
const nonceGrace = time.Second

// CacheNonces implementa NonceStore sobre cache.Client (memory o redis).
// Las entradas expiran con el token, así que el set queda acotado a la
// ventana de tokens vivos.
type CacheNonces struct {
	c     cache.Client
	clock func() time.Time
}

// NewCacheNonces crea un NonceStore sobre el cliente de cache dado.
func NewCacheNonces(c cache.Client, clock func() time.Time) *CacheNonces {
	if clock == nil {
		clock = time.Now
	}
	return &CacheNonces{c: c, clock: clock}
}

func (n *CacheNonces) Consume(ctx context.Context, nonce string, until time.Time) (bool, error) {
	ttl := until.Sub(n.clock()) + nonceGrace
	if ttl < nonceGrace {
		ttl = nonceGrace
	}
	return n.c.SetNX(ctx, "nonce:"+nonce, "1", ttl)
}
