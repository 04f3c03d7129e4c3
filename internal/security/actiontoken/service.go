// Package actiontoken emite y verifica tokens firmados que autorizan una
// única mutación sobre una terna (entidad, registro, acción).
//
// Formato: JWT HS256 (golang-jwt/jwt/v5). La clave HMAC se deriva del secreto
// de deployment con HKDF-SHA256, así el secreto crudo no firma directamente.
// Claims:
//
//	ent  entidad
//	rec  id de registro ("" para create)
//	act  acción
//	jti  nonce de un solo uso (uuid v4)
//	iat  emisión
//	exp  expiración absoluta
//
// Orden de verificación: firma, expiración, terna, replay. Sólo un token
// que pasó los tres primeros chequeos consume su nonce.
package actiontoken

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/dropDatabas3/adminkit/internal/metrics"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"
	"github.com/dropDatabas3/adminkit/internal/schema"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	DefaultTTL    = 10 * time.Minute
	DefaultMaxTTL = time.Hour

	hkdfInfo = "adminkit/action-token/v1"
	typ      = "admin-action+jwt"
)

// Target es la terna que un token autoriza.
type Target struct {
	Entity   string
	RecordID string
	Action   schema.Action
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s:%s", t.Entity, t.RecordID, t.Action)
}

// Claims es el payload firmado.
type Claims struct {
	Entity   string `json:"ent"`
	RecordID string `json:"rec"`
	Action   string `json:"act"`
	jwtv5.RegisteredClaims
}

func (c *Claims) target() Target {
	return Target{Entity: c.Entity, RecordID: c.RecordID, Action: schema.Action(c.Action)}
}

// Config configura el Service.
type Config struct {
	Secret     []byte
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	Issuer     string
	Clock      func() time.Time
}

// Service emite y verifica action tokens.
type Service struct {
	key        []byte
	defaultTTL time.Duration
	maxTTL     time.Duration
	issuer     string
	now        func() time.Time
	nonces     NonceStore
	parser     *jwtv5.Parser
}

// New crea el servicio. El secreto debe tener al menos 16 bytes.
func New(cfg Config, nonces NonceStore) (*Service, error) {
	if len(cfg.Secret) < 16 {
		return nil, ErrWeakSecret
	}
	if nonces == nil {
		return nil, fmt.Errorf("actiontoken: nonce store is required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, cfg.Secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("actiontoken: derive key: %w", err)
	}
	s := &Service{
		key:        key,
		defaultTTL: cfg.DefaultTTL,
		maxTTL:     cfg.MaxTTL,
		issuer:     cfg.Issuer,
		now:        cfg.Clock,
		nonces:     nonces,
		// Las claims temporales se validan a mano con el clock propio.
		parser: jwtv5.NewParser(
			jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
			jwtv5.WithoutClaimsValidation(),
		),
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = DefaultTTL
	}
	if s.maxTTL <= 0 {
		s.maxTTL = DefaultMaxTTL
	}
	if s.defaultTTL > s.maxTTL {
		s.defaultTTL = s.maxTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// MaxTTL es la vida máxima de un token (y por lo tanto de un nonce en el set).
func (s *Service) MaxTTL() time.Duration { return s.maxTTL }

// Issue firma un token para la terna. ttl <= 0 usa el default; ttl mayor al
// máximo se recorta.
func (s *Service) Issue(t Target, ttl time.Duration) (string, time.Time, error) {
	if t.Entity == "" || t.Action == "" {
		return "", time.Time{}, ErrEmptyTarget
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := &Claims{
		Entity:   t.Entity,
		RecordID: t.RecordID,
		Action:   string(t.Action),
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = typ
	signed, err := tk.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("actiontoken: sign: %w", err)
	}
	metrics.TokensIssued.WithLabelValues(string(t.Action)).Inc()
	return signed, claims.ExpiresAt.Time, nil
}

// Verify valida el token contra la terna y consume su nonce. Devuelve
// *InvalidError con el motivo si se rechaza; cualquier otro error viene del
// nonce store.
func (s *Service) Verify(ctx context.Context, token string, want Target) error {
	claims, err := s.check(token, want)
	if err != nil {
		return s.outcome(ctx, want, err)
	}
	ok, err := s.nonces.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return s.outcome(ctx, want, fmt.Errorf("actiontoken: consume nonce: %w", err))
	}
	if !ok {
		return s.outcome(ctx, want, invalid(ReasonReplayed))
	}
	return s.outcome(ctx, want, nil)
}

// VerifyFragment valida firma, expiración y terna de un token de lectura
// (fragment) sin consumirlo. Tokens de acciones mutantes se rechazan.
func (s *Service) VerifyFragment(ctx context.Context, token string, want Target) error {
	if want.Action.IsMutating() {
		return s.outcome(ctx, want, invalid(ReasonMismatch))
	}
	_, err := s.check(token, want)
	return s.outcome(ctx, want, err)
}

func (s *Service) check(token string, want Target) (*Claims, error) {
	if token == "" {
		return nil, invalid(ReasonMissing)
	}
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwtv5.Token) (any, error) {
		return s.key, nil
	})
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, invalid(ReasonTampered)
	}
	if s.now().After(claims.ExpiresAt.Time) {
		return nil, invalid(ReasonExpired)
	}
	if claims.target() != want {
		return nil, invalid(ReasonMismatch)
	}
	return claims, nil
}

func (s *Service) outcome(ctx context.Context, want Target, err error) error {
	result := "valid"
	if err != nil {
		result = "error"
		if r, ok := ReasonOf(err); ok {
			result = string(r)
		}
		logger.From(ctx).Warn("action token rejected",
			logger.Component("actiontoken"),
			logger.Entity(want.Entity),
			logger.RecordID(want.RecordID),
			logger.Action(string(want.Action)),
			logger.Reason(result),
		)
	}
	metrics.TokenVerifications.WithLabelValues(result).Inc()
	return err
}
