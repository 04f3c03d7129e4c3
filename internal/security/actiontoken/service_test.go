package actiontoken

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dropDatabas3/adminkit/internal/cache"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := New(Config{Secret: secret, Clock: clk.Now}, NewCacheNonces(cache.NewMemory("", 0), clk.Now))
	require.NoError(t, err)
	return svc, clk
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	require.Error(t, err)
	r, ok := ReasonOf(err)
	require.True(t, ok, "expected InvalidError, got %v", err)
	return r
}

var article7 = Target{Entity: "Article", RecordID: "7", Action: schema.ActionUpdate}

func TestNew_RejectsShortSecret(t *testing.T) {
	_, err := New(Config{Secret: []byte("short")}, NewCacheNonces(cache.NewMemory("", 0), nil))
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestVerify_SucceedsExactlyOnce(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tok, _, err := svc.Issue(article7, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, tok, article7))
	assert.Equal(t, ReasonReplayed, reasonOf(t, svc.Verify(ctx, tok, article7)))
}

func TestVerify_MismatchedTarget(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	tok, _, err := svc.Issue(article7, 0)
	require.NoError(t, err)

	cases := map[string]Target{
		"record": {Entity: "Article", RecordID: "8", Action: schema.ActionUpdate},
		"entity": {Entity: "Comment", RecordID: "7", Action: schema.ActionUpdate},
		"action": {Entity: "Article", RecordID: "7", Action: schema.ActionDelete},
	}
	for name, other := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, ReasonMismatch, reasonOf(t, svc.Verify(ctx, tok, other)))
		})
	}

	// un intento con la terna equivocada no consume el nonce
	require.NoError(t, svc.Verify(ctx, tok, article7))
}

func TestVerify_Expired(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()
	tok, exp, err := svc.Issue(article7, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, clk.Now().Add(time.Minute), exp, 0)

	clk.Advance(time.Minute + time.Second)
	assert.Equal(t, ReasonExpired, reasonOf(t, svc.Verify(ctx, tok, article7)))
}

func TestVerify_ValidAtExactExpiry(t *testing.T) {
	svc, clk := newService(t)
	tok, _, err := svc.Issue(article7, time.Minute)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	require.NoError(t, svc.Verify(context.Background(), tok, article7))
}

func TestVerify_ExpiredWinsOverMismatch(t *testing.T) {
	svc, clk := newService(t)
	tok, _, err := svc.Issue(article7, time.Minute)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	other := Target{Entity: "Article", RecordID: "8", Action: schema.ActionUpdate}
	assert.Equal(t, ReasonExpired, reasonOf(t, svc.Verify(context.Background(), tok, other)))
}

func TestIssue_ClampsToMaxTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := New(Config{Secret: secret, MaxTTL: 5 * time.Minute, Clock: clk.Now}, NewCacheNonces(cache.NewMemory("", 0), clk.Now))
	require.NoError(t, err)

	_, exp, err := svc.Issue(article7, 24*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, clk.Now().Add(5*time.Minute), exp, 0)
}

func TestIssue_RequiresEntityAndAction(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.Issue(Target{Entity: "Article"}, 0)
	assert.ErrorIs(t, err, ErrEmptyTarget)
}

func tamperPayload(t *testing.T, tok string, mutate func(map[string]any)) string {
	t.Helper()
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(raw, &claims))
	mutate(claims)
	raw, err = json.Marshal(claims)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(raw)
	return strings.Join(parts, ".")
}

func TestVerify_Tampered(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	tok, _, err := svc.Issue(article7, 0)
	require.NoError(t, err)

	t.Run("record swapped in payload", func(t *testing.T) {
		forged := tamperPayload(t, tok, func(c map[string]any) { c["rec"] = "8" })
		target := Target{Entity: "Article", RecordID: "8", Action: schema.ActionUpdate}
		assert.Equal(t, ReasonTampered, reasonOf(t, svc.Verify(ctx, forged, target)))
	})

	t.Run("expiry extended", func(t *testing.T) {
		forged := tamperPayload(t, tok, func(c map[string]any) { c["exp"] = c["exp"].(float64) + 3600 })
		assert.Equal(t, ReasonTampered, reasonOf(t, svc.Verify(ctx, forged, article7)))
	})

	t.Run("signed with another secret", func(t *testing.T) {
		other, err := New(Config{Secret: []byte("another-secret-with-enough-bytes")}, NewCacheNonces(cache.NewMemory("", 0), nil))
		require.NoError(t, err)
		foreign, _, err := other.Issue(article7, 0)
		require.NoError(t, err)
		assert.Equal(t, ReasonTampered, reasonOf(t, svc.Verify(ctx, foreign, article7)))
	})

	t.Run("garbage", func(t *testing.T) {
		assert.Equal(t, ReasonTampered, reasonOf(t, svc.Verify(ctx, "not-a-token", article7)))
	})

	// ninguno de los intentos consumió el nonce original
	require.NoError(t, svc.Verify(ctx, tok, article7))
}

func TestVerify_ConcurrentDoubleSpend(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	tok, _, err := svc.Issue(article7, 0)
	require.NoError(t, err)

	var ok, replayed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Verify(ctx, tok, article7)
			if err == nil {
				ok.Add(1)
				return
			}
			if r, _ := ReasonOf(err); r == ReasonReplayed {
				replayed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(63), replayed.Load())
}

func TestVerifyFragment_DoesNotConsume(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	target := Target{Entity: "Pet", RecordID: "", Action: schema.ActionFragment}
	tok, _, err := svc.Issue(target, 0)
	require.NoError(t, err)

	require.NoError(t, svc.VerifyFragment(ctx, tok, target))
	require.NoError(t, svc.VerifyFragment(ctx, tok, target))

	mutating := Target{Entity: "Pet", Action: schema.ActionUpdate}
	assert.Equal(t, ReasonMismatch, reasonOf(t, svc.VerifyFragment(ctx, tok, mutating)))
}

func TestVerify_SharedRedisNonceSetAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	newReplica := func() *Service {
		rc, err := cache.NewRedis(cache.Config{Addr: mr.Addr(), Prefix: "adminkit"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rc.Close() })
		svc, err := New(Config{Secret: secret}, NewCacheNonces(rc, nil))
		require.NoError(t, err)
		return svc
	}
	a, b := newReplica(), newReplica()
	ctx := context.Background()

	tok, _, err := a.Issue(article7, time.Minute)
	require.NoError(t, err)
	require.NoError(t, b.Verify(ctx, tok, article7))
	assert.Equal(t, ReasonReplayed, reasonOf(t, a.Verify(ctx, tok, article7)))
}

func TestVerify_MissingToken(t *testing.T) {
	svc, _ := newService(t)
	assert.Equal(t, ReasonMissing, reasonOf(t, svc.Verify(context.Background(), "", article7)))
}
