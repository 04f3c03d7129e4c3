package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dropDatabas3/adminkit/internal/authz"
	"github.com/dropDatabas3/adminkit/internal/cache"
	"github.com/dropDatabas3/adminkit/internal/dispatch"
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/introspect"
	"github.com/dropDatabas3/adminkit/internal/registry"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/security/actiontoken"
	"github.com/dropDatabas3/adminkit/internal/store/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	editor = authz.Identity{UserID: "u1", DisplayName: "alice", Roles: []string{"editor"}}
	viewer = authz.Identity{UserID: "u2", DisplayName: "bob", Roles: []string{"viewer"}}
)

func decls() []schema.Declaration {
	return []schema.Declaration{
		{
			Name: "Article",
			Fields: []schema.FieldDecl{
				{Name: "id", Type: schema.TypeText, PrimaryKey: true},
				{Name: "title", Type: schema.TypeText},
				{Name: "author_id", Type: schema.TypeRelation, Ref: "User"},
				{Name: "created_at", Type: schema.TypeTimestamp, Nullable: true},
			},
		},
		{
			Name: "User",
			Fields: []schema.FieldDecl{
				{Name: "id", Type: schema.TypeText, PrimaryKey: true},
				{Name: "email", Type: schema.TypeText},
			},
		},
		{
			Name:   "Broken",
			Fields: []schema.FieldDecl{{Name: "label", Type: schema.TypeText}},
		},
	}
}

func newCore(t *testing.T) (*Core, *memory.Store) {
	t.Helper()
	tokens, err := actiontoken.New(actiontoken.Config{Secret: []byte("core-test-secret-0123456789abcd")},
		actiontoken.NewCacheNonces(cache.NewMemory("", 0), nil))
	require.NoError(t, err)

	st := memory.New()
	st.Seed("Article", "id", repository.Record{"id": "7", "title": "Old", "author_id": "u1", "created_at": nil})
	st.Seed("User", "id",
		repository.Record{"id": "u1", "email": "a@example.com"},
		repository.Record{"id": "u2", "email": "b@example.com"},
	)

	c, err := New(Deps{Records: st, Audit: st.AuditLog(), Tokens: tokens, Policy: authz.DefaultPolicy()})
	require.NoError(t, err)
	warnings, err := c.DiscoverModels(context.Background(), decls(), introspect.Options{})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Broken", warnings[0].Entity)
	return c, st
}

func TestNew_RequiresStoreAndTokens(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, repository.ErrNoDatabase)

	_, err = New(Deps{Records: memory.New()})
	assert.Error(t, err)
}

func TestDiscoverModels_Idempotent(t *testing.T) {
	c, _ := newCore(t)
	first, err := json.Marshal(c.Models())
	require.NoError(t, err)

	_, err = c.DiscoverModels(context.Background(), decls(), introspect.Options{})
	require.NoError(t, err)
	second, err := json.Marshal(c.Models())
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Len(t, c.Models(), 2)
}

func TestRegisterModel_SurvivesRediscovery(t *testing.T) {
	c, _ := newCore(t)
	_, err := c.RegisterModel("Article", registry.Override{Icon: "newspaper"})
	require.NoError(t, err)

	_, err = c.DiscoverModels(context.Background(), decls(), introspect.Options{})
	require.NoError(t, err)
	d, err := c.Model("Article")
	require.NoError(t, err)
	assert.Equal(t, "newspaper", d.Icon)

	_, err = c.RegisterModel("Missing", registry.Override{})
	assert.True(t, repository.IsNotFound(err))
}

func TestAuthorize(t *testing.T) {
	c, _ := newCore(t)

	dec, err := c.Authorize(viewer, "Article", schema.ActionList)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = c.Authorize(viewer, "Article", schema.ActionDelete)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	_, err = c.Authorize(viewer, "Nope", schema.ActionList)
	assert.True(t, repository.IsNotFound(err))
}

func TestIssueActionToken(t *testing.T) {
	c, _ := newCore(t)
	ctx := context.Background()

	_, err := c.IssueActionToken(ctx, editor, "Article", "", schema.ActionList)
	assert.ErrorIs(t, err, ErrTokenNotRequired)

	_, err = c.IssueActionToken(ctx, viewer, "Article", "7", schema.ActionUpdate)
	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "Article", denied.Entity)

	tok, err := c.IssueActionToken(ctx, editor, "Article", "7", schema.ActionUpdate)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.False(t, tok.ExpiresAt.IsZero())

	res, err := c.Execute(ctx, dispatch.Request{
		Entity: "Article", Action: schema.ActionUpdate, RecordID: "7",
		Identity: editor, Payload: repository.Record{"title": "New"}, Token: tok.Token,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", res.Record["title"])
}

func TestQueryAuditLogAndStats(t *testing.T) {
	c, _ := newCore(t)
	ctx := context.Background()

	tok, err := c.IssueActionToken(ctx, editor, "User", "u2", schema.ActionDelete)
	require.NoError(t, err)
	_, err = c.Execute(ctx, dispatch.Request{
		Entity: "User", Action: schema.ActionDelete, RecordID: "u2", Identity: editor, Token: tok.Token,
	})
	require.NoError(t, err)

	var got []repository.AuditEntry
	for e, err := range c.QueryAuditLog(ctx, repository.AuditFilter{Entity: "User"}) {
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "delete", got[0].Action)
	assert.Equal(t, "u2", got[0].RecordID)

	for range c.QueryAuditLog(ctx, repository.AuditFilter{Entity: "Article"}) {
		t.Fatal("unexpected article entry")
	}

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Article", stats[0].Entity)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, EntityCount{Entity: "User", Icon: "users", Count: 1}, stats[1])
}

func TestAuthorizeAudit(t *testing.T) {
	c, _ := newCore(t)
	assert.True(t, c.AuthorizeAudit(authz.Identity{UserID: "root", Superuser: true}).Allowed)
	assert.True(t, c.AuthorizeAudit(authz.Identity{UserID: "root", Roles: []string{"superuser"}}).Allowed)

	dec := c.AuthorizeAudit(editor)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonAuditSuperuserOnly, dec.Reason)
}

func TestHandle_CustomAction(t *testing.T) {
	c, _ := newCore(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Handle("Article", schema.ActionUpdate, nil), ErrInvalidActionName)
	assert.ErrorIs(t, c.Handle("Article", "Bad Name", nil), ErrInvalidActionName)
	assert.True(t, repository.IsNotFound(c.Handle("Nope", "publish", nil)))

	require.NoError(t, c.Handle("Article", "publish", func(_ context.Context, current, _ repository.Record) (repository.Record, error) {
		next := current.Clone()
		next["title"] = "[published] " + current["title"].(string)
		return next, nil
	}))

	_, err := c.IssueActionToken(ctx, editor, "Article", "7", "Bad Name")
	assert.ErrorIs(t, err, ErrInvalidActionName)

	tok, err := c.IssueActionToken(ctx, editor, "Article", "7", "publish")
	require.NoError(t, err)
	res, err := c.Execute(ctx, dispatch.Request{Entity: "Article", Action: "publish", RecordID: "7", Identity: editor, Token: tok.Token})
	require.NoError(t, err)
	assert.Equal(t, "[published] Old", res.Record["title"])
}
