package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/adminkit/internal/schema"
)

var allActions = []schema.Action{
	schema.ActionList, schema.ActionView, schema.ActionExport,
	schema.ActionCreate, schema.ActionUpdate, schema.ActionDelete,
	schema.Action("publish"),
}

func descriptor(readOnly bool, perms map[schema.Action][]string) *schema.Descriptor {
	return &schema.Descriptor{Name: "Article", PrimaryKey: "id", ReadOnly: readOnly, Permissions: perms}
}

func TestDecide_SuperuserAlwaysAllowed(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	ids := []Identity{
		{UserID: "u1", Superuser: true},
		{UserID: "u2", Roles: []string{"SuperUser"}},
		{Superuser: true, Disabled: true},
	}
	descs := []*schema.Descriptor{
		descriptor(false, nil),
		descriptor(true, nil),
		descriptor(true, map[schema.Action][]string{schema.ActionUpdate: {"nobody"}, schema.ActionList: {"nobody"}}),
	}
	for _, id := range ids {
		for _, d := range descs {
			for _, a := range allActions {
				assert.Truef(t, e.Decide(id, d, a).Allowed, "%+v %s", id, a)
			}
		}
	}
}

func TestDecide_ReadOnlyDeniesMutationsRegardlessOfOverrides(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	d := descriptor(true, map[schema.Action][]string{
		schema.ActionUpdate: {"editor", "*"},
		schema.ActionDelete: {"*"},
	})
	for _, id := range []Identity{{UserID: "u"}, {UserID: "u", Roles: []string{"editor"}}} {
		for _, a := range []schema.Action{schema.ActionCreate, schema.ActionUpdate, schema.ActionDelete, "publish"} {
			dec := e.Decide(id, d, a)
			assert.False(t, dec.Allowed)
			assert.Equal(t, ReasonReadOnly, dec.Reason)
		}
		assert.True(t, e.Decide(id, d, schema.ActionList).Allowed)
	}
}

func TestDecide_OverrideRoles(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	d := descriptor(false, map[schema.Action][]string{
		schema.ActionDelete: {"moderator"},
		schema.ActionList:   {"auditor"},
		schema.ActionView:   {"*"},
	})

	dec := e.Decide(Identity{UserID: "u", Roles: []string{"editor"}}, d, schema.ActionDelete)
	assert.Equal(t, Deny(ReasonRoleNotPermitted), dec, "override replaces the editor default")

	assert.True(t, e.Decide(Identity{UserID: "u", Roles: []string{" Moderator "}}, d, schema.ActionDelete).Allowed)

	// un override también restringe lecturas
	assert.Equal(t, Deny(ReasonRoleNotPermitted), e.Decide(Identity{UserID: "u"}, d, schema.ActionList))
	assert.True(t, e.Decide(Identity{UserID: "u"}, d, schema.ActionView).Allowed)
}

func TestDecide_Defaults(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	d := descriptor(false, nil)

	plain := Identity{UserID: "u"}
	for _, a := range []schema.Action{schema.ActionList, schema.ActionView, schema.ActionExport} {
		assert.True(t, e.Decide(plain, d, a).Allowed)
	}
	for _, a := range []schema.Action{schema.ActionCreate, schema.ActionUpdate, schema.ActionDelete, "publish"} {
		assert.Equal(t, Deny(ReasonNoRoleGrants), e.Decide(plain, d, a))
	}

	editor := Identity{UserID: "u", Roles: []string{"editor"}}
	for _, a := range allActions {
		assert.True(t, e.Decide(editor, d, a).Allowed)
	}
}

func TestDecide_UnauthenticatedAndDisabled(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	d := descriptor(false, map[schema.Action][]string{schema.ActionView: {"*"}})

	assert.Equal(t, Deny(ReasonNotAuthenticated), e.Decide(Identity{}, d, schema.ActionList))
	assert.Equal(t, Deny(ReasonNotAuthenticated), e.Decide(Identity{Roles: []string{"editor"}}, d, schema.ActionView))
	assert.Equal(t, Deny(ReasonDisabled), e.Decide(Identity{UserID: "u", Disabled: true, Roles: []string{"editor"}}, d, schema.ActionList))
}

func TestDecide_RolePermissions(t *testing.T) {
	e := NewEvaluator(Policy{
		EditorRoles: []string{"editor"},
		Roles: []Role{
			{Name: "writer", Permissions: []string{"article:create", "Article:update"}},
			{Name: "janitor", Permissions: []string{"*:delete"}},
			{Name: "owner", Permissions: []string{"Article:*"}},
		},
	})
	d := descriptor(false, nil)

	writer := Identity{UserID: "w", Roles: []string{"writer"}}
	assert.True(t, e.Decide(writer, d, schema.ActionCreate).Allowed)
	assert.True(t, e.Decide(writer, d, schema.ActionUpdate).Allowed)
	assert.False(t, e.Decide(writer, d, schema.ActionDelete).Allowed)

	assert.True(t, e.Decide(Identity{UserID: "j", Roles: []string{"janitor"}}, d, schema.ActionDelete).Allowed)
	assert.True(t, e.Decide(Identity{UserID: "o", Roles: []string{"owner"}}, d, "publish").Allowed)
}

type fakeSource map[string]*schema.Descriptor

func (f fakeSource) Get(entity string) (*schema.Descriptor, error) {
	if d, ok := f[entity]; ok {
		return d, nil
	}
	return nil, assert.AnError
}

func TestAuthorize_ResolvesEntity(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	src := fakeSource{"Article": descriptor(false, nil)}

	dec, err := e.Authorize(src, Identity{UserID: "u"}, "Article", schema.ActionList)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	_, err = e.Authorize(src, Identity{UserID: "u"}, "Nope", schema.ActionList)
	require.Error(t, err)
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Allow().Err())
	err := Deny(ReasonReadOnly).Err()
	var de *DeniedError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ReasonReadOnly, de.Reason)
}
