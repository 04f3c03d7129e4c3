package validation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func problem(t *testing.T, err error) (string, string) {
	t.Helper()
	require.Error(t, err)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	return ve.Field, ve.Problem
}

func TestValue_Types(t *testing.T) {
	cases := []struct {
		name  string
		field schema.Field
		in    any
		want  any
	}{
		{"text", schema.Field{Name: "title", Type: schema.TypeText}, "hi", "hi"},
		{"number int", schema.Field{Name: "n", Type: schema.TypeNumber}, 7, 7.0},
		{"number json", schema.Field{Name: "n", Type: schema.TypeNumber}, json.Number("2.5"), 2.5},
		{"bool", schema.Field{Name: "b", Type: schema.TypeBoolean}, true, true},
		{"timestamp string", schema.Field{Name: "ts", Type: schema.TypeTimestamp}, "2024-01-02T03:04:05-03:00", "2024-01-02T06:04:05.000Z"},
		{"timestamp time", schema.Field{Name: "ts", Type: schema.TypeTimestamp}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02T03:04:05.000Z"},
		{"relation one", schema.Field{Name: "author", Type: schema.TypeRelation, Relation: &schema.Relation{Entity: "User", Cardinality: schema.One}}, 12.0, "12"},
		{"relation many", schema.Field{Name: "tags", Type: schema.TypeRelation, Relation: &schema.Relation{Entity: "Tag", Cardinality: schema.Many}}, []any{"a", 3}, []any{"a", "3"}},
		{"nullable nil", schema.Field{Name: "x", Type: schema.TypeText, Nullable: true}, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Value(tc.field, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValue_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		field   schema.Field
		in      any
		problem string
	}{
		{"null not allowed", schema.Field{Name: "title", Type: schema.TypeText}, nil, "must not be null"},
		{"text type", schema.Field{Name: "title", Type: schema.TypeText}, 3, "expected text"},
		{"number type", schema.Field{Name: "n", Type: schema.TypeNumber}, "3", "expected number"},
		{"bad timestamp", schema.Field{Name: "ts", Type: schema.TypeTimestamp}, "yesterday", "expected RFC3339 timestamp"},
		{"min length", schema.Field{Name: "title", Type: schema.TypeText, Constraints: schema.Constraints{MinLength: ptr(3)}}, "ab", "shorter than 3 characters"},
		{"max length", schema.Field{Name: "title", Type: schema.TypeText, Constraints: schema.Constraints{MaxLength: ptr(2)}}, "abc", "longer than 2 characters"},
		{"min", schema.Field{Name: "n", Type: schema.TypeNumber, Constraints: schema.Constraints{Min: ptr(1.0)}}, 0, "less than 1"},
		{"max", schema.Field{Name: "n", Type: schema.TypeNumber, Constraints: schema.Constraints{Max: ptr(10.0)}}, 11, "greater than 10"},
		{"pattern", schema.Field{Name: "slug", Type: schema.TypeText, Constraints: schema.Constraints{Pattern: `^[a-z-]+$`}}, "No Way", "does not match ^[a-z-]+$"},
		{"options", schema.Field{Name: "status", Type: schema.TypeEnum, Constraints: schema.Constraints{Options: []string{"draft", "live"}}}, "gone", "must be one of [draft live]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Value(tc.field, tc.in)
			field, p := problem(t, err)
			assert.Equal(t, tc.field.Name, field)
			assert.Equal(t, tc.problem, p)
		})
	}
}

func article() *schema.Descriptor {
	return &schema.Descriptor{
		Name:       "Article",
		PrimaryKey: "id",
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeText, PrimaryKey: true},
			{Name: "title", Type: schema.TypeText},
			{Name: "published_at", Type: schema.TypeTimestamp, Nullable: true},
			{Name: "tags", Type: schema.TypeRelation, Relation: &schema.Relation{Entity: "Tag", Cardinality: schema.Many}},
		},
	}
}

func TestPayload_CreateRequiresFields(t *testing.T) {
	_, err := Payload(article(), repository.Record{"published_at": nil}, nil, Create)
	field, p := problem(t, err)
	assert.Equal(t, "title", field)
	assert.Equal(t, "required", p)

	out, err := Payload(article(), repository.Record{"title": "Hello"}, nil, Create)
	require.NoError(t, err)
	assert.Equal(t, repository.Record{"title": "Hello", "tags": []any{}}, out)
}

func TestPayload_PatchOnlyPresentFields(t *testing.T) {
	out, err := Payload(article(), repository.Record{"title": "New"}, repository.Record{"id": "7"}, Patch)
	require.NoError(t, err)
	assert.Equal(t, repository.Record{"title": "New"}, out)
}

func TestPayload_UnknownField(t *testing.T) {
	_, err := Payload(article(), repository.Record{"title": "x", "hacker": true}, nil, Patch)
	field, p := problem(t, err)
	assert.Equal(t, "hacker", field)
	assert.Equal(t, "unknown field", p)
}

func pet() *schema.Descriptor {
	return &schema.Descriptor{
		Name:       "Pet",
		PrimaryKey: "id",
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeText, PrimaryKey: true},
			{Name: "kind", Type: schema.TypeEnum, Constraints: schema.Constraints{Options: []string{"cat", "dog"}}},
		},
		Polymorphic: &schema.Polymorphic{
			Discriminator: "kind",
			Variants: []schema.Variant{
				{Value: "cat", Fields: []schema.Field{{Name: "lives", Type: schema.TypeNumber}}},
				{Value: "dog", Fields: []schema.Field{{Name: "breed", Type: schema.TypeText, Nullable: true}}},
			},
		},
	}
}

func TestPayload_PolymorphicVariant(t *testing.T) {
	out, err := Payload(pet(), repository.Record{"kind": "cat", "lives": 9}, nil, Create)
	require.NoError(t, err)
	assert.Equal(t, 9.0, out["lives"])

	_, err = Payload(pet(), repository.Record{"kind": "cat", "breed": "tabby"}, nil, Create)
	field, _ := problem(t, err)
	assert.Equal(t, "breed", field, "dog-only field is unknown for cats")

	_, err = Payload(pet(), repository.Record{"breed": "lab"}, repository.Record{"kind": "dog"}, Patch)
	require.NoError(t, err, "variant resolved from the stored record")

	_, err = Payload(pet(), repository.Record{"kind": "fish"}, nil, Create)
	field, p := problem(t, err)
	assert.Equal(t, "kind", field)
	assert.Equal(t, `unknown variant "fish"`, p)
}

func TestID(t *testing.T) {
	for in, want := range map[any]string{"abc": "abc", 7: "7", 7.0: "7", 2.5: "2.5"} {
		got, ok := ID(in)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := ID("")
	assert.False(t, ok)
}

func TestValidActionName(t *testing.T) {
	for _, ok := range []string{"publish", "mark_paid", "re-send", "a"} {
		assert.True(t, ValidActionName(ok), ok)
	}
	for _, bad := range []string{"", "Publish", "_hidden", "trail-", "bad space"} {
		assert.False(t, ValidActionName(bad), bad)
	}
}
