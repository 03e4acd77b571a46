package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	sgerrors "git.home.luguber.info/inful/sitegen/internal/errors"
)

func TestSchemaRequiredFields(t *testing.T) {
	schema := Schema{Required: []string{"title", "author"}}

	require.NoError(t, schema.Validate(map[string]any{"title": "T", "author": "A"}))
	require.Error(t, schema.Validate(map[string]any{"title": "T"}))
}

func TestSchemaKinds(t *testing.T) {
	schema := Schema{Kinds: map[string]string{"weight": "int", "tags": "list"}}

	require.NoError(t, schema.Validate(map[string]any{"weight": 3, "tags": []any{"a"}}))
	require.Error(t, schema.Validate(map[string]any{"weight": "heavy"}))
	require.NoError(t, schema.Validate(map[string]any{}), "kind-constrained fields are optional")
}

func TestSchemaMatchesPrefix(t *testing.T) {
	schema := Schema{PathPrefix: "content/docs"}

	require.True(t, schema.Matches("content/docs/guide.md"))
	require.False(t, schema.Matches("content/blog/post.md"))
}

func TestDiscoverStrictSchemaAborts(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, "docs/incomplete.md", "---\ntitle: No Author\n---\nx\n")

	_, err := Discover(context.Background(), root, Options{
		Strict:  true,
		Schemas: []Schema{{Required: []string{"author"}}},
	})
	require.Error(t, err)

	var be *sgerrors.BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, sgerrors.CategoryValidation, be.Category)
}

func TestDiscoverLenientSchemaRecordsDiagnostic(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, "docs/incomplete.md", "---\ntitle: No Author\n---\nx\n")

	res := discover(t, root, Options{
		Strict:  false,
		Schemas: []Schema{{Required: []string{"author"}}},
	})

	require.Len(t, res.Pages, 1, "lenient mode keeps the page")
	require.NotEmpty(t, res.Diagnostics)
}
