package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

func writeFiles(t *testing.T, dir string, names map[string]string) {
	t.Helper()
	for name, content := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestDeleteWithExtension_NotRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"dispatcher_vhost.conf": "a",
		"keep.vhost":            "b",
		"sub/nested.conf":       "c",
	})
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, DeleteWithExtension(context.Background(), dir, "conf", step))

	assert.False(t, fsutil.Exists(filepath.Join(dir, "dispatcher_vhost.conf")))
	assert.True(t, fsutil.Exists(filepath.Join(dir, "keep.vhost")))
	// files in subdirectories are never touched
	assert.True(t, fsutil.Exists(filepath.Join(dir, "sub", "nested.conf")))
	require.Len(t, step.Operations(), 1)
	assert.Equal(t, ledger.ActionDeleted, step.Operations()[0].Action)
}

func TestDeleteContaining(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"author_dispatcher.vhost": "a",
		"publish.vhost":           "b",
		"aem_flush.vhost":         "c",
	})
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, DeleteContaining(context.Background(), dir, "author", step))
	require.NoError(t, DeleteContaining(context.Background(), dir, "flush", step))

	assert.False(t, fsutil.Exists(filepath.Join(dir, "author_dispatcher.vhost")))
	assert.False(t, fsutil.Exists(filepath.Join(dir, "aem_flush.vhost")))
	assert.True(t, fsutil.Exists(filepath.Join(dir, "publish.vhost")))
}

func TestDeleteWithPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"ams_publish_cache.any": "a",
		"custom_cache.any":      "b",
	})
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, DeleteWithPrefix(context.Background(), dir, "ams_", step))

	assert.False(t, fsutil.Exists(filepath.Join(dir, "ams_publish_cache.any")))
	assert.True(t, fsutil.Exists(filepath.Join(dir, "custom_cache.any")))
}

func TestDelete_MissingFile(t *testing.T) {
	step := ledger.NewStep("rule", "desc")
	err := Delete(context.Background(), filepath.Join(t.TempDir(), "gone.any"), step)
	require.Error(t, err)
	var notFound *fsutil.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.False(t, step.Performed())
}

func TestKeepOnlyMatching(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"default.vars":    "Define DOCROOT /mnt/var/www",
		"custom.vars":     "Define CRX_ROOT localhost",
		"readme.txt":      "x",
		"sub/other.vars":  "Define PORT 80",
		"sub/notes.any":   "x",
	})
	step := ledger.NewStep("rule", "desc")

	survivors, err := KeepOnlyMatching(context.Background(), dir, "*.vars", step)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "default.vars"),
		filepath.Join(dir, "custom.vars"),
		filepath.Join(dir, "sub", "other.vars"),
	}, survivors)
	assert.False(t, fsutil.Exists(filepath.Join(dir, "readme.txt")))
	assert.False(t, fsutil.Exists(filepath.Join(dir, "sub", "notes.any")))
}

func TestConsolidate(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"first.rules":  "RewriteRule ^/a$ /content/a [PT]\n",
		"second.rules": "RewriteRule ^/b$ /content/b [PT]\n\n",
	})
	step := ledger.NewStep("rule", "desc")
	dest := filepath.Join(dir, "rewrite.rules")

	paths := []string{filepath.Join(dir, "first.rules"), filepath.Join(dir, "second.rules")}
	require.NoError(t, Consolidate(context.Background(), paths, dest, step))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(content), "^/a$")
	assert.Contains(t, string(content), "^/b$")
	// sources are annotated and ordered
	assert.Less(t,
		indexOf(string(content), "^/a$"),
		indexOf(string(content), "^/b$"))
	assert.False(t, fsutil.Exists(paths[0]))
	assert.False(t, fsutil.Exists(paths[1]))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestConsolidateVariables_Deduplicates(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.vars": "Define DOCROOT /mnt/var/www\nDefine DISP_ID 1\n",
		"b.vars": "Define DOCROOT /other/path\nDefine CRX_PORT 4503\n",
	})
	step := ledger.NewStep("rule", "desc")
	dest := filepath.Join(dir, "custom.vars")

	names, err := ConsolidateVariables(context.Background(),
		[]string{filepath.Join(dir, "a.vars"), filepath.Join(dir, "b.vars")}, dest, step)
	require.NoError(t, err)

	assert.Equal(t, []string{"DOCROOT", "DISP_ID", "CRX_PORT"}, names)
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	// the duplicate DOCROOT definition from b.vars is dropped
	assert.Contains(t, string(content), "/mnt/var/www")
	assert.NotContains(t, string(content), "/other/path")
}

func TestDiffByName(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{"a.any": "x", "b.any": "x"})
	writeFiles(t, dest, map[string]string{"a.any": "x", "c.any": "x"})
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, DiffByName(context.Background(), src, dest, step))

	assert.True(t, fsutil.Exists(filepath.Join(dest, "a.any")))
	assert.False(t, fsutil.Exists(filepath.Join(dest, "c.any")))
	require.Len(t, step.Operations(), 1)
	assert.Contains(t, step.Operations()[0].Details, "c.any")
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"publish_farm.any": "x", "taken.farm": "y"})
	step := ledger.NewStep("rule", "desc")

	t.Run("renames", func(t *testing.T) {
		err := Rename(context.Background(),
			filepath.Join(dir, "publish_farm.any"), filepath.Join(dir, "publish.farm"), step)
		require.NoError(t, err)
		assert.True(t, fsutil.Exists(filepath.Join(dir, "publish.farm")))
	})

	t.Run("missing_source", func(t *testing.T) {
		err := Rename(context.Background(),
			filepath.Join(dir, "gone.any"), filepath.Join(dir, "new.any"), step)
		var notFound *fsutil.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("destination_exists", func(t *testing.T) {
		err := Rename(context.Background(),
			filepath.Join(dir, "publish.farm"), filepath.Join(dir, "taken.farm"), step)
		var conflict *fsutil.ConflictError
		require.ErrorAs(t, err, &conflict)
		// the source is untouched after the rejected rename
		assert.True(t, fsutil.Exists(filepath.Join(dir, "publish.farm")))
	})
}

func TestRenameFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vhosts"), 0755))
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, RenameFolder(context.Background(),
		filepath.Join(dir, "vhosts"), filepath.Join(dir, "virtualhosts"), step))
	assert.True(t, fsutil.IsDir(filepath.Join(dir, "virtualhosts")))

	var notFound *fsutil.NotFoundError
	err := RenameFolder(context.Background(),
		filepath.Join(dir, "vhosts"), filepath.Join(dir, "elsewhere"), step)
	require.ErrorAs(t, err, &notFound)
}

func TestContent_AnnotatesAndSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"filters.any": "/0001 { /type \"deny\" /glob \"*\" }\n\n/0002 { /type \"allow\" /glob \"*.html\" }\n",
	})

	lines, err := Content(filepath.Join(dir, "filters.any"), true)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "# Content from file")
	assert.Contains(t, lines[1], "/0001")
	assert.Contains(t, lines[2], "/0002")
}
