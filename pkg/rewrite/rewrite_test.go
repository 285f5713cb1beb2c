package rewrite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestReplaceSectionContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.farm", `/publishfarm {
	/cache {
		/rules {
			$include "../cache/old_one.any"
			$include "../cache/old_two.any"
		}
	}
}
`)
	step := ledger.NewStep("rule", "desc")
	ctx := context.Background()

	require.NoError(t, ReplaceSectionContent(ctx, dir, "farm", "/rules", `$include "../cache/rules.any"`, step))

	want := `/publishfarm {
	/cache {
		/rules {
			$include "../cache/rules.any"
		}
	}
}
`
	assert.Equal(t, want, readFile(t, path))
	require.Len(t, step.Operations(), 1)
	assert.Equal(t, ledger.ActionReplaced, step.Operations()[0].Action)

	// second run is a no-op
	again := ledger.NewStep("rule", "desc")
	require.NoError(t, ReplaceSectionContent(ctx, dir, "farm", "/rules", `$include "../cache/rules.any"`, again))
	assert.Equal(t, want, readFile(t, path))
	assert.False(t, again.Performed())
}

func TestReplaceSectionContent_MissingSection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.farm", "/publishfarm {\n\t/cache {\n\t}\n}\n")
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, ReplaceSectionContent(context.Background(), dir, "farm", "/renders", `$include "x"`, step))

	assert.Equal(t, "/publishfarm {\n\t/cache {\n\t}\n}\n", readFile(t, path))
	assert.False(t, step.Performed())
}

func TestReplaceIncludesInSection_CollapsesToFirstMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.farm", `/publishfarm {
	/clientheaders {
		$include "/etc/httpd/conf.dispatcher.d/clientheaders/ams_publish_clientheaders.any"
		$include "/etc/httpd/conf.dispatcher.d/clientheaders/ams_common_clientheaders.any"
	}
}
`)
	step := ledger.NewStep("rule", "desc")
	ctx := context.Background()

	require.NoError(t, ReplaceIncludesInSection(ctx, dir, "farm", conf.FarmInclude,
		"/clientheaders", []string{"ams_publish_clientheaders.any", "ams_common_clientheaders.any"},
		`$include "../clientheaders/default_clientheaders.any"`, step))

	want := `/publishfarm {
	/clientheaders {
		$include "../clientheaders/default_clientheaders.any"
	}
}
`
	assert.Equal(t, want, readFile(t, path))
	require.Len(t, step.Operations(), 2)
	assert.Equal(t, ledger.ActionReplaced, step.Operations()[0].Action)
	assert.Equal(t, ledger.ActionRemoved, step.Operations()[1].Action)

	// re-applying with the merged name among the rule files is a no-op:
	// the statement already matches, so nothing is replaced or recorded
	again := ledger.NewStep("rule", "desc")
	require.NoError(t, ReplaceIncludesInSection(ctx, dir, "farm", conf.FarmInclude,
		"/clientheaders", []string{"default_clientheaders.any", "ams_publish_clientheaders.any"},
		`$include "../clientheaders/default_clientheaders.any"`, again))
	assert.Equal(t, want, readFile(t, path))
	assert.False(t, again.Performed())
}

func TestReplaceIncludesInSection_ScopedToFirstSection(t *testing.T) {
	dir := t.TempDir()
	// two same-named sections; only the first is in scope
	path := writeFile(t, dir, "twin.farm", `/farmone {
	/rules {
		$include "../cache/ams_rules.any"
	}
}
/farmtwo {
	/rules {
		$include "../cache/ams_rules.any"
	}
}
`)
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, ReplaceIncludesInSection(context.Background(), dir, "farm", conf.FarmInclude,
		"/rules", []string{"ams_rules.any"}, `$include "../cache/rules.any"`, step))

	content := readFile(t, path)
	assert.Contains(t, content, `/farmone {
	/rules {
		$include "../cache/rules.any"
	}
}`)
	// the second section keeps its original include
	assert.Contains(t, content, `/farmtwo {
	/rules {
		$include "../cache/ams_rules.any"
	}
}`)
}

func TestReplaceIncludePatternInSection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.farm", `/publishfarm {
	/filter {
		$include "/etc/httpd/conf.dispatcher.d/filters/ams_publish_filters.any"
		$include "/etc/httpd/conf.dispatcher.d/filters/ams_common_filters.any"
		/0099 { /type "allow" /glob "*" }
	}
}
`)
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, ReplaceIncludePatternInSection(context.Background(), dir, "farm", "/filter",
		`$include "/etc/httpd/conf.dispatcher.d/filters/ams`,
		`$include "../filters/filters.any"`, step))

	want := `/publishfarm {
	/filter {
		$include "../filters/filters.any"
		/0099 { /type "allow" /glob "*" }
	}
}
`
	assert.Equal(t, want, readFile(t, path))
}

func TestReplaceIncludes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", `<VirtualHost *:80>
	Include conf.d/rewrites/one_rewrite.rules
	Include conf.d/rewrites/two_rewrite.rules
</VirtualHost>
`)
	step := ledger.NewStep("rule", "desc")
	ctx := context.Background()

	require.NoError(t, ReplaceIncludes(ctx, dir, "vhost", conf.VhostInclude,
		[]string{"one_rewrite.rules", "two_rewrite.rules"},
		"Include conf.d/rewrites/rewrite.rules", step))

	want := `<VirtualHost *:80>
	Include conf.d/rewrites/rewrite.rules
</VirtualHost>
`
	assert.Equal(t, want, readFile(t, path))
	require.Len(t, step.Operations(), 2)
	assert.Equal(t, ledger.ActionReplaced, step.Operations()[0].Action)
	assert.Equal(t, ledger.ActionRemoved, step.Operations()[1].Action)

	again := ledger.NewStep("rule", "desc")
	require.NoError(t, ReplaceIncludes(ctx, dir, "vhost", conf.VhostInclude,
		[]string{"rewrite.rules"}, "Include conf.d/rewrites/rewrite.rules", again))
	assert.Equal(t, want, readFile(t, path))
	assert.False(t, again.Performed())
}

func TestInlineInclude(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", `<VirtualHost *:80>
	Include conf.d/rewrites/rewrite.rules
</VirtualHost>
`)
	step := ledger.NewStep("rule", "desc")

	content := []string{
		"# Content from file : 'rewrite.rules'",
		"RewriteRule ^/$ /content/home.html [PT]",
	}
	require.NoError(t, InlineInclude(context.Background(), dir, "vhost", conf.VhostInclude,
		"rewrite.rules", content, step))

	want := `<VirtualHost *:80>
	# Content from file : 'rewrite.rules'
	RewriteRule ^/$ /content/home.html [PT]
</VirtualHost>
`
	assert.Equal(t, want, readFile(t, path))
	require.Len(t, step.Operations(), 1)
}

func TestRemoveInclude(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", `<VirtualHost *:80>
	Include conf.d/whitelists/publish_whitelist.rules
	ServerName publish
</VirtualHost>
`)
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, RemoveInclude(context.Background(), dir, conf.VhostInclude, "vhost",
		"publish_whitelist.rules", step))

	want := `<VirtualHost *:80>
	ServerName publish
</VirtualHost>
`
	assert.Equal(t, want, readFile(t, path))
}

func TestReplaceIncludeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", "	Include conf.d/rewrites/old_rewrite.rules\n")
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, ReplaceIncludeFile(context.Background(), dir, "vhost", conf.VhostInclude,
		"old_rewrite.rules", "rewrite.rules", step))

	assert.Equal(t, "	Include conf.d/rewrites/rewrite.rules\n", readFile(t, path))
}

func TestReplaceIncludeRule(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.farm", `	$include "/etc/httpd/conf.dispatcher.d/filters/ams_publish_filters.any"`+"\n")
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, ReplaceIncludeRule(context.Background(), dir, "farm", conf.FarmInclude,
		"ams_publish_filters.any", `"../filters/filters.any"`, step))

	assert.Equal(t, `	$include "../filters/filters.any"`+"\n", readFile(t, path))
}

func TestReplaceVariable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", "	DocumentRoot ${PUBLISH_DOCROOT}\n	ServerName publish\n")
	step := ledger.NewStep("rule", "desc")
	ctx := context.Background()

	require.NoError(t, ReplaceVariable(ctx, dir, "vhost", "PUBLISH_DOCROOT", "DOCROOT", step))
	assert.Equal(t, "	DocumentRoot ${DOCROOT}\n	ServerName publish\n", readFile(t, path))

	again := ledger.NewStep("rule", "desc")
	require.NoError(t, ReplaceVariable(ctx, dir, "vhost", "PUBLISH_DOCROOT", "DOCROOT", again))
	assert.False(t, again.Performed())
}

func TestRemoveVariable_PlainLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", "	SetEnv DISP_ID ${DISP_ID}\n	ServerName publish\n")
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, RemoveVariable(context.Background(), dir, "vhost", "DISP_ID", step))

	assert.Equal(t, "	ServerName publish\n", readFile(t, path))
}

func TestRemoveVariable_NestedIfBlock(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", `ServerName publish
<If "${PUBLISH_FORCE_SSL} == 1">
	<If "%{HTTPS} != 'on'">
		Redirect / https://publish/
	</If>
</If>
DocumentRoot /var/www
`)
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, RemoveVariable(context.Background(), dir, "vhost", "PUBLISH_FORCE_SSL", step))

	assert.Equal(t, "ServerName publish\nDocumentRoot /var/www\n", readFile(t, path))
	require.Len(t, step.Operations(), 1)
	assert.Contains(t, step.Operations()[0].Details, "'if' condition")
}

func TestRemoveVariablesInSection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.farm", `/publishfarm {
	/renders {
		/rend01 {
			/hostname "${RENDER_HOST}"
			/port "4503"
		}
	}
}
`)
	step := ledger.NewStep("rule", "desc")
	ctx := context.Background()

	require.NoError(t, RemoveVariablesInSection(ctx, dir, "farm", "/renders", step))

	want := `/publishfarm {
	/renders {
		/rend01 {
#			/hostname "${RENDER_HOST}"
			/port "4503"
		}
	}
}
`
	assert.Equal(t, want, readFile(t, path))

	// already-commented lines stay single-commented
	again := ledger.NewStep("rule", "desc")
	require.NoError(t, RemoveVariablesInSection(ctx, dir, "farm", "/renders", again))
	assert.Equal(t, want, readFile(t, path))
	assert.False(t, again.Performed())
}

func TestRemoveNonPort80VirtualHosts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", `<VirtualHost *:80>
	ServerName publish
</VirtualHost>
<VirtualHost *:443>
	ServerName publish-ssl
</VirtualHost>
`)
	step := ledger.NewStep("rule", "desc")

	require.NoError(t, RemoveNonPort80VirtualHosts(context.Background(), dir, step))

	want := `<VirtualHost *:80>
	ServerName publish
</VirtualHost>
`
	assert.Equal(t, want, readFile(t, path))
	require.Len(t, step.Operations(), 1)
	assert.Equal(t, ledger.ActionRemoved, step.Operations()[0].Action)
}

func TestRemoveNonWhitelistedDirectives(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", `ServerName publish
SSLEngine on
<Session SessionMaxAge=3600>
	SessionCookieName session path=/
</Session>
<IfModule mod_rewrite.c>
	RewriteEngine ON
</IfModule>
`)
	step := ledger.NewStep("rule", "desc")
	ctx := context.Background()

	findings, err := RemoveNonWhitelistedDirectives(ctx, dir, conf.WhitelistSet(conf.DefaultWhitelist), step)
	require.NoError(t, err)

	want := `ServerName publish
#SSLEngine on
#<Session SessionMaxAge=3600>
#	SessionCookieName session path=/
#</Session>
<IfModule mod_rewrite.c>
	RewriteEngine ON
</IfModule>
`
	assert.Equal(t, want, readFile(t, path))
	// one finding per offending line
	require.Len(t, findings, 3)
	assert.Contains(t, findings[0], "SSLEngine")
	assert.Contains(t, findings[1], "<Session>")
	assert.Contains(t, findings[2], "<Session>")
	assert.Len(t, step.Operations(), 3)

	// commented lines are not flagged or re-commented on a second run
	again := ledger.NewStep("rule", "desc")
	findings, err = RemoveNonWhitelistedDirectives(ctx, dir, conf.WhitelistSet(conf.DefaultWhitelist), again)
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, want, readFile(t, path))
}

func TestRemoveNonWhitelistedDirectives_CaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", "SERVERNAME publish\nservername publish\n")
	step := ledger.NewStep("rule", "desc")

	findings, err := RemoveNonWhitelistedDirectives(context.Background(), dir,
		conf.WhitelistSet(conf.DefaultWhitelist), step)
	require.NoError(t, err)

	assert.Empty(t, findings)
	assert.Equal(t, "SERVERNAME publish\nservername publish\n", readFile(t, path))
}

func TestCheckUndefinedVariables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "publish.vhost", `DocumentRoot ${DOCROOT}
ServerAlias ${SERVER_ALIAS}
# old: SetEnv ${RETIRED}
`)
	// a second file reusing the same undefined name gets its own warning
	extra := writeFile(t, dir, "zz_extra.vhost", "ServerAlias ${SERVER_ALIAS}\n")
	step := ledger.NewStep("rule", "desc")

	undefined, err := CheckUndefinedVariables(context.Background(), dir, []string{"DOCROOT"}, step)
	require.NoError(t, err)

	assert.Equal(t, []string{"SERVER_ALIAS"}, undefined)
	require.Len(t, step.Operations(), 2)
	assert.Equal(t, ledger.ActionWarning, step.Operations()[0].Action)
	assert.Contains(t, step.Operations()[0].Details, "at line 2")
	assert.Equal(t, extra, step.Operations()[1].Location)
	assert.Contains(t, step.Operations()[1].Details, "at line 1")
}

func TestIncludedRuleNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "publish.vhost", `<VirtualHost *:80>
	Include conf.d/rewrites/rewrite.rules
	Include conf.d/variables/custom.vars
</VirtualHost>
`)

	names, err := IncludedRuleNames(path, []string{"other.rules", "rewrite.rules", "custom.vars"}, conf.VhostInclude)
	require.NoError(t, err)
	assert.Equal(t, []string{"rewrite.rules", "custom.vars"}, names)
}
