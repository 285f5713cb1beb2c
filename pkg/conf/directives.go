package conf

import "strings"

// DefaultWhitelist is the set of Apache directives permitted in an AEM as a
// Cloud Service dispatcher configuration. Directive names are
// case-insensitive, so the list is kept in lower case; section directives
// carry their angle brackets in `<name>` form.
var DefaultWhitelist = []string{
	"<directory>",
	"<files>",
	"<filesmatch>",
	"<if>",
	"<ifdefine>",
	"<ifmodule>",
	"<location>",
	"<locationmatch>",
	"<proxy>",
	"<requireall>",
	"<requireany>",
	"<virtualhost>",
	"addcharset",
	"addencoding",
	"addhandler",
	"addoutputfilter",
	"addoutputfilterbytype",
	"addtype",
	"alias",
	"allow",
	"allowencodedslashes",
	"allowmethods",
	"allowoverride",
	"authbasicprovider",
	"authgroupfile",
	"authname",
	"authtype",
	"authuserfile",
	"browsermatch",
	"browsermatchnocase",
	"define",
	"deflatecompressionlevel",
	"deflatefilternote",
	"deflatememlevel",
	"deflatewindowsize",
	"deny",
	"directoryslash",
	"dispatcherdeclineroot",
	"dispatcherpasserror",
	"dispatcheruseprocessedurl",
	"documentroot",
	"errordocument",
	"fileetag",
	"filterchain",
	"filterdeclare",
	"filterprovider",
	"forcetype",
	"header",
	"include",
	"includeoptional",
	"keepalive",
	"limitrequestfieldsize",
	"modmimeusepathinfo",
	"options",
	"order",
	"passenv",
	"redirect",
	"redirectmatch",
	"remoteipheader",
	"remoteiptrustedproxylist",
	"requestheader",
	"requestreadtimeout",
	"require",
	"rewritecond",
	"rewriteengine",
	"rewritemap",
	"rewriteoptions",
	"rewriterule",
	"satisfy",
	"scriptalias",
	"secrequestbodyaccess",
	"secruleengine",
	"serveralias",
	"servername",
	"serversignature",
	"setenvif",
	"setenvifnocase",
	"sethandler",
	"setoutputfilter",
	"substitute",
	"traceenable",
	"undefine",
	"userdir",
}

// WhitelistSet builds a lowercase lookup set from a directive list.
func WhitelistSet(directives []string) map[string]struct{} {
	set := make(map[string]struct{}, len(directives))
	for _, d := range directives {
		set[strings.ToLower(d)] = struct{}{}
	}
	return set
}

// DirectiveToken extracts the leading directive of a non-comment line,
// normalized so the whitelist can be consulted: a section opener
// `<IfModule mod_rewrite.c>` yields `<ifmodule>`, a section closer
// `</IfModule>` yields `<ifmodule>`, and a plain directive yields its first
// word lowercased. The empty string means the line carries no directive.
func DirectiveToken(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, CommentPrefix) || strings.HasPrefix(trimmed, "\\") {
		return ""
	}
	if strings.HasPrefix(trimmed, "</") {
		return strings.ToLower(strings.ReplaceAll(trimmed, "/", ""))
	}
	if strings.HasPrefix(trimmed, "<") {
		fields := strings.Fields(trimmed)
		name := strings.TrimSuffix(fields[0], ">")
		return strings.ToLower(name) + ">"
	}
	fields := strings.Fields(trimmed)
	return strings.ToLower(fields[0])
}
