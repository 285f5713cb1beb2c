// Package conf holds the syntax primitives the rewrite engine matches
// against: include-statement syntaxes, section boundaries, variable usages
// and the directive whitelist. Dispatcher configuration files are
// line-oriented and are never parsed into a full grammar; everything here
// works on block boundaries and pattern matching.
package conf

import "strings"

// IncludeSyntax describes how a configuration dialect spells its include
// statements. Vhost files use the Apache `Include` directive with a bare
// file name; farm files use the dispatcher `$include` call with a quoted
// rule path. Every include-aware operation takes the syntax as a value
// rather than hard-coding one dialect.
type IncludeSyntax struct {
	// Directive is the token that opens an include statement, e.g.
	// "Include" or "$include".
	Directive string
}

var (
	// VhostInclude matches `Include conf.d/rewrites/rewrite.rules` style
	// statements in virtual host files.
	VhostInclude = IncludeSyntax{Directive: "Include"}

	// FarmInclude matches `$include "../cache/rules.any"` style statements
	// in farm files.
	FarmInclude = IncludeSyntax{Directive: "$include"}
)

// MatchesLine reports whether the line (ignoring leading whitespace) is an
// include statement of this syntax.
func (s IncludeSyntax) MatchesLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), s.Directive)
}

// References reports whether the line is an include statement of this syntax
// that references the given file name. The name may appear bare, quoted, or
// at the end of a longer path; surrounding whitespace is irrelevant.
func (s IncludeSyntax) References(line, name string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, s.Directive) {
		return false
	}
	rest := trimmed[len(s.Directive):]
	return strings.Contains(rest, name)
}

// ReferencesExactly reports whether the include statement's referenced path
// ends in exactly the given file name, tolerating a closing quote.
func (s IncludeSyntax) ReferencesExactly(line, name string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, s.Directive) {
		return false
	}
	return strings.HasSuffix(trimmed, name) || strings.HasSuffix(trimmed, name+`"`)
}

// Statement renders an include statement for the given rule reference.
func (s IncludeSyntax) Statement(rule string) string {
	return s.Directive + " " + rule
}
