package conf

import "regexp"

// CommentPrefix marks a comment line in both vhost and farm dialects.
const CommentPrefix = "#"

// variablePattern matches a `${name}` usage: the literal "${" followed by
// everything that is not a "}".
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Variables returns the names of all `${...}` usages in the line, in order.
func Variables(line string) []string {
	matches := variablePattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// UsesVariable reports whether the line contains any `${...}` usage.
func UsesVariable(line string) bool {
	return variablePattern.MatchString(line)
}
