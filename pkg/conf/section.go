package conf

import "strings"

// Section is a located block inside a file's lines. HeaderLine is the line
// carrying the header token, EndLine the line carrying the closing brace
// that balances the block. Content spans the lines strictly between the
// opening brace and EndLine.
type Section struct {
	HeaderLine int
	EndLine    int
	// Indent is the leading whitespace of the header line; the closing
	// brace of a well-formed block sits at the same indent.
	Indent string
}

// ContentStart returns the index of the first content line. When the header
// line does not carry the opening brace itself, the brace sits on the
// following line and content starts after it.
func (s Section) ContentStart(lines []string) int {
	header := strings.TrimSpace(lines[s.HeaderLine])
	if strings.HasSuffix(header, "{") {
		return s.HeaderLine + 1
	}
	return s.HeaderLine + 2
}

// LocateSection finds the first occurrence of the named section header in
// lines and its matching closing brace. The scan is a depth counter over
// brace tokens: nested blocks of the same type inside the section do not
// terminate it early. The boolean result is false when the header is absent,
// which is an expected condition, not an error.
func LocateSection(lines []string, header string) (Section, bool) {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, header) {
			continue
		}
		sec := Section{
			HeaderLine: i,
			Indent:     line[:len(line)-len(strings.TrimLeft(line, " \t"))],
		}
		depth := 0
		opened := false
		for j := i; j < len(lines); j++ {
			opens, closes := braceTokens(lines[j])
			depth += opens
			if depth > 0 {
				opened = true
			}
			depth -= closes
			if opened && depth <= 0 {
				sec.EndLine = j
				return sec, true
			}
		}
		// header found but the block never closes; treat as absent rather
		// than guessing a boundary
		return Section{}, false
	}
	return Section{}, false
}

// braceTokens counts the opening and closing braces on the line that sit
// outside quoted values. Quoted glob patterns may contain braces, e.g.
// `/glob "a{b"`, and those must not shift the section boundary.
func braceTokens(line string) (opens, closes int) {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '{':
			if !inQuote {
				opens++
			}
		case '}':
			if !inQuote {
				closes++
			}
		}
	}
	return opens, closes
}

// Contains reports whether line index i lies strictly inside the section's
// content, between the opening brace and the closing line.
func (s Section) Contains(lines []string, i int) bool {
	return i >= s.ContentStart(lines) && i < s.EndLine
}
