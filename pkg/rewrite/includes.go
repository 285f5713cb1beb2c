// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rewrite

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

// replaceIncludesInSection collapses the include statements accepted by
// match, inside the first occurrence of the named section, into a single
// statement at the position of the first match. Later matches are dropped.
// Records go to step under the file's path.
func replaceIncludesInSection(path string, lines []string, header string,
	match func(trimmed string) bool, newStatement string, step *ledger.Step) []string {

	sec, ok := conf.LocateSection(lines, header)
	if !ok {
		return lines
	}
	replaced := false
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !sec.Contains(lines, i) || !match(trimmed) {
			out = append(out, line)
			continue
		}
		if replaced {
			step.Record(ledger.ActionRemoved, path,
				"Removed include statement '"+trimmed+"' in section '"+header+"'")
			continue
		}
		replaced = true
		replacement := indentOf(line) + newStatement
		out = append(out, replacement)
		if replacement == line {
			// already collapsed; no record for a line left as it was
			continue
		}
		step.Record(ledger.ActionReplaced, path,
			"Replaced include statement '"+trimmed+"' in section '"+header+"' with '"+newStatement+"'")
	}
	return out
}

// 🧩 ReplaceIncludesInSection collapses the include statements referencing
// any of the given rule files, inside the named section of every matching
// file under dir, into the single new statement. The first matching include
// is replaced in place; the rest are removed.
func ReplaceIncludesInSection(ctx context.Context, dir, ext string, syntax conf.IncludeSyntax,
	header string, ruleFiles []string, newStatement string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			return replaceIncludesInSection(path, lines, header, func(trimmed string) bool {
				for _, name := range ruleFiles {
					if syntax.References(trimmed, name) {
						return true
					}
				}
				return false
			}, newStatement, step)
		})
		return err
	})
}

// 🧩 ReplaceIncludePatternInSection collapses the include statements whose
// trimmed text starts with oldPrefix, inside the named section of every
// matching file under dir, into the single new statement.
func ReplaceIncludePatternInSection(ctx context.Context, dir, ext, header, oldPrefix,
	newStatement string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			return replaceIncludesInSection(path, lines, header, func(trimmed string) bool {
				return strings.HasPrefix(trimmed, oldPrefix)
			}, newStatement, step)
		})
		return err
	})
}

// 🧩 ReplaceIncludes collapses the include statements referencing any of the
// given rule files into the single new statement, across the whole of every
// matching file under dir. Vhost files have no brace-delimited sections, so
// the collapse there spans the file.
func ReplaceIncludes(ctx context.Context, dir, ext string, syntax conf.IncludeSyntax,
	ruleFiles []string, newStatement string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			replaced := false
			out := make([]string, 0, len(lines))
			for _, line := range lines {
				trimmed := strings.TrimSpace(line)
				matched := false
				for _, name := range ruleFiles {
					if syntax.References(trimmed, name) {
						matched = true
						break
					}
				}
				if !matched {
					out = append(out, line)
					continue
				}
				if replaced {
					step.Record(ledger.ActionRemoved, path, "Removed include statement '"+trimmed+"'")
					continue
				}
				replaced = true
				replacement := indentOf(line) + newStatement
				out = append(out, replacement)
				if replacement == line {
					continue
				}
				step.Record(ledger.ActionReplaced, path,
					"Replaced include statement '"+trimmed+"' with '"+newStatement+"'")
			}
			return out
		})
		return err
	})
}

// 📥 InlineInclude replaces every include statement referencing exactly the
// named rule file with the given content lines, re-indented to the include
// statement's own indentation. Callers resolve the rule file's content
// beforehand (see files.Content).
func InlineInclude(ctx context.Context, dir, ext string, syntax conf.IncludeSyntax,
	ruleName string, content []string, step *ledger.Step) error {
	logger := zerolog.Ctx(ctx)
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			for _, line := range lines {
				trimmed := strings.TrimSpace(line)
				if !syntax.ReferencesExactly(trimmed, ruleName) {
					out = append(out, line)
					continue
				}
				indent := indentOf(line)
				for _, contentLine := range content {
					out = append(out, indent+contentLine)
				}
				logger.Info().Str("path", path).Str("rule", ruleName).Msg("inlined rule file content")
				step.Record(ledger.ActionReplaced, path,
					"Replaced include statement '"+trimmed+"' with content of rule file "+ruleName)
			}
			return out
		})
		return err
	})
}

// 🗑️ RemoveInclude deletes every include statement referencing the named
// rule file from all matching files under dir.
func RemoveInclude(ctx context.Context, dir string, syntax conf.IncludeSyntax, ext, ruleName string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			for _, line := range lines {
				if syntax.References(line, ruleName) {
					step.Record(ledger.ActionRemoved, path, "Removing include statement "+ruleName)
					continue
				}
				out = append(out, line)
			}
			return out
		})
		return err
	})
}

// 🔄 ReplaceIncludeFile swaps the referenced file name inside include
// statements: `$include "../filters/ams_publish_filters.any"` with oldName
// ams_publish_filters.any and newName filters.any keeps the rest of the
// statement intact.
func ReplaceIncludeFile(ctx context.Context, dir, ext string, syntax conf.IncludeSyntax,
	oldName, newName string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			for _, line := range lines {
				if !syntax.References(line, oldName) {
					out = append(out, line)
					continue
				}
				out = append(out, strings.ReplaceAll(line, oldName, newName))
				step.Record(ledger.ActionReplaced, path,
					"Replacing include statement "+oldName+" with "+newName)
			}
			return out
		})
		return err
	})
}

// 🔄 ReplaceIncludeRule rewrites the whole include statement: any statement
// referencing oldName becomes the syntax's statement for newRule, keeping
// only the original indentation.
func ReplaceIncludeRule(ctx context.Context, dir, ext string, syntax conf.IncludeSyntax,
	oldName, newRule string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			for _, line := range lines {
				if !syntax.References(line, oldName) {
					out = append(out, line)
					continue
				}
				replacement := indentOf(line) + syntax.Statement(newRule)
				out = append(out, replacement)
				step.Record(ledger.ActionReplaced, path,
					"Replacing include statement rule "+strings.TrimSpace(line)+" with "+strings.TrimSpace(replacement))
			}
			return out
		})
		return err
	})
}

// 🔍 IncludedRuleNames reads the file and returns the subset of candidate
// rule file names that its include statements actually reference, in
// candidate order.
func IncludedRuleNames(path string, candidates []string, syntax conf.IncludeSyntax) ([]string, error) {
	raw, err := fsutil.Read(path, false)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(raw), "\n")
	var referenced []string
	for _, name := range candidates {
		for _, line := range lines {
			if syntax.References(line, name) {
				referenced = append(referenced, name)
				break
			}
		}
	}
	return referenced, nil
}
