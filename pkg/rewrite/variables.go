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
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

const (
	ifBlockStart = "<If"
	ifBlockEnd   = "</If>"
)

// 🔄 ReplaceVariable substitutes every usage of oldVar with newVar in all
// matching files under dir.
func ReplaceVariable(ctx context.Context, dir, ext, oldVar, newVar string, step *ledger.Step) error {
	logger := zerolog.Ctx(ctx)
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			for _, line := range lines {
				if !strings.Contains(line, oldVar) {
					out = append(out, line)
					continue
				}
				out = append(out, strings.ReplaceAll(line, oldVar, newVar))
				logger.Info().Str("path", path).Str("variable", oldVar).Msg("replaced variable")
				step.Record(ledger.ActionReplaced, path,
					"Replaced variable '"+oldVar+"' with new variable '"+newVar+"'")
			}
			return out
		})
		return err
	})
}

// 🗑️ RemoveVariable deletes every usage of the variable from all matching
// files under dir. A usage in an `<If>` condition takes the whole block with
// it: the scan keeps a depth counter over nested `<If>`/`</If>` markers so
// inner blocks do not end the removal early.
func RemoveVariable(ctx context.Context, dir, ext, name string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			depth := 0
			for _, line := range lines {
				trimmed := strings.TrimSpace(line)
				switch {
				case depth == 0 && strings.HasPrefix(trimmed, ifBlockStart) && strings.Contains(line, name):
					depth = 1
				case depth == 0 && strings.Contains(line, name):
					step.Record(ledger.ActionRemoved, path, "Removed variable '"+name+"'")
				case depth > 0:
					if strings.HasPrefix(trimmed, ifBlockStart) {
						depth++
					} else if strings.HasSuffix(trimmed, ifBlockEnd) {
						depth--
						if depth == 0 {
							step.Record(ledger.ActionRemoved, path,
								"Removed 'if' condition which used variable '"+name+"'")
						}
					}
				default:
					out = append(out, line)
				}
			}
			return out
		})
		return err
	})
}

// 🗑️ RemoveVariablesInSection comments out every line using a `${...}`
// variable inside the first occurrence of the named section, in all matching
// files under dir. Lines outside the section, and lines already commented,
// are left alone.
func RemoveVariablesInSection(ctx context.Context, dir, ext, header string, step *ledger.Step) error {
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			sec, ok := conf.LocateSection(lines, header)
			if !ok {
				return lines
			}
			out := make([]string, 0, len(lines))
			for i, line := range lines {
				trimmed := strings.TrimSpace(line)
				if !sec.Contains(lines, i) || !conf.UsesVariable(trimmed) ||
					strings.HasPrefix(trimmed, conf.CommentPrefix) {
					out = append(out, line)
					continue
				}
				out = append(out, conf.CommentPrefix+line)
				step.Record(ledger.ActionRemoved, path,
					"Removed usage of variable '"+trimmed+"' in section '"+header+"'")
			}
			return out
		})
		return err
	})
}

// ⚠️ CheckUndefinedVariables scans the vhost files under dir for `${...}`
// usages whose variable is not in the defined list. Every usage is recorded
// with its file and line; findings are warnings in the step and the log,
// never errors. The returned list holds each undefined name once.
func CheckUndefinedVariables(ctx context.Context, dir string, defined []string, step *ledger.Step) ([]string, error) {
	known := make(map[string]struct{}, len(defined))
	for _, name := range defined {
		known[name] = struct{}{}
	}
	logger := zerolog.Ctx(ctx)

	flagged := map[string]struct{}{}
	var undefined []string
	err := eachFile(ctx, dir, "**/*.vhost", func(path string) error {
		raw, err := fsutil.Read(path, false)
		if err != nil {
			return err
		}
		for i, line := range strings.Split(string(raw), "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), conf.CommentPrefix) {
				continue
			}
			for _, name := range conf.Variables(line) {
				if _, ok := known[name]; ok {
					continue
				}
				if _, seen := flagged[name]; !seen {
					flagged[name] = struct{}{}
					undefined = append(undefined, name)
				}
				logger.Warn().Str("path", path).Int("line", i+1).Str("variable", name).Msg("usage of undefined variable")
				step.Record(ledger.ActionWarning, path,
					"Usage of undefined variable ${"+name+"} at line "+strconv.Itoa(i+1))
			}
		}
		return nil
	})
	return undefined, err
}
