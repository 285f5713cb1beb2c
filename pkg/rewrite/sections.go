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

	"github.com/rs/zerolog"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

// 📦 ReplaceSectionContent replaces the entire content of the named section
// with a single include statement, in every file with the given extension
// under dir. The statement inherits the indentation of the section's former
// first content line. Files without the section are left alone.
func ReplaceSectionContent(ctx context.Context, dir, ext, header, includeStatement string, step *ledger.Step) error {
	logger := zerolog.Ctx(ctx)
	return eachFile(ctx, dir, "**/*."+ext, func(path string) error {
		changed, err := editFile(path, func(lines []string) []string {
			sec, ok := conf.LocateSection(lines, header)
			if !ok {
				return lines
			}
			start := sec.ContentStart(lines)
			indent := sec.Indent + "\t"
			if start < sec.EndLine {
				indent = indentOf(lines[start])
			}
			out := make([]string, 0, len(lines))
			out = append(out, lines[:start]...)
			out = append(out, indent+includeStatement)
			out = append(out, lines[sec.EndLine:]...)
			return out
		})
		if err != nil {
			return err
		}
		if changed {
			logger.Info().Str("path", path).Str("section", header).Msg("replaced section content")
			step.Record(ledger.ActionReplaced, path,
				"Replaced content of section '"+header+"' with include statement "+includeStatement)
		}
		return nil
	})
}
