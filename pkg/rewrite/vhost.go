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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

const (
	virtualHostStart       = "<VirtualHost"
	virtualHostStartPort80 = ":80>"
	virtualHostEnd         = "</VirtualHost>"
)

// 🗑️ RemoveNonPort80VirtualHosts deletes every `<VirtualHost ...>` block
// whose opener does not end in `:80>` from the vhost files directly under
// dir, markers included. Cloud dispatchers only serve port 80.
func RemoveNonPort80VirtualHosts(ctx context.Context, dir string, step *ledger.Step) error {
	logger := zerolog.Ctx(ctx)
	return eachFile(ctx, dir, "*.vhost", func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			skipping := false
			for _, line := range lines {
				trimmed := strings.TrimSpace(line)
				switch {
				case !skipping && strings.HasPrefix(trimmed, virtualHostStart) &&
					!strings.HasSuffix(trimmed, virtualHostStartPort80):
					skipping = true
				case skipping && trimmed == virtualHostEnd:
					skipping = false
					logger.Info().Str("path", path).Msg("removed virtual host section (not port 80)")
					step.Record(ledger.ActionRemoved, path, "Removed virtual host section (not port 80)")
				case !skipping:
					out = append(out, line)
				}
			}
			return out
		})
		return err
	})
}

// configLabel shortens a file path to its conf.d-relative form for the
// findings report; paths outside a conf.d tree fall back to the base name.
func configLabel(path string) string {
	if i := strings.Index(path, "conf.d"); i >= 0 {
		return path[i:]
	}
	return filepath.Base(path)
}

// 🚫 RemoveNonWhitelistedDirectives comments out every usage of a directive
// not in the whitelist, in the vhost files directly under dir. A
// non-whitelisted section opener comments out the whole block, nested
// sections included, tracked by a stack of open section directives.
// Directive matching is case-insensitive. The returned findings carry one
// `conf.d/...:<line> <Directive>` entry per offending line, and each is also
// recorded as Removed in the step.
func RemoveNonWhitelistedDirectives(ctx context.Context, dir string, whitelist map[string]struct{}, step *ledger.Step) ([]string, error) {
	logger := zerolog.Ctx(ctx)
	var findings []string

	whitelisted := func(line string) bool {
		token := conf.DirectiveToken(line)
		if token == "" {
			return true
		}
		_, ok := whitelist[token]
		return ok
	}

	err := eachFile(ctx, dir, "*.vhost", func(path string) error {
		_, err := editFile(path, func(lines []string) []string {
			out := make([]string, 0, len(lines))
			var openSections []string
			for i, line := range lines {
				trimmed := strings.TrimSpace(line)
				location := configLabel(path) + ":" + strconv.Itoa(i+1)
				if len(openSections) > 0 {
					// everything inside a non-whitelisted section goes
					out = append(out, conf.CommentPrefix+line)
					if strings.HasPrefix(trimmed, "</") {
						if !whitelisted(line) {
							findings = append(findings, location+" "+strings.ReplaceAll(trimmed, "/", ""))
						}
						openSections = openSections[:len(openSections)-1]
					} else if strings.HasPrefix(trimmed, "<") {
						openSections = append(openSections, strings.Fields(trimmed)[0]+">")
					}
					continue
				}
				if whitelisted(line) {
					out = append(out, line)
					continue
				}
				switch {
				case strings.HasPrefix(trimmed, "</"):
					findings = append(findings, location+" "+strings.ReplaceAll(trimmed, "/", ""))
				case strings.HasPrefix(trimmed, "<"):
					openSections = append(openSections, strings.Fields(trimmed)[0]+">")
					findings = append(findings, location+" "+strings.Fields(trimmed)[0]+">")
				default:
					findings = append(findings, location+" "+strings.Fields(trimmed)[0])
				}
				out = append(out, conf.CommentPrefix+line)
				logger.Info().Str("location", location).Msg("commented out non-whitelisted directive usage")
			}
			return out
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, finding := range findings {
		logger.Error().Str("usage", finding).Msg("configuration uses non-whitelisted directive")
		step.Record(ledger.ActionRemoved, finding, "Commented out usage of non-whitelisted directives")
	}
	return findings, nil
}
