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

// Package rewrite is the line-oriented rewrite engine of the conversion.
// Every operation here reads a configuration file, transforms its lines,
// and writes the result back atomically only when something changed, so a
// second run of any operation is a no-op. Batch operations walk a directory
// tree and keep going when a single file fails; the failure is logged and
// the rest of the batch still runs.
package rewrite

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/dispatcherconv/pkg/files"
	"github.com/walteh/dispatcherconv/pkg/fsutil"
)

// editFile applies transform to the file's lines and persists the result
// atomically. The write is skipped entirely when the transform left the
// lines untouched; the boolean reports whether the file changed on disk.
func editFile(path string, transform func(lines []string) []string) (bool, error) {
	raw, err := fsutil.Read(path, false)
	if err != nil {
		return false, err
	}
	lines := strings.Split(string(raw), "\n")
	out := transform(slices.Clone(lines))
	if slices.Equal(out, lines) {
		return false, nil
	}
	if err := fsutil.WriteFileAtomic(path, []byte(strings.Join(out, "\n"))); err != nil {
		return false, err
	}
	return true, nil
}

// eachFile runs fn over every file under dir matching the doublestar
// pattern. A missing directory is a no-op. Per-file failures are logged and
// do not stop the batch.
func eachFile(ctx context.Context, dir, pattern string, fn func(path string) error) error {
	paths, err := files.Glob(dir, pattern)
	if err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)
	for _, path := range paths {
		if err := fn(path); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("could not rewrite file")
		}
	}
	return nil
}

// indentOf returns the leading whitespace of a line.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
