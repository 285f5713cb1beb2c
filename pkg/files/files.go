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

// Package files provides the file and folder operations of the conversion
// engine: filtered deletes, renames, consolidation and directory diffs.
// Every mutating operation appends to the conversion step it is given.
package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

// 🗑️ Delete removes a single file and records the deletion. A missing or
// non-regular path is a contract violation and yields *fsutil.NotFoundError.
func Delete(ctx context.Context, path string, step *ledger.Step) error {
	logger := zerolog.Ctx(ctx)

	if !fsutil.IsFile(path) {
		return &fsutil.NotFoundError{Path: path}
	}
	if err := os.Remove(path); err != nil {
		return errors.Errorf("deleting file: %w", err)
	}
	logger.Info().Str("path", path).Msg("deleted file")
	step.Record(ledger.ActionDeleted, filepath.Dir(path), "Deleted file "+path)
	return nil
}

// deleteMatching removes the directory-local files accepted by match. The
// scan never descends into subdirectories.
func deleteMatching(ctx context.Context, dir string, step *ledger.Step, match func(name string) bool) error {
	if !fsutil.IsDir(dir) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Errorf("reading directory: %w", err)
	}
	logger := zerolog.Ctx(ctx)
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := Delete(ctx, path, step); err != nil {
			// keep processing the rest of the directory
			logger.Error().Err(err).Str("path", path).Msg("could not delete file")
		}
	}
	return nil
}

// 🗑️ DeleteWithExtension removes all files with the given extension in dir.
// Subdirectories are not searched.
func DeleteWithExtension(ctx context.Context, dir, extension string, step *ledger.Step) error {
	return deleteMatching(ctx, dir, step, func(name string) bool {
		return strings.HasSuffix(name, "."+extension)
	})
}

// 🗑️ DeleteContaining removes all files in dir whose name contains the
// substring. Subdirectories are not searched.
func DeleteContaining(ctx context.Context, dir, substring string, step *ledger.Step) error {
	return deleteMatching(ctx, dir, step, func(name string) bool {
		return strings.Contains(name, substring)
	})
}

// 🗑️ DeleteWithPrefix removes all files in dir whose name starts with the
// prefix. Subdirectories are not searched.
func DeleteWithPrefix(ctx context.Context, dir, prefix string, step *ledger.Step) error {
	return deleteMatching(ctx, dir, step, func(name string) bool {
		return strings.HasPrefix(name, prefix)
	})
}

// 🧹 KeepOnlyMatching deletes every file under dir (recursively) whose name
// does not match the glob pattern (e.g. "*.vars") and returns the surviving
// files so callers can chain further operations on exactly that set.
func KeepOnlyMatching(ctx context.Context, dir, pattern string, step *ledger.Step) ([]string, error) {
	if !fsutil.IsDir(dir) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**/"+pattern)
	if err != nil {
		return nil, errors.Errorf("matching pattern %q: %w", pattern, err)
	}
	keep := make(map[string]struct{}, len(matches))
	survivors := make([]string, 0, len(matches))
	for _, rel := range matches {
		abs := filepath.Join(dir, rel)
		if !fsutil.IsFile(abs) {
			continue
		}
		keep[abs] = struct{}{}
		survivors = append(survivors, abs)
	}

	logger := zerolog.Ctx(ctx)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if _, ok := keep[path]; ok {
			return nil
		}
		if err := Delete(ctx, path, step); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("could not delete file")
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", dir, err)
	}
	return survivors, nil
}

// 📑 Content returns the lines of a rule file, prefixed with a comment
// noting the source file, with blank lines dropped. The result is what
// include-inlining splices into a referencing file. resolveSymlinks is
// passed through to the content accessor.
func Content(path string, resolveSymlinks bool) ([]string, error) {
	lines := []string{conf.CommentPrefix + " Content from file : '" + sourceLabel(path) + "'"}
	raw, err := fsutil.Read(path, resolveSymlinks)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimRight(line, "\r") == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
	return lines, nil
}

// sourceLabel trims the path at the conversion working folder so the
// annotation stays readable in the converted files.
func sourceLabel(path string) string {
	marker := string(filepath.Separator) + "src" + string(filepath.Separator)
	if i := strings.Index(path, marker); i >= 0 {
		return path[i+1:]
	}
	return filepath.Base(path)
}

// 🧵 Consolidate concatenates the content of the given rule files, in order,
// into a single new file at dest and deletes the originals.
func Consolidate(ctx context.Context, paths []string, dest string, step *ledger.Step) error {
	logger := zerolog.Ctx(ctx)

	var combined []string
	for _, path := range paths {
		lines, err := Content(path, true)
		if err != nil {
			return errors.Errorf("reading rule file %s: %w", path, err)
		}
		combined = append(combined, lines...)
	}
	if err := fsutil.WriteFileAtomic(dest, []byte(strings.Join(combined, "\n")+"\n")); err != nil {
		return errors.Errorf("writing consolidated file: %w", err)
	}
	logger.Info().Str("path", dest).Int("sources", len(paths)).Msg("consolidated rule files")
	step.Record(ledger.ActionAdded, dest, "Consolidated "+joinNames(paths)+" into "+filepath.Base(dest))

	for _, path := range paths {
		if path == dest {
			continue
		}
		if err := Delete(ctx, path, step); err != nil {
			return err
		}
	}
	return nil
}

// 🧵 ConsolidateVariables merges variable definition files into dest,
// skipping duplicate variable names, and returns the names of the variables
// defined in the consolidated file.
func ConsolidateVariables(ctx context.Context, paths []string, dest string, step *ledger.Step) ([]string, error) {
	seen := map[string]struct{}{}
	var names []string
	var definitions []string
	for _, path := range paths {
		lines, err := Content(path, true)
		if err != nil {
			return nil, errors.Errorf("reading variable file %s: %w", path, err)
		}
		for _, line := range lines {
			if strings.HasPrefix(line, conf.CommentPrefix) {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			if _, dup := seen[fields[1]]; dup {
				continue
			}
			seen[fields[1]] = struct{}{}
			names = append(names, fields[1])
			definitions = append(definitions, line)
		}
	}
	if err := fsutil.WriteFileAtomic(dest, []byte(strings.Join(definitions, "\n")+"\n")); err != nil {
		return nil, errors.Errorf("writing consolidated variables: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("path", dest).Int("variables", len(names)).Msg("consolidated variable files")
	step.Record(ledger.ActionAdded, dest, "Consolidated variable definitions into "+filepath.Base(dest))
	return names, nil
}

// ↔️ DiffByName deletes every file in destDir whose name has no counterpart
// in srcDir. Comparison is by file name only.
func DiffByName(ctx context.Context, srcDir, destDir string, step *ledger.Step) error {
	srcEntries, err := os.ReadDir(srcDir)
	if err != nil {
		return errors.Errorf("reading source directory: %w", err)
	}
	known := map[string]struct{}{}
	for _, entry := range srcEntries {
		if !entry.IsDir() {
			known[entry.Name()] = struct{}{}
		}
	}

	destEntries, err := os.ReadDir(destDir)
	if err != nil {
		return errors.Errorf("reading destination directory: %w", err)
	}
	logger := zerolog.Ctx(ctx)
	for _, entry := range destEntries {
		if entry.IsDir() {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}
		path := filepath.Join(destDir, entry.Name())
		if err := Delete(ctx, path, step); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("could not delete file")
		}
	}
	return nil
}

// 🔄 Rename moves a file from src to dest. The source must exist
// (*fsutil.NotFoundError) and the destination must not
// (*fsutil.ConflictError); silent overwrites are rejected.
func Rename(ctx context.Context, src, dest string, step *ledger.Step) error {
	if !fsutil.IsFile(src) {
		return &fsutil.NotFoundError{Path: src}
	}
	if fsutil.Exists(dest) {
		return &fsutil.ConflictError{Path: dest}
	}
	if err := os.Rename(src, dest); err != nil {
		return errors.Errorf("renaming file: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("from", src).Str("to", dest).Msg("renamed file")
	step.Record(ledger.ActionRenamed, filepath.Dir(src),
		"Renamed file "+filepath.Base(src)+" to "+filepath.Base(dest))
	return nil
}

// Names returns the base names of the given paths.
func Names(paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names
}

func joinNames(paths []string) string {
	return strings.Join(Names(paths), ", ")
}

// Glob returns the files under dir (recursively) matching the doublestar
// pattern, as absolute paths.
func Glob(dir, pattern string) ([]string, error) {
	if !fsutil.IsDir(dir) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, errors.Errorf("matching pattern %q: %w", pattern, err)
	}
	paths := make([]string, 0, len(matches))
	for _, rel := range matches {
		abs := filepath.Join(dir, rel)
		if fsutil.IsFile(abs) {
			paths = append(paths, abs)
		}
	}
	return paths, nil
}
