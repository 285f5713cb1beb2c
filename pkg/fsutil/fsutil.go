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

// Package fsutil is the content accessor for the conversion engine: reading
// files through symlink chains, writing files atomically, and copying the
// input tree into the working target.
package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"
)

// Exists reports whether path exists at all.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsFile reports whether path exists and is a regular file (or a symlink to
// one).
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Read returns the content of path. When resolveSymlinks is true and path is
// a symlink, the chain is followed link by link to the final regular file and
// that file's content is returned; a dangling link yields *BrokenLinkError
// and a chain that revisits a path yields *CyclicLinkError. When
// resolveSymlinks is false the content is read through the OS as-is.
func Read(path string, resolveSymlinks bool) ([]byte, error) {
	if resolveSymlinks {
		resolved, err := ResolveSymlink(path)
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading file: %w", err)
	}
	return content, nil
}

// ResolveSymlink follows the symlink chain starting at path and returns the
// final regular file's path. The visited set is local to one call; no state
// is kept between resolutions.
func ResolveSymlink(path string) (string, error) {
	visited := map[string]struct{}{}
	current := path
	for {
		if _, seen := visited[current]; seen {
			return "", &CyclicLinkError{Path: path}
		}
		visited[current] = struct{}{}

		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return "", &BrokenLinkError{Path: path, Target: current}
			}
			return "", errors.Errorf("stat %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return current, nil
		}

		target, err := os.Readlink(current)
		if err != nil {
			return "", errors.Errorf("readlink %s: %w", current, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = target
	}
}

// WriteFileAtomic writes content to path via a temp file and rename, so an
// interrupted run leaves either the old file or the new file, never a
// truncated one. If path is a symlink the chain is resolved first and the
// final target replaced, preserving the link itself.
func WriteFileAtomic(path string, content []byte) error {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := ResolveSymlink(path)
		if err != nil {
			return err
		}
		path = resolved
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath) // Clean up temp file
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// CopyFile copies a regular file from src to dst, creating parent
// directories if needed.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source file: %w", err)
	}
	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return errors.Errorf("creating destination file: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.Errorf("copying file content: %w", err)
	}
	return nil
}

// CopyFileInto copies src into the directory dstDir keeping its base name.
func CopyFileInto(src, dstDir string) error {
	return CopyFile(src, filepath.Join(dstDir, filepath.Base(src)))
}

// CopyTree copies the directory tree at src to dst. Symlinks are recreated
// as symlinks with their original targets, not dereferenced, because the
// enabled/available directory pairs in a dispatcher configuration rely on
// relative links surviving the copy.
func CopyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Errorf("walking %s: %w", path, err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		mode := info.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Errorf("creating directory: %w", err)
			}
		case mode&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return errors.Errorf("readlink %s: %w", path, err)
			}
			if err := os.Symlink(linkTarget, target); err != nil {
				return errors.Errorf("creating symlink: %w", err)
			}
		default:
			if err := CopyFile(path, target); err != nil {
				return err
			}
		}
		return nil
	})
}
