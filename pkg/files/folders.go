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

package files

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

// 🗑️ DeleteFolder removes the directory and everything under it. A missing
// directory is a no-op: the migration plan deletes folders that may already
// be gone.
func DeleteFolder(ctx context.Context, dir string, step *ledger.Step) error {
	if !fsutil.IsDir(dir) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Errorf("deleting folder: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("path", dir).Msg("deleted folder")
	step.Record(ledger.ActionDeleted, dir, "Deleted folder "+dir)
	return nil
}

// 🔄 RenameFolder moves a directory. The source must exist
// (*fsutil.NotFoundError) and the destination must not
// (*fsutil.ConflictError).
func RenameFolder(ctx context.Context, src, dest string, step *ledger.Step) error {
	if !fsutil.IsDir(src) {
		return &fsutil.NotFoundError{Path: src}
	}
	if fsutil.Exists(dest) {
		return &fsutil.ConflictError{Path: dest}
	}
	if err := os.Rename(src, dest); err != nil {
		return errors.Errorf("renaming folder: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("from", src).Str("to", dest).Msg("renamed folder")
	step.Record(ledger.ActionRenamed, filepath.Dir(src),
		"Renamed folder "+filepath.Base(src)+" to "+filepath.Base(dest))
	return nil
}
