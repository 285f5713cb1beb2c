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

package fsutil

import "fmt"

// The typed errors below are the filesystem contract violations that are
// fatal to the current conversion step. Everything softer (section missing,
// include not matched) is reported through the ledger instead of raised.

// NotFoundError reports an operation whose source path does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path does not exist: %s", e.Path)
}

// ConflictError reports a rename whose destination already exists. Silent
// overwrites are rejected.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("destination already exists: %s", e.Path)
}

// BrokenLinkError reports a symlink chain ending in a target that does not
// exist.
type BrokenLinkError struct {
	Path   string // the link being resolved
	Target string // the dangling target
}

func (e *BrokenLinkError) Error() string {
	return fmt.Sprintf("broken symlink %s: target %s does not exist", e.Path, e.Target)
}

// CyclicLinkError reports a symlink chain that revisits a path.
type CyclicLinkError struct {
	Path string
}

func (e *CyclicLinkError) Error() string {
	return fmt.Sprintf("cyclic symlink chain at %s", e.Path)
}
