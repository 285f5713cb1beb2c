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

// Package report renders the outcome of a conversion run: a markdown summary
// of every step that performed work, and a colorized console view of the run
// as it happens.
package report

import (
	"io/fs"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
)

const summaryPreamble = `# Dispatcher Conversion Report

The sections below list the rules applied during the conversion and the
actions each rule performed. Rules that found nothing to do are omitted.
Review the Warning entries before deploying the converted configuration.
`

// 📄 WriteSummary writes the markdown conversion summary to path. Each
// performed step becomes a heading with its description and a table of the
// operations it recorded; steps that performed no operation are omitted.
// When the destination already exists the new sections are appended below
// its content, so repeated runs extend the report instead of erasing it.
func WriteSummary(path string, steps []*ledger.Step) error {
	var b strings.Builder
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		b.Write(existing)
		if len(existing) > 0 && existing[len(existing)-1] != '\n' {
			b.WriteByte('\n')
		}
	case errors.Is(err, fs.ErrNotExist):
		b.WriteString(summaryPreamble)
	default:
		return errors.Errorf("reading existing summary report: %w", err)
	}

	for _, step := range steps {
		if !step.Performed() {
			continue
		}
		b.WriteString("\n##### " + step.Rule + "\n\n")
		b.WriteString(step.Description + "\n\n")
		b.WriteString("| Action Type | Location | Action |\n")
		b.WriteString("| ----------- | -------- | ------ |\n")
		for _, op := range step.Operations() {
			b.WriteString("| " + string(op.Action) + " | " + op.Location + " | " + op.Details + " |\n")
		}
	}

	if err := fsutil.WriteFileAtomic(path, []byte(b.String())); err != nil {
		return errors.Errorf("writing summary report: %w", err)
	}
	return nil
}
