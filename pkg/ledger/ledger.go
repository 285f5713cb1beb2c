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

// Package ledger records every mutating action performed during a conversion
// run. A Step is created per conversion rule and handed to every utility call
// made on its behalf; the utilities append operations and never read them
// back. The collected steps are rendered into the summary report at the end
// of the run.
package ledger

// 📋 Action is the kind of change an operation performed.
type Action string

const (
	ActionAdded    Action = "Added"
	ActionDeleted  Action = "Deleted"
	ActionRemoved  Action = "Removed"
	ActionRenamed  Action = "Renamed"
	ActionReplaced Action = "Replaced"
	ActionWarning  Action = "Warning"
)

// 📄 Operation describes a single change made to the target configuration.
type Operation struct {
	Action   Action // what kind of change
	Location string // the file or directory the change was made to
	Details  string // human-readable gist of the change
}

// 📦 Step is the audit trail of one conversion rule. It is append-only and
// shared across every utility call made while executing the rule. A run is
// single-threaded by contract, so no locking is done here.
type Step struct {
	Rule        string
	Description string

	ops []Operation
}

// 🏭 NewStep creates the ledger entry for one conversion rule.
func NewStep(rule, description string) *Step {
	return &Step{Rule: rule, Description: description}
}

// Add appends an operation to the step.
func (s *Step) Add(op Operation) {
	s.ops = append(s.ops, op)
}

// Record is shorthand for Add with the three operation fields.
func (s *Step) Record(action Action, location, details string) {
	s.Add(Operation{Action: action, Location: location, Details: details})
}

// Operations returns the operations performed so far, in order.
func (s *Step) Operations() []Operation {
	return s.ops
}

// Performed reports whether the step changed anything at all. Steps that
// performed nothing are omitted from the summary report.
func (s *Step) Performed() bool {
	return len(s.ops) > 0
}
