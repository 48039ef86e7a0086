/*
Copyright 2022 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package reconciler

import (
	"fmt"
	"sync"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// Action represents the final outcome of one identity in the plan.
type Action string

const (
	CreatedAction   Action = "created"
	PatchedAction   Action = "patched"
	DeletedAction   Action = "deleted"
	UnchangedAction Action = "unchanged"
	FailedAction    Action = "failed"
	ConflictAction  Action = "conflict"
	SkippedAction   Action = "skipped"
	CancelledAction Action = "cancelled"

	// SkippedDependencyAction marks objects not attempted because an
	// object they depend on failed, unlike SkippedAction which is an
	// option-gated skip.
	SkippedDependencyAction Action = "skipped dependency"
)

// ReportEntry records what happened to one identity.
type ReportEntry struct {
	// ID identifies the object.
	ID objectutil.ResourceID
	// Action is the final outcome for this identity.
	Action Action
	// Reason carries the failure, conflict or skip explanation.
	Reason string
}

func (e ReportEntry) String() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %s", e.ID, e.Action, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.ID, e.Action)
}

// ExecutionReport is the complete account of a reconciliation run,
// with exactly one entry per identity in the plan. It is safe for
// concurrent writes by the executor's worker pool.
type ExecutionReport struct {
	mu      sync.Mutex
	Entries []ReportEntry
}

func NewExecutionReport() *ExecutionReport {
	return &ExecutionReport{Entries: []ReportEntry{}}
}

func (r *ExecutionReport) Add(id objectutil.ResourceID, action Action, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, ReportEntry{ID: id, Action: action, Reason: reason})
}

// ActionOf returns the recorded outcome for the given identity.
func (r *ExecutionReport) ActionOf(id objectutil.ResourceID) (Action, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Entries {
		if e.ID == id {
			return e.Action, true
		}
	}
	return "", false
}

// HasFailures returns true when any identity ended in a failed or
// unresolved conflict state, the condition for a non-zero exit.
func (r *ExecutionReport) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Entries {
		if e.Action == FailedAction || e.Action == ConflictAction {
			return true
		}
	}
	return false
}

// Count returns how many entries ended with the given action.
func (r *ExecutionReport) Count(action Action) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}
