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
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// Execute runs the plan against the transport. Tiers run strictly in
// order; inside a tier a bounded worker pool executes independent
// operations concurrently, except the deletions tier which runs one
// operation at a time in reverse apply order. A failed operation never
// aborts its siblings. On cancellation, in-flight operations complete
// and the remaining ones are recorded as cancelled. The returned
// report holds the final outcome of every identity in the plan.
func (r *Reconciler) Execute(ctx context.Context, plan *Plan, opts ApplyOptions) *ExecutionReport {
	report := NewExecutionReport()
	failed := newFailedSet()

	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}

	for _, tier := range plan.Tiers {
		limit := workers
		// deletion order matters: a namespace removed concurrently
		// with its contents force-deletes them mid-flight
		if tier[0].Action == DiffDelete {
			limit = 1
		}

		var group errgroup.Group
		group.SetLimit(limit)

		for _, diff := range tier {
			diff := diff
			if ctx.Err() != nil {
				report.Add(diff.ID, CancelledAction, "reconciliation cancelled")
				continue
			}
			group.Go(func() error {
				r.executeDiff(ctx, diff, opts, report, failed)
				return nil
			})
		}

		// later tiers may depend on objects created in this one
		_ = group.Wait()
	}

	return report
}

func (r *Reconciler) executeDiff(ctx context.Context, diff *DiffResult, opts ApplyOptions, report *ExecutionReport, failed *failedSet) {
	switch diff.Action {
	case DiffNone:
		report.Add(diff.ID, UnchangedAction, "")
	case DiffSkip:
		report.Add(diff.ID, SkippedAction, diff.Reason)
	case DiffError:
		report.Add(diff.ID, FailedAction, diff.Reason)
	case DiffConflict:
		report.Add(diff.ID, ConflictAction, diff.Reason)
	case DiffCreate:
		r.executeCreate(ctx, diff, report, failed)
	case DiffPatch:
		r.executePatch(ctx, diff, opts, report, failed)
	case DiffDelete:
		r.executeDelete(ctx, diff, report)
	}
}

func (r *Reconciler) executeCreate(ctx context.Context, diff *DiffResult, report *ExecutionReport, failed *failedSet) {
	if ns := diff.ID.Namespace; ns != "" && failed.hasNamespace(ns) {
		report.Add(diff.ID, SkippedDependencyAction, fmt.Sprintf("namespace %s was not created", ns))
		return
	}

	object := diff.Desired.DeepCopy()
	if err := r.setBaseline(object, diff.Desired); err != nil {
		report.Add(diff.ID, FailedAction, err.Error())
		return
	}

	err := r.withRetry(ctx, func() error {
		_, createErr := r.transport.Create(ctx, object)
		return createErr
	})
	if err != nil {
		if isCancellation(err) {
			report.Add(diff.ID, CancelledAction, "reconciliation cancelled")
			return
		}
		failed.markObject(diff.ID)
		report.Add(diff.ID, FailedAction, err.Error())
		return
	}

	report.Add(diff.ID, CreatedAction, "")
}

func (r *Reconciler) executePatch(ctx context.Context, diff *DiffResult, opts ApplyOptions, report *ExecutionReport, failed *failedSet) {
	if ns := diff.ID.Namespace; ns != "" && failed.hasNamespace(ns) {
		report.Add(diff.ID, SkippedDependencyAction, fmt.Sprintf("namespace %s was not created", ns))
		return
	}

	current := diff
	for attempt := 0; attempt < r.retry.Attempts; attempt++ {
		merged := current.Merged.DeepCopy()
		if err := r.setBaseline(merged, current.Desired); err != nil {
			report.Add(diff.ID, FailedAction, err.Error())
			return
		}

		err := r.withRetry(ctx, func() error {
			_, patchErr := r.transport.Patch(ctx, merged)
			return patchErr
		})
		if err == nil {
			reason := ""
			if current.BaseChanged {
				reason = fmt.Sprintf("overrode external changes to %s", fmtConflicts(current.Conflicts))
			}
			report.Add(diff.ID, PatchedAction, reason)
			return
		}

		if !IsVersionConflict(err) {
			if isCancellation(err) {
				report.Add(diff.ID, CancelledAction, "reconciliation cancelled")
				return
			}
			report.Add(diff.ID, FailedAction, err.Error())
			return
		}

		// the world changed underneath us: fetch a fresh live object,
		// diff again and retry with the new resource version
		live, getErr := r.transport.Get(ctx, diff.ID)
		if getErr != nil && !errors.Is(getErr, ErrNotFound) {
			if isCancellation(getErr) {
				report.Add(diff.ID, CancelledAction, "reconciliation cancelled")
				return
			}
			report.Add(diff.ID, FailedAction, getErr.Error())
			return
		}

		current = r.Diff(diff.ID, diff.Desired, live, opts.Force)
		switch current.Action {
		case DiffNone:
			report.Add(diff.ID, UnchangedAction, "")
			return
		case DiffConflict:
			report.Add(diff.ID, ConflictAction, current.Reason)
			return
		case DiffCreate:
			// deleted by another actor since the diff was computed
			r.executeCreate(ctx, current, report, failed)
			return
		}
	}

	report.Add(diff.ID, FailedAction,
		fmt.Sprintf("gave up after %d version conflicts", r.retry.Attempts))
}

func (r *Reconciler) executeDelete(ctx context.Context, diff *DiffResult, report *ExecutionReport) {
	err := r.withRetry(ctx, func() error {
		return r.transport.Delete(ctx, diff.ID)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		if isCancellation(err) {
			report.Add(diff.ID, CancelledAction, "reconciliation cancelled")
			return
		}
		report.Add(diff.ID, FailedAction, err.Error())
		return
	}
	report.Add(diff.ID, DeletedAction, "")
}

// withRetry runs fn, retrying transient transport failures with
// bounded exponential backoff. Non-transient errors are returned as
// soon as they occur.
func (r *Reconciler) withRetry(ctx context.Context, fn func() error) error {
	backoff := wait.Backoff{
		Duration: r.retry.Interval,
		Factor:   2.0,
		Jitter:   0.1,
		Steps:    r.retry.Attempts,
	}

	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func() (bool, error) {
		lastErr = fn()
		if lastErr == nil {
			return true, nil
		}
		if IsTransient(lastErr) {
			return false, nil
		}
		return false, lastErr
	})

	if errors.Is(err, wait.ErrWaitTimeout) {
		return lastErr
	}
	return err
}

// isCancellation reports whether err is the context being cancelled or
// timing out, rather than an operation failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func fmtConflicts(conflicts []Conflict) string {
	paths := make([]string, len(conflicts))
	for i, c := range conflicts {
		paths[i] = c.String()
	}
	return strings.Join(paths, ", ")
}

// failedSet tracks identities whose create failed, so that dependent
// operations in later tiers can be skipped instead of failing with a
// confusing server error.
type failedSet struct {
	mu         sync.Mutex
	namespaces map[string]bool
}

func newFailedSet() *failedSet {
	return &failedSet{namespaces: make(map[string]bool)}
}

func (s *failedSet) markObject(id objectutil.ResourceID) {
	if id.Kind != "Namespace" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[id.Name] = true
}

func (s *failedSet) hasNamespace(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namespaces[name]
}
