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

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// DiffAction tags the outcome of diffing one identity.
type DiffAction string

const (
	// DiffCreate means the object is absent from the cluster.
	DiffCreate DiffAction = "create"
	// DiffPatch means the live object drifted from the desired manifest.
	DiffPatch DiffAction = "patch"
	// DiffDelete means the live object is absent from the desired set.
	DiffDelete DiffAction = "delete"
	// DiffNone means the live object already matches the desired manifest.
	DiffNone DiffAction = "unchanged"
	// DiffConflict means an externally modified field blocks the patch.
	DiffConflict DiffAction = "conflict"
	// DiffSkip means the operation is excluded by the caller's options.
	DiffSkip DiffAction = "skip"
	// DiffError means the live state could not be fetched.
	DiffError DiffAction = "error"
)

// DiffResult is the outcome of comparing one desired manifest with the
// matching live object.
type DiffResult struct {
	ID     objectutil.ResourceID
	Action DiffAction

	// Desired is the manifest from the desired set, nil for deletions.
	Desired *unstructured.Unstructured
	// Live is the fetched cluster state, nil for creations.
	Live *unstructured.Unstructured
	// Merged is the live object with Ops applied, set for patches.
	Merged *unstructured.Unstructured

	// Ops holds the field-level changes of a patch.
	Ops []FieldOp
	// Conflicts holds the externally modified fields.
	Conflicts []Conflict
	// BaseChanged records that force-overwrite discarded external
	// modifications, so the executor can warn about them.
	BaseChanged bool
	// Reason explains conflict and skip outcomes.
	Reason string
}

func (d *DiffResult) String() string {
	return fmt.Sprintf("%s %s", d.ID, d.Action)
}

// Diff computes the three-way difference between a desired manifest
// and the matching live object, either of which may be nil. It is a
// pure function over its inputs: the same (baseline, live, desired)
// triple always yields the same result, and no input is mutated.
func (r *Reconciler) Diff(id objectutil.ResourceID, desired, live *unstructured.Unstructured, force bool) *DiffResult {
	switch {
	case desired == nil && live == nil:
		return &DiffResult{ID: id, Action: DiffNone}
	case live == nil:
		return &DiffResult{ID: id, Action: DiffCreate, Desired: desired}
	case desired == nil:
		return &DiffResult{ID: id, Action: DiffDelete, Live: live}
	}

	base, ok := r.getBaseline(live)
	if !ok {
		base = &unstructured.Unstructured{Object: map[string]interface{}{}}
	}

	ops, conflicts := threeWayMerge(base.Object, live.Object, desired.Object)

	if len(conflicts) > 0 && !force {
		paths := make([]string, len(conflicts))
		for i, c := range conflicts {
			paths[i] = c.String()
		}
		return &DiffResult{
			ID:        id,
			Action:    DiffConflict,
			Desired:   desired,
			Live:      live,
			Ops:       ops,
			Conflicts: conflicts,
			Reason:    fmt.Sprintf("fields modified by another actor: %s", strings.Join(paths, ", ")),
		}
	}

	baseChanged := false
	if len(conflicts) > 0 {
		ops = append(ops, forcedOps(conflicts)...)
		baseChanged = true
	}

	if len(ops) == 0 {
		return &DiffResult{ID: id, Action: DiffNone, Desired: desired, Live: live}
	}

	return &DiffResult{
		ID:          id,
		Action:      DiffPatch,
		Desired:     desired,
		Live:        live,
		Merged:      applyOps(live, ops),
		Ops:         ops,
		Conflicts:   conflicts,
		BaseChanged: baseChanged,
	}
}

// DiffAll fetches the live state of every object in the desired set
// and diffs it. The result order follows the input order. Fetch
// failures local to one identity do not abort the others' diffs; they
// surface as conflict-free results with the error recorded in Reason.
func (r *Reconciler) DiffAll(ctx context.Context, objects []*unstructured.Unstructured, force bool) ([]*DiffResult, error) {
	results := make([]*DiffResult, 0, len(objects))
	for _, desired := range objects {
		id, err := objectutil.IDOf(desired)
		if err != nil {
			return nil, err
		}

		var live *unstructured.Unstructured
		err = r.withRetry(ctx, func() error {
			var getErr error
			live, getErr = r.transport.Get(ctx, id)
			return getErr
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			results = append(results, &DiffResult{
				ID:      id,
				Action:  DiffError,
				Desired: desired,
				Reason:  fmt.Sprintf("fetch failed: %v", err),
			})
			continue
		}
		results = append(results, r.Diff(id, desired, live, force))
	}
	return results, nil
}
