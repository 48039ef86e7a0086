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
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// Owner identifies the tool to the cluster: Field is the field manager
// name, Group prefixes the ownership labels and the baseline annotation.
type Owner struct {
	Field string
	Group string
}

// RetryOptions bounds the exponential backoff applied to transient
// transport failures and version-conflict re-diffs.
type RetryOptions struct {
	Attempts int
	Interval time.Duration
}

// ApplyOptions controls one reconciliation run.
type ApplyOptions struct {
	// AllowCreate permits first-time creation of absent objects.
	AllowCreate bool
	// AllowPatch permits updating existing objects.
	AllowPatch bool
	// Force makes the desired value win over externally modified
	// fields instead of reporting a conflict.
	Force bool
	// Prune deletes owned objects that are absent from the desired set.
	// Requires OwnerName.
	Prune bool
	// Concurrency bounds the worker pool inside one plan tier.
	Concurrency int
	// OwnerName and OwnerNamespace scope the ownership labels stamped
	// on applied objects and the prune selector.
	OwnerName      string
	OwnerNamespace string
}

// DefaultApplyOptions returns the options of a plain update run.
func DefaultApplyOptions() ApplyOptions {
	return ApplyOptions{
		AllowCreate: true,
		AllowPatch:  true,
		Concurrency: 4,
	}
}

// DefaultRetryOptions returns the backoff applied to transient
// transport failures: four attempts starting at half a second.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		Attempts: 4,
		Interval: 500 * time.Millisecond,
	}
}

// Reconciler converges cluster state toward desired manifest sets
// through a Transport.
type Reconciler struct {
	transport Transport
	owner     Owner
	order     objectutil.KindOrder
	retry     RetryOptions
}

// NewReconciler creates a Reconciler for the given transport.
func NewReconciler(transport Transport, owner Owner, order objectutil.KindOrder) *Reconciler {
	return &Reconciler{
		transport: transport,
		owner:     owner,
		order:     order,
		retry:     DefaultRetryOptions(),
	}
}

// SetRetry overrides the default transient failure backoff.
func (r *Reconciler) SetRetry(retry RetryOptions) {
	if retry.Attempts > 0 {
		r.retry = retry
	}
}

// Transport returns the underlying transport.
func (r *Reconciler) Transport() Transport {
	return r.transport
}

// SetOwnerLabels adds the ownership labels to the given objects.
// The ownership labels are in the format:
//	<owner.group>/name: <name>
//	<owner.group>/namespace: <namespace>
func (r *Reconciler) SetOwnerLabels(objects []*unstructured.Unstructured, name, namespace string) {
	for _, object := range objects {
		labels := object.GetLabels()
		if labels == nil {
			labels = make(map[string]string)
		}

		labels[r.owner.Group+"/name"] = name
		labels[r.owner.Group+"/namespace"] = namespace

		object.SetLabels(labels)
	}
}

// Reconcile converges the cluster toward the given desired set: it
// diffs every object against its live state, plans the operations in
// dependency order and executes the plan. The desired set must be
// normalized (flat, unique identities); the objects are not mutated
// except for ownership labels when OwnerName is set.
func (r *Reconciler) Reconcile(ctx context.Context, objects []*unstructured.Unstructured, opts ApplyOptions) (*ExecutionReport, error) {
	if opts.OwnerName != "" {
		r.SetOwnerLabels(objects, opts.OwnerName, opts.OwnerNamespace)
	}

	diffs, err := r.DiffAll(ctx, objects, opts.Force)
	if err != nil {
		return nil, err
	}

	for _, d := range diffs {
		switch {
		case d.Action == DiffCreate && !opts.AllowCreate:
			d.Action = DiffSkip
			d.Reason = "object does not exist, creation not enabled"
		case (d.Action == DiffPatch || d.Action == DiffConflict) && !opts.AllowPatch:
			d.Action = DiffSkip
			d.Reason = "object already exists"
		}
	}

	if opts.Prune {
		if opts.OwnerName == "" {
			return nil, fmt.Errorf("pruning requires an owner name")
		}
		stale, err := r.StaleObjects(ctx, objects, opts.OwnerName, opts.OwnerNamespace)
		if err != nil {
			return nil, fmt.Errorf("stale object lookup failed: %w", err)
		}
		for _, live := range stale {
			id, err := objectutil.IDOf(live)
			if err != nil {
				continue
			}
			diffs = append(diffs, r.Diff(id, nil, live, opts.Force))
		}
	}

	plan, err := MakePlan(diffs, r.order)
	if err != nil {
		return nil, err
	}

	return r.Execute(ctx, plan, opts), nil
}

// Delete removes the given objects from the cluster in reverse apply
// order. Objects that are already absent count as deleted.
func (r *Reconciler) Delete(ctx context.Context, objects []*unstructured.Unstructured, opts ApplyOptions) (*ExecutionReport, error) {
	diffs := make([]*DiffResult, 0, len(objects))
	for _, object := range objects {
		id, err := objectutil.IDOf(object)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, &DiffResult{ID: id, Action: DiffDelete})
	}

	plan, err := MakePlan(diffs, r.order)
	if err != nil {
		return nil, err
	}

	return r.Execute(ctx, plan, opts), nil
}
