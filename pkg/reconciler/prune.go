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

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// pruneKinds is the default allowlist of types considered for garbage
// collection, after kubectl's prune allowlist. Types outside this list
// are only pruned when the desired set itself contains that type.
var pruneKinds = []schema.GroupVersionKind{
	{Version: "v1", Kind: "ConfigMap"},
	{Version: "v1", Kind: "Secret"},
	{Version: "v1", Kind: "Service"},
	{Version: "v1", Kind: "ServiceAccount"},
	{Version: "v1", Kind: "PersistentVolumeClaim"},
	{Group: "apps", Version: "v1", Kind: "Deployment"},
	{Group: "apps", Version: "v1", Kind: "StatefulSet"},
	{Group: "apps", Version: "v1", Kind: "DaemonSet"},
	{Group: "batch", Version: "v1", Kind: "Job"},
	{Group: "batch", Version: "v1", Kind: "CronJob"},
	{Group: "networking.k8s.io", Version: "v1", Kind: "Ingress"},
	{Group: "networking.k8s.io", Version: "v1", Kind: "NetworkPolicy"},
	{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "Role"},
	{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "RoleBinding"},
}

// StaleObjects returns the live objects that carry this owner's labels
// and baseline annotation but are absent from the desired set. The
// lookup spans the default prune allowlist plus every type present in
// the desired set. Discovery is best-effort: a type that cannot be
// listed contributes no candidates, which at worst leaves an object
// unpruned.
func (r *Reconciler) StaleObjects(ctx context.Context, objects []*unstructured.Unstructured, name, namespace string) ([]*unstructured.Unstructured, error) {
	keep := make(map[objectutil.ResourceID]bool, len(objects))
	for _, object := range objects {
		id, err := objectutil.IDOf(object)
		if err != nil {
			return nil, err
		}
		keep[id] = true
	}

	gvks := make([]schema.GroupVersionKind, 0, len(pruneKinds))
	seenGVK := make(map[schema.GroupVersionKind]bool)
	for _, gvk := range pruneKinds {
		gvks = append(gvks, gvk)
		seenGVK[gvk] = true
	}
	for _, object := range objects {
		if gvk := object.GroupVersionKind(); !seenGVK[gvk] {
			gvks = append(gvks, gvk)
			seenGVK[gvk] = true
		}
	}

	selector := map[string]string{
		r.owner.Group + "/name":      name,
		r.owner.Group + "/namespace": namespace,
	}

	var stale []*unstructured.Unstructured
	seen := make(map[objectutil.ResourceID]bool)
	for _, gvk := range gvks {
		list, err := r.transport.List(ctx, gvk, "", selector)
		if err != nil {
			continue
		}
		for _, live := range list {
			id, err := objectutil.IDOf(live)
			if err != nil || keep[id] || seen[id] {
				continue
			}
			if _, ok := r.getBaseline(live); !ok {
				continue
			}
			seen[id] = true
			stale = append(stale, live)
		}
	}

	return stale, nil
}
