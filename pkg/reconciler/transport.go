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

// Transport performs the API calls against the cluster control plane.
// Implementations must be safe for concurrent use, as the executor's
// worker pool shares a single Transport. Every method is a single
// best-effort attempt; retry policy belongs to the caller.
//
// Failures are tagged: ErrNotFound for absent objects, TransientError
// for failures worth retrying, VersionConflictError for optimistic
// concurrency rejections. Anything else is permanent.
type Transport interface {
	// Get retrieves the current server-side state of the identified
	// object. Absence is reported with ErrNotFound.
	Get(ctx context.Context, id objectutil.ResourceID) (*unstructured.Unstructured, error)

	// List retrieves the objects of the given type matching the label
	// selector. An empty namespace means all namespaces.
	List(ctx context.Context, gvk schema.GroupVersionKind, namespace string, selector map[string]string) ([]*unstructured.Unstructured, error)

	// Create submits a new object and returns the server-side
	// representation with defaults and resource version assigned.
	Create(ctx context.Context, object *unstructured.Unstructured) (*unstructured.Unstructured, error)

	// Patch replaces the identified object with the given merged state.
	// The object's resource version is used for optimistic concurrency:
	// a stale version is rejected with VersionConflictError.
	Patch(ctx context.Context, object *unstructured.Unstructured) (*unstructured.Unstructured, error)

	// Delete removes the identified object. Deleting an absent object
	// is reported with ErrNotFound.
	Delete(ctx context.Context, id objectutil.ResourceID) error
}
