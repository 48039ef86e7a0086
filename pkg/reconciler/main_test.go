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
	"strconv"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

var testOwner = Owner{Field: "konverge", Group: "konverge.dev"}

func newTestReconciler(transport Transport) *Reconciler {
	rec := NewReconciler(transport, testOwner, objectutil.DefaultKindOrder())
	rec.SetRetry(RetryOptions{Attempts: 3, Interval: time.Millisecond})
	return rec
}

// fakeTransport is an in-memory Transport with per-call error
// injection, so that retry, conflict and dependency behavior can be
// exercised without a cluster.
type fakeTransport struct {
	mu      sync.Mutex
	objects map[objectutil.ResourceID]*unstructured.Unstructured
	nextRV  int

	// failures are consumed one per call, keyed by "<op> <id>"
	failures map[string][]error

	// onFailure, when set, runs every time an injected failure is
	// consumed, e.g. to cancel the context mid-retry
	onFailure func()
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		objects:  make(map[objectutil.ResourceID]*unstructured.Unstructured),
		nextRV:   1,
		failures: make(map[string][]error),
	}
}

func (f *fakeTransport) failNext(op string, id objectutil.ResourceID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + " " + id.String()
	f.failures[key] = append(f.failures[key], err)
}

func (f *fakeTransport) popFailure(op string, id objectutil.ResourceID) error {
	key := op + " " + id.String()
	queue := f.failures[key]
	if len(queue) == 0 {
		return nil
	}
	f.failures[key] = queue[1:]
	if f.onFailure != nil {
		f.onFailure()
	}
	return queue[0]
}

func (f *fakeTransport) Get(_ context.Context, id objectutil.ResourceID) (*unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("get", id); err != nil {
		return nil, err
	}
	object, ok := f.objects[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return object.DeepCopy(), nil
}

func (f *fakeTransport) List(_ context.Context, gvk schema.GroupVersionKind, namespace string, selector map[string]string) ([]*unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*unstructured.Unstructured
	for id, object := range f.objects {
		if id.GroupVersionKind() != gvk {
			continue
		}
		if namespace != "" && id.Namespace != namespace {
			continue
		}
		labels := object.GetLabels()
		matches := true
		for k, v := range selector {
			if labels[k] != v {
				matches = false
				break
			}
		}
		if matches {
			res = append(res, object.DeepCopy())
		}
	}
	return res, nil
}

func (f *fakeTransport) Create(_ context.Context, object *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := objectutil.IDOf(object)
	if err != nil {
		return nil, err
	}
	if err := f.popFailure("create", id); err != nil {
		return nil, err
	}
	if _, exists := f.objects[id]; exists {
		return nil, fmt.Errorf("%s already exists", id)
	}
	stored := object.DeepCopy()
	stored.SetResourceVersion(strconv.Itoa(f.nextRV))
	f.nextRV++
	f.objects[id] = stored
	return stored.DeepCopy(), nil
}

func (f *fakeTransport) Patch(_ context.Context, object *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := objectutil.IDOf(object)
	if err != nil {
		return nil, err
	}
	if err := f.popFailure("patch", id); err != nil {
		return nil, err
	}
	stored, exists := f.objects[id]
	if !exists {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if object.GetResourceVersion() != stored.GetResourceVersion() {
		return nil, &VersionConflictError{Err: fmt.Errorf("%s: stale resource version", id)}
	}
	next := object.DeepCopy()
	next.SetResourceVersion(strconv.Itoa(f.nextRV))
	f.nextRV++
	f.objects[id] = next
	return next.DeepCopy(), nil
}

func (f *fakeTransport) Delete(_ context.Context, id objectutil.ResourceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("delete", id); err != nil {
		return err
	}
	if _, exists := f.objects[id]; !exists {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(f.objects, id)
	return nil
}

// mutate edits the stored object in place with a resource version bump,
// simulating a write made by another actor.
func (f *fakeTransport) mutate(id objectutil.ResourceID, edit func(*unstructured.Unstructured)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	object := f.objects[id]
	edit(object)
	object.SetResourceVersion(strconv.Itoa(f.nextRV))
	f.nextRV++
}

func (f *fakeTransport) stored(id objectutil.ResourceID) *unstructured.Unstructured {
	f.mu.Lock()
	defer f.mu.Unlock()
	if object, ok := f.objects[id]; ok {
		return object.DeepCopy()
	}
	return nil
}

func makeConfigMap(name, namespace, value string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"data": map[string]interface{}{
			"key": value,
		},
	}}
}

func makeNamespace(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Namespace",
		"metadata": map[string]interface{}{
			"name": name,
		},
	}}
}

func makeDeployment(name, namespace, image string, replicas int64) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"spec": map[string]interface{}{
			"replicas": replicas,
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []interface{}{
						map[string]interface{}{
							"name":  name,
							"image": image,
						},
					},
				},
			},
		},
	}}
}

func mustID(object *unstructured.Unstructured) objectutil.ResourceID {
	id, err := objectutil.IDOf(object)
	if err != nil {
		panic(err)
	}
	return id
}
