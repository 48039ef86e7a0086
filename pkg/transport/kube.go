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

// Package transport implements the reconciler's transport contract on
// top of a controller-runtime client.
package transport

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	apiruntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"

	"github.com/stefanprodan/konverge/pkg/objectutil"
	"github.com/stefanprodan/konverge/pkg/reconciler"
)

// KubeTransport talks to the cluster API through a controller-runtime
// client. The client's connection pool makes it safe for concurrent
// use by the reconciler's worker pool.
type KubeTransport struct {
	client client.Client
	owner  string
}

var _ reconciler.Transport = (*KubeTransport)(nil)

// NewKubeTransport builds a transport from the given kubeconfig
// flags. The cluster endpoint is threaded through here explicitly so
// that nothing in the reconciliation path reads ambient state.
func NewKubeTransport(rcg genericclioptions.RESTClientGetter, fieldManager string) (*KubeTransport, error) {
	cfg, err := newKubeConfig(rcg)
	if err != nil {
		return nil, err
	}

	restMapper, err := apiutil.NewDynamicRESTMapper(cfg)
	if err != nil {
		return nil, fmt.Errorf("rest mapper init failed: %w", err)
	}

	kubeClient, err := client.New(cfg, client.Options{
		Scheme: newScheme(),
		Mapper: restMapper,
	})
	if err != nil {
		return nil, fmt.Errorf("kubernetes client initialization failed: %w", err)
	}

	return &KubeTransport{client: kubeClient, owner: fieldManager}, nil
}

// NewKubeTransportFor wraps an existing client, used by tests.
func NewKubeTransportFor(kubeClient client.Client, fieldManager string) *KubeTransport {
	return &KubeTransport{client: kubeClient, owner: fieldManager}
}

func (t *KubeTransport) Get(ctx context.Context, id objectutil.ResourceID) (*unstructured.Unstructured, error) {
	object := &unstructured.Unstructured{}
	object.SetGroupVersionKind(id.GroupVersionKind())

	err := t.client.Get(ctx, types.NamespacedName{Namespace: id.Namespace, Name: id.Name}, object)
	if err != nil {
		return nil, classify(id.String(), err)
	}
	return object, nil
}

func (t *KubeTransport) List(ctx context.Context, gvk schema.GroupVersionKind, namespace string, selector map[string]string) ([]*unstructured.Unstructured, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(schema.GroupVersionKind{
		Group:   gvk.Group,
		Version: gvk.Version,
		Kind:    gvk.Kind + "List",
	})

	opts := []client.ListOption{client.MatchingLabels(selector)}
	if namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}
	if err := t.client.List(ctx, list, opts...); err != nil {
		return nil, classify(gvk.Kind, err)
	}

	objects := make([]*unstructured.Unstructured, 0, len(list.Items))
	for i := range list.Items {
		objects = append(objects, &list.Items[i])
	}
	return objects, nil
}

func (t *KubeTransport) Create(ctx context.Context, object *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	created := object.DeepCopy()
	if err := t.client.Create(ctx, created, client.FieldOwner(t.owner)); err != nil {
		return nil, classify(objectutil.FmtUnstructured(object), err)
	}
	return created, nil
}

func (t *KubeTransport) Patch(ctx context.Context, object *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	// a full update carrying the fetched resource version, so that a
	// concurrent external write surfaces as a version conflict
	updated := object.DeepCopy()
	if err := t.client.Update(ctx, updated, client.FieldOwner(t.owner)); err != nil {
		return nil, classify(objectutil.FmtUnstructured(object), err)
	}
	return updated, nil
}

func (t *KubeTransport) Delete(ctx context.Context, id objectutil.ResourceID) error {
	object := &unstructured.Unstructured{}
	object.SetGroupVersionKind(id.GroupVersionKind())
	object.SetNamespace(id.Namespace)
	object.SetName(id.Name)

	if err := t.client.Delete(ctx, object); err != nil {
		return classify(id.String(), err)
	}
	return nil
}

func newScheme() *apiruntime.Scheme {
	scheme := apiruntime.NewScheme()
	_ = apiextensionsv1.AddToScheme(scheme)
	_ = corev1.AddToScheme(scheme)
	return scheme
}

func newKubeConfig(rcg genericclioptions.RESTClientGetter) (*rest.Config, error) {
	cfg, err := rcg.ToRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("kubeconfig load failed: %w", err)
	}

	cfg.QPS = 50
	cfg.Burst = 100

	return cfg, nil
}
