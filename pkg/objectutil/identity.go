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

package objectutil

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/cli-utils/pkg/object"
)

// ErrMissingIdentity is returned when a manifest lacks the fields
// needed to derive a ResourceID.
var ErrMissingIdentity = errors.New("missing identity field")

// ResourceID is the stable key that identifies one resource across
// the desired, live and baseline views. An empty Namespace means the
// resource is cluster-scoped.
type ResourceID struct {
	Group     string
	Version   string
	Kind      string
	Namespace string
	Name      string
}

// IDOf derives the ResourceID of the given object.
// It fails when the kind, name or apiVersion fields are absent.
func IDOf(object *unstructured.Unstructured) (ResourceID, error) {
	if object.GetKind() == "" {
		return ResourceID{}, fmt.Errorf("%w: kind not set", ErrMissingIdentity)
	}
	if object.GetName() == "" {
		return ResourceID{}, fmt.Errorf("%s %w: metadata.name not set",
			object.GetKind(), ErrMissingIdentity)
	}
	if object.GetAPIVersion() == "" {
		return ResourceID{}, fmt.Errorf("%s/%s %w: apiVersion not set",
			object.GetKind(), object.GetName(), ErrMissingIdentity)
	}

	gvk := object.GroupVersionKind()
	return ResourceID{
		Group:     gvk.Group,
		Version:   gvk.Version,
		Kind:      gvk.Kind,
		Namespace: object.GetNamespace(),
		Name:      object.GetName(),
	}, nil
}

// GroupVersionKind returns the schema identifier of the resource type.
func (id ResourceID) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: id.Group, Version: id.Version, Kind: id.Kind}
}

// ObjMetadata converts the ResourceID to the cli-utils metadata format.
func (id ResourceID) ObjMetadata() object.ObjMetadata {
	return object.ObjMetadata{
		GroupKind: schema.GroupKind{Group: id.Group, Kind: id.Kind},
		Namespace: id.Namespace,
		Name:      id.Name,
	}
}

// String returns the resource ID in the format <kind>/<namespace>/<name>.
func (id ResourceID) String() string {
	return FmtObjMetadata(id.ObjMetadata())
}

// clusterScopedKinds holds the well-known Kubernetes kinds that are not
// namespaced. Used for namespace defaulting when no API discovery
// information is at hand.
var clusterScopedKinds = map[string]bool{
	"Namespace":                      true,
	"CustomResourceDefinition":       true,
	"ClusterRole":                    true,
	"ClusterRoleBinding":             true,
	"PersistentVolume":               true,
	"StorageClass":                   true,
	"PriorityClass":                  true,
	"PodSecurityPolicy":              true,
	"APIService":                     true,
	"MutatingWebhookConfiguration":   true,
	"ValidatingWebhookConfiguration": true,
}

// IsClusterScoped returns true when the given kind is a well-known
// cluster-scoped Kubernetes kind.
func IsClusterScoped(kind string) bool {
	return clusterScopedKinds[kind]
}

// SetDefaultNamespace sets the given namespace on all namespaced
// objects that don't have one.
func SetDefaultNamespace(objects []*unstructured.Unstructured, namespace string) {
	for _, object := range objects {
		if object.GetNamespace() == "" && !IsClusterScoped(object.GetKind()) {
			object.SetNamespace(namespace)
		}
	}
}
