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
	"testing"

	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func testObject(apiVersion, kind, namespace, name string) *unstructured.Unstructured {
	object := &unstructured.Unstructured{Object: map[string]interface{}{}}
	object.SetAPIVersion(apiVersion)
	object.SetKind(kind)
	object.SetNamespace(namespace)
	object.SetName(name)
	return object
}

func TestIDOf(t *testing.T) {
	t.Run("derives the full identity", func(t *testing.T) {
		id, err := IDOf(testObject("apps/v1", "Deployment", "squid", "proxy"))
		if err != nil {
			t.Fatal(err)
		}

		want := ResourceID{
			Group:     "apps",
			Version:   "v1",
			Kind:      "Deployment",
			Namespace: "squid",
			Name:      "proxy",
		}
		if diff := cmp.Diff(want, id); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
	})

	t.Run("fails without kind", func(t *testing.T) {
		_, err := IDOf(testObject("v1", "", "", "app"))
		if !errors.Is(err, ErrMissingIdentity) {
			t.Fatalf("expected ErrMissingIdentity, got %v", err)
		}
	})

	t.Run("fails without name", func(t *testing.T) {
		_, err := IDOf(testObject("v1", "ConfigMap", "default", ""))
		if !errors.Is(err, ErrMissingIdentity) {
			t.Fatalf("expected ErrMissingIdentity, got %v", err)
		}
	})

	t.Run("fails without apiVersion", func(t *testing.T) {
		_, err := IDOf(testObject("", "ConfigMap", "default", "app"))
		if !errors.Is(err, ErrMissingIdentity) {
			t.Fatalf("expected ErrMissingIdentity, got %v", err)
		}
	})
}

func TestResourceIDString(t *testing.T) {
	namespaced, err := IDOf(testObject("v1", "ConfigMap", "default", "app"))
	if err != nil {
		t.Fatal(err)
	}
	if namespaced.String() != "ConfigMap/default/app" {
		t.Errorf("unexpected format %s", namespaced.String())
	}

	clusterScoped, err := IDOf(testObject("v1", "Namespace", "", "squid"))
	if err != nil {
		t.Fatal(err)
	}
	if clusterScoped.String() != "Namespace/squid" {
		t.Errorf("unexpected format %s", clusterScoped.String())
	}
}

func TestSetDefaultNamespace(t *testing.T) {
	objects := []*unstructured.Unstructured{
		testObject("v1", "Namespace", "", "squid"),
		testObject("v1", "ConfigMap", "", "app"),
		testObject("v1", "ConfigMap", "squid", "proxy-config"),
		testObject("rbac.authorization.k8s.io/v1", "ClusterRole", "", "reader"),
	}

	SetDefaultNamespace(objects, "default")

	var namespaces []string
	for _, object := range objects {
		namespaces = append(namespaces, object.GetNamespace())
	}
	if diff := cmp.Diff([]string{"", "default", "squid", ""}, namespaces); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}
