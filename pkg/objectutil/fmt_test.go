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
	"testing"

	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestFmtUnstructured(t *testing.T) {
	if s := FmtUnstructured(testObject("v1", "ConfigMap", "default", "app")); s != "ConfigMap/default/app" {
		t.Errorf("unexpected format %s", s)
	}
	if s := FmtUnstructured(testObject("v1", "Namespace", "", "squid")); s != "Namespace/squid" {
		t.Errorf("unexpected format %s", s)
	}
}

func TestMaskSecret(t *testing.T) {
	secret := testObject("v1", "Secret", "default", "credentials")
	err := unstructured.SetNestedMap(secret.Object, map[string]interface{}{
		"user":     "YWRtaW4=",
		"password": "cGFzc3dvcmQ=",
	}, "data")
	if err != nil {
		t.Fatal(err)
	}

	masked, err := MaskSecret(secret, "*****")
	if err != nil {
		t.Fatal(err)
	}

	data, _, err := unstructured.NestedMap(masked.Object, "data")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"user":     "*****",
		"password": "*****",
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestMaskSecretWithoutData(t *testing.T) {
	object := testObject("v1", "ConfigMap", "default", "app")
	if _, err := MaskSecret(object, "*****"); err != nil {
		t.Fatal(err)
	}
}
